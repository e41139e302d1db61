package pipeline

import (
	"net"

	"github.com/pion/rtp"
	"github.com/pion/srtp/v3"

	"github.com/beyondnet/beyond/internal/berr"
)

// srtpMTU bounds one RTP payload fragment; tensors larger than this are
// split across consecutive packets and reassembled on Marker.
const srtpMTU = 1200

// srtpConn packetizes tensor frames as RTP and protects them with the SRTP
// master key derived from the session key (§4.9: "SRTP master key =
// session key"), mirroring the spec's srtpenc/srtpdec pipeline elements with
// pion/srtp instead of an external media framework.
type srtpConn struct {
	conn     net.Conn
	session  *srtp.SessionSRTP
	writeStr *srtp.WriteStreamSRTP
	readStr  *srtp.ReadStreamSRTP
	ssrc     uint32
	payloadT uint8
	seq      uint16
}

func openSRTP(cfg UDPConfig) (pipelineConn, error) {
	peerAddr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, berr.Wrap(berr.TransportFault, component, "openSRTP", err)
	}

	key := cfg.SRTPKey[:16]
	salt := cfg.SRTPKey[16:30]

	conn, err := net.DialUDP("udp", nil, peerAddr)
	if err != nil {
		return nil, berr.Wrap(berr.TransportFault, component, "openSRTP", err)
	}

	session, err := srtp.NewSessionSRTP(conn, &srtp.Config{
		Keys: srtp.SessionKeys{
			LocalMasterKey:   key,
			LocalMasterSalt:  salt,
			RemoteMasterKey:  key,
			RemoteMasterSalt: salt,
		},
		Profile: srtp.ProtectionProfileAes128CmHmacSha1_80,
	})
	if err != nil {
		conn.Close()
		return nil, berr.Wrap(berr.CryptoFault, component, "openSRTP", err)
	}

	writeStr, err := session.OpenWriteStream()
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, component, "openSRTP", err)
	}

	readStr, err := session.OpenReadStream(cfg.SSRC)
	if err != nil {
		return nil, berr.Wrap(berr.CryptoFault, component, "openSRTP", err)
	}

	return &srtpConn{
		conn:     conn,
		session:  session,
		writeStr: writeStr,
		readStr:  readStr,
		ssrc:     cfg.SSRC,
		payloadT: cfg.PayloadT,
	}, nil
}

// writeTensor fragments tensor into srtpMTU-sized RTP packets, each
// individually protected and written to the write stream; the last
// fragment carries Marker=true as the frame-boundary signal.
func (c *srtpConn) writeTensor(tensor []byte) error {
	if len(tensor) == 0 {
		tensor = []byte{0}
	}

	for offset := 0; offset < len(tensor); offset += srtpMTU {
		end := offset + srtpMTU
		if end > len(tensor) {
			end = len(tensor)
		}
		last := end == len(tensor)

		c.seq++
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         last,
				PayloadType:    c.payloadT,
				SequenceNumber: c.seq,
				SSRC:           c.ssrc,
			},
			Payload: tensor[offset:end],
		}

		buf, err := pkt.Marshal()
		if err != nil {
			return berr.Wrap(berr.TransportFault, component, "writeTensor", err)
		}
		if _, err := c.writeStr.Write(buf); err != nil {
			return berr.Wrap(berr.TransportFault, component, "writeTensor", err)
		}
	}
	return nil
}

// readTensor accumulates RTP payloads until a Marker packet closes the
// frame, reconstructing the tensor the sender fragmented.
func (c *srtpConn) readTensor() ([]byte, error) {
	var assembled []byte
	buf := make([]byte, srtpMTU+12)

	for {
		n, err := c.readStr.Read(buf)
		if err != nil {
			return nil, berr.Wrap(berr.TransportFault, component, "readTensor", err)
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			return nil, berr.Wrap(berr.TransportFault, component, "readTensor", err)
		}

		assembled = append(assembled, pkt.Payload...)
		if pkt.Marker {
			return assembled, nil
		}
	}
}

func (c *srtpConn) Close() error {
	c.readStr.Close()
	c.writeStr.Close()
	c.session.Close()
	return c.conn.Close()
}
