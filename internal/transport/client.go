package transport

import (
	"bufio"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/beyondnet/beyond/internal/berr"
	"github.com/beyondnet/beyond/internal/rpcauth"
)

// Client is a synchronous RPC client over a single connection, matching the
// spec's "all gRPC calls from Peer Session run on the owning app thread,
// block for RPC duration" concurrency model (§5): one in-flight call at a
// time per Client.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	r      *bufio.Reader
	nonces *rpcauth.ClientNonceTracker
	peerID string
	logger zerolog.Logger
}

// Dial opens a connection (the caller supplies an already-TLS-wrapped conn
// for production use, e.g. tls.Dial) and returns a Client with no nonce
// tracker bound yet — call Bind once ExchangeKey has produced a peer_id and
// initial nonce.
func Dial(conn net.Conn, logger zerolog.Logger) *Client {
	return &Client{
		conn:   conn,
		r:      bufio.NewReader(conn),
		logger: logger.With().Str("component", "transport_client").Logger(),
	}
}

// Bind attaches the peer_id and nonce tracker produced by a successful
// handshake. Calls made before Bind carry no metadata, matching
// ExchangeKey's own exemption from authentication.
func (c *Client) Bind(peerID string, nonceTracker *rpcauth.ClientNonceTracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerID = peerID
	c.nonces = nonceTracker
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// call sends one request envelope and reads back the matching response,
// stamping peer_id/nonce metadata when the client has been Bind-ed.
func (c *Client) call(method Method, req any) (Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := encodePayload(req)
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{Method: method, Payload: body}
	if c.nonces != nil {
		env.PeerID = c.peerID
		env.Nonce = c.nonces.Next()
	}

	if err := WriteFrame(c.conn, env); err != nil {
		return Envelope{}, err
	}

	var resp Envelope
	if err := ReadFrame(c.r, &resp); err != nil {
		return Envelope{}, err
	}
	return resp, nil
}

func (c *Client) Configure(req ConfigureRequest) (StatusResponse, error) {
	var resp StatusResponse
	env, err := c.call(MethodConfigure, req)
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}

// ExchangeKey is exempt from nonce metadata — it is the operation that
// establishes the session the metadata depends on.
func (c *Client) ExchangeKey(ciphertext []byte) (ExchangeKeyResponse, error) {
	var resp ExchangeKeyResponse
	env, err := c.call(MethodExchangeKey, ExchangeKeyRequest{Key: ciphertext})
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}

func (c *Client) LoadModel(filename string) (StatusResponse, error) {
	var resp StatusResponse
	env, err := c.call(MethodLoadModel, LoadModelRequest{Filename: filename})
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}

// UploadModel streams content in UploadChunkSize chunks, matching §6's
// client-streaming UploadModel RPC. The final chunk carries Done=true as
// the stream's write-side EOS signal.
func (c *Client) UploadModel(content io.Reader) (StatusResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := make([]byte, UploadChunkSize)
	var resp StatusResponse
	first := true

	for {
		n, readErr := content.Read(buf)
		done := readErr == io.EOF
		if n > 0 || done {
			chunkBody, err := encodePayload(UploadModelChunk{Content: append([]byte(nil), buf[:n]...), Done: done})
			if err != nil {
				return resp, err
			}
			env := Envelope{Method: MethodUploadModel, Payload: chunkBody}
			if c.nonces != nil {
				env.PeerID = c.peerID
				// Only the first frame of the stream is authenticated; the
				// server's dispatch loop validates metadata once per RPC,
				// before handing the remaining chunk frames to the handler.
				if first {
					env.Nonce = c.nonces.Next()
				}
			}
			if err := WriteFrame(c.conn, env); err != nil {
				return resp, err
			}
			first = false
		}
		if readErr != nil && readErr != io.EOF {
			return resp, berr.Wrap(berr.TransportFault, component, "UploadModel", readErr)
		}
		if done {
			break
		}
	}

	var respEnv Envelope
	if err := ReadFrame(c.r, &respEnv); err != nil {
		return resp, err
	}
	return resp, decodePayload(respEnv.Payload, &resp)
}

func (c *Client) GetInputTensorInfo() (TensorInfoResponse, error) {
	var resp TensorInfoResponse
	env, err := c.call(MethodGetInputTensorInfo, struct{}{})
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}

func (c *Client) SetInputTensorInfo(info []TensorInfoWire) (StatusResponse, error) {
	var resp StatusResponse
	env, err := c.call(MethodSetInputTensorInfo, SetTensorInfoRequest{Info: info})
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}

func (c *Client) GetOutputTensorInfo() (TensorInfoResponse, error) {
	var resp TensorInfoResponse
	env, err := c.call(MethodGetOutputTensorInfo, struct{}{})
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}

func (c *Client) SetOutputTensorInfo(info []TensorInfoWire) (StatusResponse, error) {
	var resp StatusResponse
	env, err := c.call(MethodSetOutputTensorInfo, SetTensorInfoRequest{Info: info})
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}

func (c *Client) Prepare() (PrepareResponse, error) {
	var resp PrepareResponse
	env, err := c.call(MethodPrepare, struct{}{})
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}

func (c *Client) Stop() (StatusResponse, error) {
	var resp StatusResponse
	env, err := c.call(MethodStop, struct{}{})
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}

func (c *Client) GetInfo() (GetInfoResponse, error) {
	var resp GetInfoResponse
	env, err := c.call(MethodGetInfo, struct{}{})
	if err != nil {
		return resp, err
	}
	return resp, decodePayload(env.Payload, &resp)
}
