package transport

import (
	"bufio"
	"io"
	"net"

	"github.com/rs/zerolog"

	"github.com/beyondnet/beyond/internal/berr"
	"github.com/beyondnet/beyond/internal/rpcauth"
	"github.com/beyondnet/beyond/internal/security"
)

// Handler is implemented by the Peer Session's server side (internal/session)
// to service each RPC named in §6. Every method except ExchangeKey receives
// the caller's already-authenticated peer_id.
type Handler interface {
	Configure(req ConfigureRequest) (StatusResponse, error)
	ExchangeKey(ciphertext []byte) (ExchangeKeyResponse, error)
	LoadModel(peerID, filename string) (StatusResponse, error)
	UploadModel(peerID string, content io.Reader) (StatusResponse, error)
	GetInputTensorInfo(peerID string) (TensorInfoResponse, error)
	SetInputTensorInfo(peerID string, info []TensorInfoWire) (StatusResponse, error)
	GetOutputTensorInfo(peerID string) (TensorInfoResponse, error)
	SetOutputTensorInfo(peerID string, info []TensorInfoWire) (StatusResponse, error)
	Prepare(peerID string) (PrepareResponse, error)
	Stop(peerID string) (StatusResponse, error)
	GetInfo(peerID string) (GetInfoResponse, error)
}

// Server accepts connections on a net.Listener (TLS already applied by the
// caller — see cmd/edge) and dispatches framed Envelopes to Handler.
// Authenticator may be nil, matching the spec's "no authenticator
// configured" opt-out: every RPC is then accepted unconditionally.
type Server struct {
	listener      net.Listener
	handler       Handler
	authenticator *rpcauth.Authenticator
	limiter       *security.RateLimiter
	bruteForce    *security.BruteForceProtector
	logger        zerolog.Logger
}

// NewServer wraps an already-listening (and, in production, already
// TLS-wrapped) net.Listener.
func NewServer(listener net.Listener, handler Handler, authenticator *rpcauth.Authenticator, logger zerolog.Logger) *Server {
	return &Server{
		listener:      listener,
		handler:       handler,
		authenticator: authenticator,
		logger:        logger.With().Str("component", "transport_server").Logger(),
	}
}

// SetRateLimiter attaches a per-connection RPC rate limiter. A nil limiter
// (the default) accepts every RPC unconditionally.
func (s *Server) SetRateLimiter(limiter *security.RateLimiter) {
	s.limiter = limiter
}

// SetBruteForceProtector attaches a lockout tracker for repeated failed
// ExchangeKey attempts from the same remote address. A nil protector (the
// default) never locks an address out.
func (s *Server) SetBruteForceProtector(protector *security.BruteForceProtector) {
	s.bruteForce = protector
}

// Serve accepts connections until the listener is closed, handling each on
// its own goroutine.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return berr.Wrap(berr.TransportFault, component, "Serve", err)
		}
		go s.handleConn(conn)
	}
}

// HandleConnection services a single already-accepted connection. Serve uses
// it internally for every Accept-ed connection; callers that manage their
// own listener (tests, or a transport other than net.Listener) can call it
// directly.
func (s *Server) HandleConnection(conn net.Conn) {
	s.handleConn(conn)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	remote := conn.RemoteAddr().String()

	for {
		var env Envelope
		if err := ReadFrame(r, &env); err != nil {
			if err != io.EOF {
				s.logger.Debug().Err(err).Msg("connection closed")
			}
			return
		}

		if s.limiter != nil && !s.limiter.Allow(remote) {
			s.logger.Warn().Str("remote", remote).Str("method", string(env.Method)).Msg("rpc rate limit exceeded")
			if writeErr := WriteFrame(conn, errorEnvelope(env.Method)); writeErr != nil {
				s.logger.Warn().Err(writeErr).Msg("failed to write response")
				return
			}
			continue
		}

		if s.bruteForce != nil && env.Method == MethodExchangeKey {
			if allowed, retryAfter, lockErr := s.bruteForce.IsAllowed(remote); !allowed {
				s.logger.Warn().Str("remote", remote).Dur("retry_after", retryAfter).Err(lockErr).Msg("exchange_key locked out after repeated failures")
				if writeErr := WriteFrame(conn, errorEnvelope(env.Method)); writeErr != nil {
					s.logger.Warn().Err(writeErr).Msg("failed to write response")
					return
				}
				continue
			}
		}

		resp, err := s.dispatch(r, env)
		if err != nil {
			s.logger.Warn().Str("method", string(env.Method)).Err(err).Msg("rpc failed")
		}

		if s.bruteForce != nil && env.Method == MethodExchangeKey {
			if err != nil {
				s.bruteForce.RecordFailure(remote)
			} else {
				s.bruteForce.RecordSuccess(remote)
			}
		}
		if writeErr := WriteFrame(conn, resp); writeErr != nil {
			s.logger.Warn().Err(writeErr).Msg("failed to write response")
			return
		}
	}
}

func (s *Server) dispatch(r io.Reader, env Envelope) (Envelope, error) {
	if env.Method != MethodExchangeKey {
		if s.authenticator != nil {
			err := s.authenticator.Validate(rpcauth.Metadata{
				MethodName: string(env.Method),
				PeerID:     env.PeerID,
				Nonce:      env.Nonce,
			})
			if err != nil {
				return errorEnvelope(env.Method), err
			}
		}
	}

	switch env.Method {
	case MethodConfigure:
		var req ConfigureRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return errorEnvelope(env.Method), err
		}
		resp, err := s.handler.Configure(req)
		return replyEnvelope(env.Method, resp), err

	case MethodExchangeKey:
		var req ExchangeKeyRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return errorEnvelope(env.Method), err
		}
		resp, err := s.handler.ExchangeKey(req.Key)
		return replyEnvelope(env.Method, resp), err

	case MethodLoadModel:
		var req LoadModelRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return errorEnvelope(env.Method), err
		}
		resp, err := s.handler.LoadModel(env.PeerID, req.Filename)
		return replyEnvelope(env.Method, resp), err

	case MethodUploadModel:
		resp, err := s.handler.UploadModel(env.PeerID, newChunkReader(r, env))
		return replyEnvelope(env.Method, resp), err

	case MethodGetInputTensorInfo:
		resp, err := s.handler.GetInputTensorInfo(env.PeerID)
		return replyEnvelope(env.Method, resp), err

	case MethodSetInputTensorInfo:
		var req SetTensorInfoRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return errorEnvelope(env.Method), err
		}
		resp, err := s.handler.SetInputTensorInfo(env.PeerID, req.Info)
		return replyEnvelope(env.Method, resp), err

	case MethodGetOutputTensorInfo:
		resp, err := s.handler.GetOutputTensorInfo(env.PeerID)
		return replyEnvelope(env.Method, resp), err

	case MethodSetOutputTensorInfo:
		var req SetTensorInfoRequest
		if err := decodePayload(env.Payload, &req); err != nil {
			return errorEnvelope(env.Method), err
		}
		resp, err := s.handler.SetOutputTensorInfo(env.PeerID, req.Info)
		return replyEnvelope(env.Method, resp), err

	case MethodPrepare:
		resp, err := s.handler.Prepare(env.PeerID)
		return replyEnvelope(env.Method, resp), err

	case MethodStop:
		resp, err := s.handler.Stop(env.PeerID)
		return replyEnvelope(env.Method, resp), err

	case MethodGetInfo:
		resp, err := s.handler.GetInfo(env.PeerID)
		return replyEnvelope(env.Method, resp), err

	default:
		return errorEnvelope(env.Method), berr.New(berr.UnsupportedOperation, component, "dispatch")
	}
}
