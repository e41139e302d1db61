package session

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/beyondnet/beyond/internal/berr"
	"github.com/beyondnet/beyond/internal/credential"
	"github.com/beyondnet/beyond/internal/handshake"
	"github.com/beyondnet/beyond/internal/rpcauth"
	"github.com/beyondnet/beyond/internal/transport"
)

// EdgeSession is one server-side Peer Session entry, created on a successful
// ExchangeKey and destroyed on Stop (§4.9).
type EdgeSession struct {
	mu            sync.Mutex
	state         State
	modelPath     string
	inputTensors  []TensorInfo
	outputTensors []TensorInfo
	queue         *RequestQueue
	endpoints     PipelineEndpoints
}

// AuditSink receives a record of lifecycle events worth persisting beyond
// the in-memory session map (handshake outcomes, session teardown). A nil
// AuditSink means no audit log is configured.
type AuditSink interface {
	Record(peerID, eventType, detail string)
}

// Edge implements transport.Handler, servicing every Device connected to it.
// It multiplexes sessions by peer_id using the shared rpcauth.Store, mirroring
// the spec's "SessionContexts on server stored in map keyed by peer_id,
// mutated only on the gRPC server thread" — here the dispatch goroutine per
// connection plays that role since each connection owns one peer_id.
type Edge struct {
	mu          sync.Mutex
	engine      *credential.Engine
	uuid        string
	store       *rpcauth.Store
	sessions    map[string]*EdgeSession
	storagePath string
	allocPort   func() (int, error)
	audit       AuditSink
	logger      zerolog.Logger
}

// NewEdge constructs an Edge bound to the Credential Engine used to decrypt
// incoming handshakes, the Edge's own configured uuid, and the directory
// uploaded models are persisted under.
func NewEdge(engine *credential.Engine, uuid, storagePath string, store *rpcauth.Store, allocPort func() (int, error), logger zerolog.Logger) *Edge {
	return &Edge{
		engine:      engine,
		uuid:        uuid,
		store:       store,
		sessions:    make(map[string]*EdgeSession),
		storagePath: storagePath,
		allocPort:   allocPort,
		logger:      logger.With().Str("component", "session_edge").Logger(),
	}
}

// SetAuditSink attaches an optional audit log. Passing nil detaches it.
func (e *Edge) SetAuditSink(sink AuditSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audit = sink
}

func (e *Edge) recordAudit(peerID, eventType, detail string) {
	e.mu.Lock()
	sink := e.audit
	e.mu.Unlock()
	if sink != nil {
		sink.Record(peerID, eventType, detail)
	}
}

func (e *Edge) Configure(req transport.ConfigureRequest) (transport.StatusResponse, error) {
	return transport.StatusResponse{Status: transport.StatusOK}, nil
}

// ExchangeKey runs the server half of the handshake (§4.7) and allocates a
// fresh SessionContext + EdgeSession under a new peer_id.
func (e *Edge) ExchangeKey(ciphertext []byte) (transport.ExchangeKeyResponse, error) {
	result, err := handshake.HandleExchangeKeyRequest(e.engine, e.uuid, ciphertext)
	if err != nil {
		status := transport.Status(berr.InvalidArgument.Errno())
		if kind, ok := berr.KindOf(err); ok {
			status = transport.Status(kind.Errno())
		}
		e.recordAudit("", "exchange_key_failed", err.Error())
		return transport.ExchangeKeyResponse{Status: status}, err
	}

	ctx := e.store.Create(result.Nonce, result.SessionKey)

	e.mu.Lock()
	e.sessions[ctx.PeerID] = &EdgeSession{state: StateActivated, queue: NewRequestQueue()}
	e.mu.Unlock()

	e.recordAudit(ctx.PeerID, "exchange_key_succeeded", "")

	return transport.ExchangeKeyResponse{Status: transport.StatusOK, ID: ctx.PeerID}, nil
}

func (e *Edge) session(peerID string) (*EdgeSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[peerID]
	if !ok {
		return nil, berr.New(berr.NotFound, component, "session")
	}
	return s, nil
}

// LoadModel reports NotFound when the named file is absent under the
// storage path, signalling the Device to fall back to UploadModel.
func (e *Edge) LoadModel(peerID, filename string) (transport.StatusResponse, error) {
	s, err := e.session(peerID)
	if err != nil {
		return transport.StatusResponse{}, err
	}

	full := filepath.Join(e.storagePath, filepath.Base(filename))
	if _, statErr := os.Stat(full); statErr != nil {
		return transport.StatusResponse{Status: transport.Status(berr.NotFound.Errno())}, berr.Wrap(berr.NotFound, component, "LoadModel", statErr)
	}

	s.mu.Lock()
	s.modelPath = full
	s.mu.Unlock()
	return transport.StatusResponse{Status: transport.StatusOK}, nil
}

// UploadModel persists the streamed content under storagePath in a newly
// created "upload-*" file and records that file as the session's model. The
// requested path's basename is not used for the file name, so a later
// LoadModel of that name does not find the uploaded file.
func (e *Edge) UploadModel(peerID string, content io.Reader) (transport.StatusResponse, error) {
	s, err := e.session(peerID)
	if err != nil {
		return transport.StatusResponse{}, err
	}

	f, err := os.CreateTemp(e.storagePath, "upload-*")
	if err != nil {
		return transport.StatusResponse{}, berr.Wrap(berr.OutOfMemory, component, "UploadModel", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, content); err != nil {
		os.Remove(f.Name())
		return transport.StatusResponse{}, berr.Wrap(berr.TransportFault, component, "UploadModel", err)
	}

	s.mu.Lock()
	s.modelPath = f.Name()
	s.mu.Unlock()

	return transport.StatusResponse{Status: transport.StatusOK}, nil
}

func (e *Edge) GetInputTensorInfo(peerID string) (transport.TensorInfoResponse, error) {
	s, err := e.session(peerID)
	if err != nil {
		return transport.TensorInfoResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return transport.TensorInfoResponse{Info: toWireList(s.inputTensors), Status: transport.StatusOK}, nil
}

func (e *Edge) SetInputTensorInfo(peerID string, info []transport.TensorInfoWire) (transport.StatusResponse, error) {
	s, err := e.session(peerID)
	if err != nil {
		return transport.StatusResponse{}, err
	}
	infos, err := fromWireList(info)
	if err != nil {
		return transport.StatusResponse{}, err
	}
	s.mu.Lock()
	s.inputTensors = infos
	s.mu.Unlock()
	return transport.StatusResponse{Status: transport.StatusOK}, nil
}

func (e *Edge) GetOutputTensorInfo(peerID string) (transport.TensorInfoResponse, error) {
	s, err := e.session(peerID)
	if err != nil {
		return transport.TensorInfoResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return transport.TensorInfoResponse{Info: toWireList(s.outputTensors), Status: transport.StatusOK}, nil
}

func (e *Edge) SetOutputTensorInfo(peerID string, info []transport.TensorInfoWire) (transport.StatusResponse, error) {
	s, err := e.session(peerID)
	if err != nil {
		return transport.StatusResponse{}, err
	}
	infos, err := fromWireList(info)
	if err != nil {
		return transport.StatusResponse{}, err
	}
	s.mu.Lock()
	s.outputTensors = infos
	s.mu.Unlock()
	return transport.StatusResponse{Status: transport.StatusOK}, nil
}

// Prepare allocates a pair of ports, one call each to the allocPort function
// given to NewEdge, for the request/response legs the Device's pipeline will
// connect to.
func (e *Edge) Prepare(peerID string) (transport.PrepareResponse, error) {
	s, err := e.session(peerID)
	if err != nil {
		return transport.PrepareResponse{}, err
	}

	requestPort, err := e.allocPort()
	if err != nil {
		return transport.PrepareResponse{}, berr.Wrap(berr.TransportFault, component, "Prepare", err)
	}
	responsePort, err := e.allocPort()
	if err != nil {
		return transport.PrepareResponse{}, berr.Wrap(berr.TransportFault, component, "Prepare", err)
	}

	s.mu.Lock()
	s.state = StatePrepared
	s.endpoints = PipelineEndpoints{RequestPort: requestPort, ResponsePort: responsePort}
	s.mu.Unlock()

	return transport.PrepareResponse{RequestPort: requestPort, ResponsePort: responsePort, Status: transport.StatusOK}, nil
}

func (e *Edge) Stop(peerID string) (transport.StatusResponse, error) {
	s, err := e.session(peerID)
	if err != nil {
		return transport.StatusResponse{}, err
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	e.store.Destroy(peerID)

	e.mu.Lock()
	delete(e.sessions, peerID)
	e.mu.Unlock()

	e.recordAudit(peerID, "session_stopped", "")

	return transport.StatusResponse{Status: transport.StatusOK}, nil
}

func (e *Edge) GetInfo(peerID string) (transport.GetInfoResponse, error) {
	if _, err := e.session(peerID); err != nil {
		return transport.GetInfoResponse{}, err
	}
	return transport.GetInfoResponse{Status: transport.StatusOK}, nil
}

// Session exposes an EdgeSession for the pipeline bridge to drive once
// Prepare has run.
func (e *Edge) Session(peerID string) (*EdgeSession, error) {
	return e.session(peerID)
}

func (s *EdgeSession) Queue() *RequestQueue { return s.queue }

func (s *EdgeSession) Endpoints() PipelineEndpoints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoints
}

func (s *EdgeSession) ModelPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelPath
}
