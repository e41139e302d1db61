// Package rpcauth implements the Request Authenticator (C8): per-RPC nonce
// metadata and the server-side SessionContext map it validates against.
package rpcauth

import (
	"strconv"
	"sync"

	"github.com/beyondnet/beyond/internal/berr"
)

const component = "rpcauth"

// TensorInfo mirrors the wire-level TensorInfo from §3.
type TensorInfo struct {
	Type string
	Size int
	Name string
	Dims []int
}

// SessionContext is one per connected Device, keyed by the server-assigned
// peer_id. It is only ever mutated from the Edge's RPC-handling goroutine
// that owns it (§5's "server thread" rule, adapted to Go as "owning
// goroutine" rather than a literal single OS thread).
type SessionContext struct {
	PeerID           string
	Nonce            uint64
	SessionKey       []byte // first 30 bytes are the SRTP master key
	PipelineHandle   string
	ModelPath        string
	InputTensorInfo  []TensorInfo
	OutputTensorInfo []TensorInfo
}

// SRTPKey returns the first 30 bytes of the session key — the SRTP master
// key — or an error if the session key is shorter than 30 bytes.
func (s *SessionContext) SRTPKey() ([]byte, error) {
	if len(s.SessionKey) < 30 {
		return nil, berr.New(berr.InvalidArgument, component, "SRTPKey")
	}
	return s.SessionKey[:30], nil
}

// Mirror receives a copy of every session state change the Store makes, so
// it can be replicated out of process (see internal/store/redis). The Store
// remains the source of truth for request validation; a Mirror is never
// consulted on the request hot path.
type Mirror interface {
	MirrorSession(ctx *SessionContext)
	MirrorDestroy(peerID string)
}

// Store is the server-side map of peer_id -> SessionContext, plus the
// monotonically increasing counter that allocates fresh peer_ids.
type Store struct {
	mu       sync.Mutex
	nextID   uint64
	sessions map[string]*SessionContext
	mirror   Mirror
}

// NewStore returns an empty session Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*SessionContext)}
}

// SetMirror attaches an optional distributed mirror. Passing nil detaches it.
func (s *Store) SetMirror(m Mirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = m
}

// Create allocates a fresh peer_id and registers a new SessionContext for a
// successful ExchangeKey. Two clients exchanging keys sequentially always
// receive distinct peer_ids.
func (s *Store) Create(nonce uint64, sessionKey []byte) *SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	peerID := strconv.FormatUint(s.nextID, 10)

	ctx := &SessionContext{PeerID: peerID, Nonce: nonce, SessionKey: sessionKey}
	s.sessions[peerID] = ctx
	s.mirrorLocked(ctx)
	return ctx
}

// Get returns the SessionContext for peerID, or NotFound.
func (s *Store) Get(peerID string) (*SessionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.sessions[peerID]
	if !ok {
		return nil, berr.New(berr.NotFound, component, "Get")
	}
	return ctx, nil
}

// Touch re-mirrors ctx after an in-place mutation (e.g. a nonce advance).
// The caller must already hold no lock on ctx beyond what Get returned.
func (s *Store) Touch(ctx *SessionContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrorLocked(ctx)
}

// Destroy removes a session on Stop or client disconnect.
func (s *Store) Destroy(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, peerID)
	if s.mirror != nil {
		s.mirror.MirrorDestroy(peerID)
	}
}

func (s *Store) mirrorLocked(ctx *SessionContext) {
	if s.mirror != nil {
		s.mirror.MirrorSession(ctx)
	}
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
