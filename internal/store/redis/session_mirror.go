package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/beyondnet/beyond/internal/rpcauth"
	"github.com/rs/zerolog"
)

// sessionTTL bounds how long a mirrored session survives in Redis without a
// nonce advance. A Device that has gone silent this long has almost
// certainly reconnected through a fresh ExchangeKey anyway.
const sessionTTL = 30 * time.Minute

// mirroredSession is the JSON shape stored under each session key. It
// excludes SessionKey: the SRTP/session secret never leaves the owning
// Edge process, even to its own Redis mirror.
type mirroredSession struct {
	PeerID           string                `json:"peer_id"`
	Nonce            uint64                `json:"nonce"`
	PipelineHandle   string                `json:"pipeline_handle"`
	ModelPath        string                `json:"model_path"`
	InputTensorInfo  []rpcauth.TensorInfo  `json:"input_tensor_info"`
	OutputTensorInfo []rpcauth.TensorInfo  `json:"output_tensor_info"`
}

// SessionMirror replicates rpcauth.Store's SessionContext map to Redis so a
// second Edge process can observe in-flight sessions across a restart. It
// implements rpcauth.Mirror.
type SessionMirror struct {
	client *Client
	logger zerolog.Logger
}

// NewSessionMirror creates a Redis-backed rpcauth.Mirror.
func NewSessionMirror(client *Client, logger zerolog.Logger) *SessionMirror {
	return &SessionMirror{
		client: client,
		logger: logger.With().Str("component", "redis_session_mirror").Logger(),
	}
}

func sessionKey(peerID string) string {
	return "beyond:session:" + peerID
}

// MirrorSession writes the current state of ctx to Redis, refreshing its TTL.
func (m *SessionMirror) MirrorSession(ctx *rpcauth.SessionContext) {
	snap := mirroredSession{
		PeerID:           ctx.PeerID,
		Nonce:            ctx.Nonce,
		PipelineHandle:   ctx.PipelineHandle,
		ModelPath:        ctx.ModelPath,
		InputTensorInfo:  ctx.InputTensorInfo,
		OutputTensorInfo: ctx.OutputTensorInfo,
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		m.logger.Warn().Err(err).Str("peer_id", ctx.PeerID).Msg("failed to marshal session snapshot")
		return
	}

	rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := m.client.Set(rctx, sessionKey(ctx.PeerID), payload, sessionTTL); err != nil {
		m.logger.Warn().Err(err).Str("peer_id", ctx.PeerID).Msg("failed to mirror session to redis")
	}
}

// MirrorDestroy removes a session's mirrored entry.
func (m *SessionMirror) MirrorDestroy(peerID string) {
	rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := m.client.Delete(rctx, sessionKey(peerID)); err != nil {
		m.logger.Warn().Err(err).Str("peer_id", peerID).Msg("failed to remove mirrored session from redis")
	}
}

// Load fetches a mirrored session snapshot, for an operator inspecting state
// after a restart. It never feeds back into request validation (§ distributed
// session mirror is read-only from the application's perspective).
func (m *SessionMirror) Load(ctx context.Context, peerID string) (mirroredSession, bool, error) {
	raw, err := m.client.Get(ctx, sessionKey(peerID))
	if err != nil {
		return mirroredSession{}, false, nil
	}

	var snap mirroredSession
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return mirroredSession{}, false, err
	}
	return snap, true, nil
}
