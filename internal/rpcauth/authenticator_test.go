package rpcauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistinctPeerIDsPerSession(t *testing.T) {
	store := NewStore()
	a := store.Create(1, []byte("key-a"))
	b := store.Create(2, []byte("key-b"))
	assert.NotEqual(t, a.PeerID, b.PeerID)
}

func TestNonceLockstepAndReplayRejection(t *testing.T) {
	store := NewStore()
	const initialNonce = uint64(42)
	session := store.Create(initialNonce, []byte("session-key"))

	auth := NewAuthenticator(store)
	client := NewClientNonceTracker(initialNonce)

	first := client.Next()
	require.NoError(t, auth.Validate(Metadata{MethodName: "GetInfo", PeerID: session.PeerID, Nonce: first}))

	// Replay of the same nonce must be rejected and must not advance the
	// server's nonce.
	err := auth.Validate(Metadata{MethodName: "GetInfo", PeerID: session.PeerID, Nonce: first})
	require.Error(t, err)

	second := client.Next()
	require.NoError(t, auth.Validate(Metadata{MethodName: "GetInfo", PeerID: session.PeerID, Nonce: second}))
}

func TestValidateUnknownPeerIsAuthFault(t *testing.T) {
	store := NewStore()
	auth := NewAuthenticator(store)
	err := auth.Validate(Metadata{MethodName: "GetInfo", PeerID: "nonexistent", Nonce: 1})
	require.Error(t, err)
}

func TestSRTPKeyRequiresThirtyBytes(t *testing.T) {
	ctx := &SessionContext{SessionKey: []byte("too-short")}
	_, err := ctx.SRTPKey()
	require.Error(t, err)

	ctx.SessionKey = make([]byte, 32)
	key, err := ctx.SRTPKey()
	require.NoError(t, err)
	assert.Len(t, key, 30)
}
