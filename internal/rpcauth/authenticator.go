package rpcauth

import (
	"sync"

	"github.com/beyondnet/beyond/internal/berr"
)

// Metadata is the per-RPC authentication envelope attached by the client to
// every RPC except ExchangeKey (§4.8).
type Metadata struct {
	MethodName string
	PeerID     string
	Nonce      uint64
}

// ClientNonceTracker is the Device-side half of §4.8: it holds the last
// nonce used (seeded from ExchangeKey), and Next advances it by one before
// returning it, once per RPC regardless of the RPC's outcome.
type ClientNonceTracker struct {
	mu    sync.Mutex
	nonce uint64
}

// NewClientNonceTracker seeds the tracker with the nonce chosen during
// ExchangeKey.
func NewClientNonceTracker(initial uint64) *ClientNonceTracker {
	return &ClientNonceTracker{nonce: initial}
}

// Next advances the tracker by one and returns the nonce to attach to the
// next RPC — the session's last-accepted value (seeded from ExchangeKey)
// only ever moves forward by exactly one per call, matching the server's
// "nonce+1 next" acceptance rule.
func (c *ClientNonceTracker) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonce++
	return c.nonce
}

// Authenticator is the Edge-side half of §4.8: it validates each RPC's
// metadata against the Store and advances the session's nonce on success.
// A nil Authenticator means "no authenticator configured" — every RPC is
// accepted unconditionally, matching the spec's opt-out path.
type Authenticator struct {
	store *Store
}

// Store returns the Authenticator's bound session Store, so callers can
// attach a distributed Mirror without threading it through construction.
func (a *Authenticator) Store() *Store {
	return a.store
}

// NewAuthenticator binds an Authenticator to a session Store.
func NewAuthenticator(store *Store) *Authenticator {
	return &Authenticator{store: store}
}

// Validate checks md against the session's current nonce. On success it
// advances the session's nonce by exactly one (saturating add; overflow is
// a fatal protocol error that the caller must treat as session-terminating,
// surfaced here as AuthFault so the RPC layer can close the connection).
func (a *Authenticator) Validate(md Metadata) error {
	if md.MethodName == "" {
		return berr.New(berr.AuthFault, component, "Validate")
	}

	ctx, err := a.store.Get(md.PeerID)
	if err != nil {
		return berr.New(berr.AuthFault, component, "Validate")
	}

	next := ctx.Nonce + 1
	if next < ctx.Nonce {
		return berr.New(berr.AuthFault, component, "Validate")
	}
	if md.Nonce != next {
		return berr.New(berr.AuthFault, component, "Validate")
	}
	ctx.Nonce = next
	a.store.Touch(ctx)
	return nil
}
