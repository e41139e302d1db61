package berr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(CryptoFault, "asymmetric", "Encrypt", cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "asymmetric: Encrypt: CryptoFault: boom")
}

func TestIsMatchesKindOnly(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(NotReady, "keymaterial", "GetPrivateKey"))

	assert.True(t, Is(err, NotReady))
	assert.False(t, Is(err, AuthFault))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, NotReady, kind)
}

func TestErrnoMapping(t *testing.T) {
	cases := map[Kind]int{
		InvalidArgument: -22,
		SequenceError:   -84,
		AlreadyExists:   -114,
		NotFound:        -2,
		OutOfMemory:     -12,
		CryptoFault:     -14,
		UnsupportedOperation: -95,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.Errno(), kind.String())
	}
}
