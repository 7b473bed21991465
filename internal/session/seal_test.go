package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealTokenRoundTrip(t *testing.T) {
	m := NewManager(nil, nil, "secret", 0, nil)

	sealed, err := m.SealToken("eyJ.session.token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "eyJ.session.token")
	assert.False(t, strings.Contains(sealed, "session"))

	again, err := m.SealToken("eyJ.session.token")
	require.NoError(t, err)
	assert.Equal(t, sealed, again)

	other, err := m.SealToken("eyJ.other.token")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, other)

	opened, err := m.OpenToken(sealed)
	require.NoError(t, err)
	assert.Equal(t, "eyJ.session.token", opened)
}

func TestOpenTokenRejectsForeignOrTamperedText(t *testing.T) {
	m := NewManager(nil, nil, "secret", 0, nil)
	sealed, err := m.SealToken("tok")
	require.NoError(t, err)

	_, err = NewManager(nil, nil, "another-secret", 0, nil).OpenToken(sealed)
	assert.ErrorIs(t, err, ErrSealedToken)

	tampered := []byte(sealed)
	tampered[len(tampered)/2] ^= 0x03
	_, err = m.OpenToken(string(tampered))
	assert.ErrorIs(t, err, ErrSealedToken)

	_, err = m.OpenToken("!!")
	assert.ErrorIs(t, err, ErrSealedToken)

	_, err = m.SealToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
