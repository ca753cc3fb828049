package credential

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Generated by werkzeug-compatible pbkdf2_hmac for the passwords "pw" and "coffee".
const (
	legacyPW     = "pbkdf2:sha256:260000$Xy7pQ2aB$1f5fafc989c0164d1434ef111d65e349ca4d9dad381623997f8cc0d60523f28f"
	legacyCoffee = "pbkdf2:sha256:1000$q1w2e3r4$7e35a2e423bc66ed8988d7298c0b1928916e276617b5df4cc8b446b3c5f906e4"
)

func TestHashVerify_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, pw := range []string{"pw", "default", "päss wörd", strings.Repeat("x", 60)} {
		cred, err := h.Hash(pw)
		require.NoError(t, err)
		assert.NotEqual(t, pw, cred)
		assert.True(t, h.Verify(pw, cred), "password %q should verify", pw)
		assert.False(t, h.Verify(pw+"!", cred))
	}
}

func TestHash_SaltsEveryCall(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHash_RejectsEmpty(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)

	_, err = NewHasher(bcrypt.MinCost).Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestVerify_DifferentPasswords(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	cred, err := h.Hash("pw2")
	require.NoError(t, err)

	assert.False(t, h.Verify("pw", cred))
}

func TestVerify_Malformed(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	cases := []string{
		"",
		"plaintext",
		"$2a$04$short",
		"pbkdf2:sha256",
		"pbkdf2:md5:1000$salt$00ff",
		"pbkdf2:sha256:abc$salt$00ff",
		"pbkdf2:sha256:1000$salt$not-hex",
		"pbkdf2:sha256:1000:9$salt$00ff",
	}
	for _, c := range cases {
		assert.False(t, h.Verify("pw", c), "credential %q must not verify", c)
	}
}

func TestVerify_LegacyPBKDF2(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	assert.True(t, h.Verify("pw", legacyPW))
	assert.False(t, h.Verify("PW", legacyPW))
	assert.True(t, h.Verify("coffee", legacyCoffee))
	assert.False(t, h.Verify("tea", legacyCoffee))
}

func TestNeedsRehash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	current, err := h.Hash("pw")
	require.NoError(t, err)
	stronger, err := NewHasher(bcrypt.MinCost + 1).Hash("pw")
	require.NoError(t, err)

	assert.True(t, h.NeedsRehash(legacyPW))
	assert.False(t, h.NeedsRehash(current))
	assert.True(t, h.NeedsRehash(stronger))
	assert.False(t, h.NeedsRehash("garbage"))
}

func TestNewHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}
