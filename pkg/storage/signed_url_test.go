package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", 15*time.Minute)

	token, expiresAt, err := signer.Generate("req-1", "https://storage.example.com/docs/u1.pdf")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	requestID, documentURL, parsedExpiry, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, "https://storage.example.com/docs/u1.pdf", documentURL)
	assert.Equal(t, expiresAt.Unix(), parsedExpiry.Unix())
}

func TestSignedURLRejectsTamperedToken(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", 15*time.Minute)

	token, _, err := signer.Generate("req-1", "https://storage.example.com/docs/u1.pdf")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 4)
	parts[0] = "req-2"
	tampered := strings.Join(parts, ".")

	_, _, _, err = signer.Parse(tampered)
	assert.Error(t, err)
}

func TestSignedURLRejectsWrongSecret(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", 15*time.Minute)
	other := NewSignedURLSigner("other-secret", 15*time.Minute)

	token, _, err := signer.Generate("req-1", "https://storage.example.com/docs/u1.pdf")
	require.NoError(t, err)

	_, _, _, err = other.Parse(token)
	assert.Error(t, err)
}

func TestSignedURLRejectsExpiredToken(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("test-secret"), ttl: -time.Minute}

	token, _, err := signer.Generate("req-1", "https://storage.example.com/docs/u1.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSignedURLRejectsMalformedToken(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Minute)

	_, _, _, err := signer.Parse("not-a-token")
	assert.Error(t, err)
}

func TestGenerateRequiresInputs(t *testing.T) {
	signer := NewSignedURLSigner("test-secret", time.Minute)

	_, _, err := signer.Generate("", "https://storage.example.com/docs/u1.pdf")
	assert.Error(t, err)

	_, _, err = signer.Generate("req-1", "")
	assert.Error(t, err)

	empty := NewSignedURLSigner("", time.Minute)
	_, _, err = empty.Generate("req-1", "https://storage.example.com/docs/u1.pdf")
	assert.Error(t, err)
}
