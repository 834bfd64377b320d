package signing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignUnsignRoundTrip(t *testing.T) {
	signer, err := NewSigner("test-secret")
	require.NoError(t, err)

	token := signer.Sign("a@x.com")
	value, err := signer.Unsign(token)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", value)
}

func TestUnsignRejectsTamperedPayload(t *testing.T) {
	signer, err := NewSigner("test-secret")
	require.NoError(t, err)

	token := signer.Sign("a@x.com")
	parts := strings.SplitN(token, ".", 2)
	tampered := parts[0] + "x." + parts[1]

	_, err = signer.Unsign(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnsignRejectsWrongSecret(t *testing.T) {
	signer, _ := NewSigner("test-secret")
	other, _ := NewSigner("other-secret")

	token := signer.Sign("a@x.com")
	_, err := other.Unsign(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnsignRejectsMalformedToken(t *testing.T) {
	signer, _ := NewSigner("test-secret")

	for _, token := range []string{"", "no-separator", ".sig-only", "payload."} {
		_, err := signer.Unsign(token)
		require.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}
