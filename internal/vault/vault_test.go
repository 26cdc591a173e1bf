package vault

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)
	return v
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := New([]byte("short"))
	require.Error(t, err)
	_, err = New(bytes.Repeat([]byte{1}, 31))
	require.Error(t, err)
}

func TestSealOpenRoundTrip(t *testing.T) {
	v := testVault(t)
	answers := map[string]string{
		"q1": "si",
		"q2": "no",
		"q3": "a veces",
	}
	sealed, err := v.Seal("Riesgo leve", answers)
	require.NoError(t, err)
	require.NotContains(t, sealed, "Riesgo", "band must not leak into ciphertext")

	band, got, err := v.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "Riesgo leve", band)
	require.Equal(t, answers, got)
}

func TestSealOpenSeparatorInAnswerValue(t *testing.T) {
	// the separator only delimits band from payload; values containing it
	// must survive because only the first occurrence splits
	v := testVault(t)
	answers := map[string]string{"q1": "antes | después"}
	sealed, err := v.Seal("Salud adecuada", answers)
	require.NoError(t, err)

	band, got, err := v.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, "Salud adecuada", band)
	require.Equal(t, answers, got)
}

func TestOpenLegacyRecord(t *testing.T) {
	// records sealed before answers were retained hold only the band text
	v := testVault(t)
	nonce := make([]byte, v.aead.NonceSize())
	_, err := rand.Read(nonce)
	require.NoError(t, err)
	sealed := v.aead.Seal(nonce, nonce, []byte("Riesgo alto"), nil)
	legacy := base64.RawURLEncoding.EncodeToString(sealed)

	band, answers, err := v.Open(legacy)
	require.NoError(t, err)
	require.Equal(t, "Riesgo alto", band)
	require.Nil(t, answers)
}

func TestOpenFailsLoudlyOnTamper(t *testing.T) {
	v := testVault(t)
	sealed, err := v.Seal("Riesgo moderado", map[string]string{"q1": "si"})
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	_, _, err = v.Open(tampered)
	require.True(t, errors.Is(err, ErrIntegrity), "tampering must surface as an integrity error")
}

func TestOpenFailsOnGarbage(t *testing.T) {
	v := testVault(t)

	_, _, err := v.Open("not base64 at all!!!")
	require.True(t, errors.Is(err, ErrIntegrity))

	_, _, err = v.Open(base64.RawURLEncoding.EncodeToString([]byte("xx")))
	require.True(t, errors.Is(err, ErrIntegrity))
}

func TestOpenFailsOnWrongKey(t *testing.T) {
	v := testVault(t)
	sealed, err := v.Seal("Riesgo alto", map[string]string{"q1": "si"})
	require.NoError(t, err)

	other, err := New(bytes.Repeat([]byte{0x07}, 32))
	require.NoError(t, err)
	_, _, err = other.Open(sealed)
	require.True(t, errors.Is(err, ErrIntegrity))
}
