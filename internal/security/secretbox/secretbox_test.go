package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestSealOpen_RoundTrip(t *testing.T) {
	b, err := New(testKey())
	require.NoError(t, err)

	msg := "TL|0123456789abcdef ✓"
	ct, err := b.Seal(msg)
	require.NoError(t, err)
	require.NotContains(t, ct, msg)

	again, err := b.Seal(msg)
	require.NoError(t, err)
	require.NotEqual(t, ct, again, "nonce aleatorio por valor")

	pt, err := b.Open(ct)
	require.NoError(t, err)
	require.Equal(t, msg, pt)
}

func TestOpen_DetectsTamper(t *testing.T) {
	b, err := New(testKey())
	require.NoError(t, err)
	ct, err := b.Seal("top secret")
	require.NoError(t, err)

	parts := strings.Split(ct, "|")
	require.Len(t, parts, 2)
	bs, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	bs[0] ^= 0x01
	_, err = b.Open(parts[0] + "|" + base64.StdEncoding.EncodeToString(bs))
	require.Error(t, err)

	_, err = b.Open("plain-value")
	require.ErrorIs(t, err, ErrFormat)
}

func TestOpen_WrongKey(t *testing.T) {
	b, err := New(testKey())
	require.NoError(t, err)
	ct, err := b.Seal("x")
	require.NoError(t, err)

	other := testKey()
	other[0] ^= 0xff
	b2, err := New(other)
	require.NoError(t, err)
	_, err = b2.Open(ct)
	require.Error(t, err)
}

func TestParseKey(t *testing.T) {
	raw := testKey()
	for name, enc := range map[string]string{
		"base64":     base64.StdEncoding.EncodeToString(raw),
		"base64_raw": base64.RawStdEncoding.EncodeToString(raw),
		"hex":        hex.EncodeToString(raw),
	} {
		t.Run(name, func(t *testing.T) {
			k, err := ParseKey(" " + enc + "\n")
			require.NoError(t, err)
			require.Equal(t, raw, k)
		})
	}

	_, err := ParseKey("short")
	require.Error(t, err)
	_, err = New([]byte("short"))
	require.Error(t, err)
}
