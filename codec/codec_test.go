package codec_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumencrm/ledger-engine/codec"
	"github.com/lumencrm/ledger-engine/engine"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// =============================================================================
// ROUND-TRIP
// =============================================================================

func TestCodec_RoundTrip(t *testing.T) {
	// GIVEN: representable currency values with <= 2 fractional digits
	// WHEN: encoded then decoded
	// THEN: the exact value comes back

	c := codec.NewRandom()

	for _, s := range []string{"0", "0.01", "1", "500", "350.01", "99999999.99", "0.1"} {
		opaque, err := c.Encode(dec(s))
		require.NoError(t, err)

		got := c.Decode(opaque)
		require.NotNil(t, got, "value %s decoded to nil", s)
		assert.True(t, got.Equal(dec(s)), "want %s, got %s", s, got)
	}
}

func TestCodec_Encode_RoundsHalfUpToTwoPlaces(t *testing.T) {
	c := codec.NewRandom()

	opaque, err := c.Encode(dec("250.005"))
	require.NoError(t, err)

	got := c.Decode(opaque)
	require.NotNil(t, got)
	assert.True(t, got.Equal(dec("250.01")), "got %s", got)
}

func TestCodec_Encode_DoesNotLeakPlaintext(t *testing.T) {
	// Same value twice -> different blobs, neither containing the digits.
	c := codec.NewRandom()

	a, err := c.Encode(dec("1234.56"))
	require.NoError(t, err)
	b, err := c.Encode(dec("1234.56"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "1234")
}

// =============================================================================
// FAILURE MODES
// =============================================================================

func TestCodec_Decode_EmptyIsNil(t *testing.T) {
	c := codec.NewRandom()
	assert.Nil(t, c.Decode(""))
}

func TestCodec_Decode_GarbageIsNil(t *testing.T) {
	c := codec.NewRandom()

	assert.Nil(t, c.Decode("not base64 !!"))
	assert.Nil(t, c.Decode("YWJj")) // valid base64, too short for a nonce
}

func TestCodec_Decode_TamperedIsNil(t *testing.T) {
	// GIVEN: a valid blob with one flipped character
	// THEN: authentication fails and the result is nil, not a wrong number
	c := codec.NewRandom()

	opaque, err := c.Encode(dec("500"))
	require.NoError(t, err)

	tampered := []byte(opaque)
	if tampered[len(tampered)-1] == 'A' {
		tampered[len(tampered)-1] = 'B'
	} else {
		tampered[len(tampered)-1] = 'A'
	}
	assert.Nil(t, c.Decode(string(tampered)))
}

func TestCodec_Decode_WrongKeyIsNil(t *testing.T) {
	a := codec.NewRandom()
	b := codec.NewRandom()

	opaque, err := a.Encode(dec("500"))
	require.NoError(t, err)
	assert.Nil(t, b.Decode(opaque))
}

func TestCodec_DecodeStrict_DistinguishesUnsetFromCorrupt(t *testing.T) {
	c := codec.NewRandom()

	v, err := c.DecodeStrict("")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = c.DecodeStrict("garbage")
	assert.True(t, errors.Is(err, engine.ErrDecode))
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func TestCodec_NewFromHex(t *testing.T) {
	key := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	c, err := codec.NewFromHex(key)
	require.NoError(t, err)

	opaque, err := c.Encode(dec("42"))
	require.NoError(t, err)

	// Same key material decodes what the first instance sealed.
	c2, err := codec.NewFromHex(key)
	require.NoError(t, err)
	got := c2.Decode(opaque)
	require.NotNil(t, got)
	assert.True(t, got.Equal(dec("42")))
}

func TestCodec_NewFromHex_BadKey(t *testing.T) {
	_, err := codec.NewFromHex("deadbeef") // too short
	assert.Error(t, err)

	_, err = codec.NewFromHex("zz")
	assert.Error(t, err)
}
