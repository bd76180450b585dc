package cardano

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/decred/dcrd/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, hrp string, data []byte) string {
	t.Helper()
	out, err := bech32.EncodeFromBase256(hrp, data)
	require.NoError(t, err)
	return out
}

func TestNormalizeDRepID(t *testing.T) {
	keyHash := bytes.Repeat([]byte{0xab}, CredentialLen)
	scriptHash := bytes.Repeat([]byte{0x01}, CredentialLen)

	cip129Key := encode(t, "drep", append([]byte{0x22}, keyHash...))
	cip129Script := encode(t, "drep", append([]byte{0x23}, scriptHash...))

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"cip105 key", encode(t, "drep", keyHash), cip129Key},
		{"cip105 script", encode(t, "drep_script", scriptHash), cip129Script},
		{"cip129 key unchanged", cip129Key, cip129Key},
		{"cip129 script unchanged", cip129Script, cip129Script},
		{"raw hex hash", hex.EncodeToString(keyHash), cip129Key},
		{"upper case and spaces", "  " + strings.ToUpper(encode(t, "drep", keyHash)) + " ", cip129Key},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDRepID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := NormalizeDRepID(got)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestNormalizeDRepIDFromVerificationKey(t *testing.T) {
	vk := bytes.Repeat([]byte{0x07}, 32)
	got, err := NormalizeDRepID(encode(t, "drep_vk", vk))
	require.NoError(t, err)

	cred, err := ParseDRepID(got)
	require.NoError(t, err)
	assert.Equal(t, KeyHash(vk), cred.Hash)
	assert.False(t, cred.Script)
}

func TestNormalizeDRepIDRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "drep1abc", "pool1xyz", encode(t, "pool", bytes.Repeat([]byte{1}, 28)), encode(t, "drep", []byte{0x99, 1, 2})} {
		_, err := NormalizeDRepID(in)
		assert.ErrorIs(t, err, ErrInvalidDRepID, in)
	}
}

func TestCIP105RoundTrip(t *testing.T) {
	cred := DRepCredential{Hash: bytes.Repeat([]byte{0x42}, CredentialLen)}
	parsed, err := ParseDRepID(cred.CIP105())
	require.NoError(t, err)
	assert.Equal(t, cred.CIP129(), parsed.CIP129())
	assert.Equal(t, cred.HashHex(), parsed.HashHex())
}

func TestGovActionID(t *testing.T) {
	txHash := strings.Repeat("0a", 32)
	for _, idx := range []uint32{0, 17, 300} {
		id := GovActionID{TxHash: txHash, Index: idx}
		b, err := id.Bech32()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(b, "gov_action1"))

		back, err := ParseGovActionID(b)
		require.NoError(t, err)
		assert.Equal(t, id, back)
	}

	_, err := ParseGovActionID("gov_action1xyz")
	assert.ErrorIs(t, err, ErrInvalidGovActionID)
}

func TestParseTxRef(t *testing.T) {
	txHash := strings.Repeat("AB", 32)
	ref, err := ParseTxRef(txHash + ":3")
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(txHash), ref.TxHash)
	assert.EqualValues(t, 3, ref.Index)
	assert.Equal(t, strings.ToLower(txHash)+":3", ref.String())

	ref, err = ParseTxRef(strings.ToLower(txHash) + "#0")
	require.NoError(t, err)
	assert.EqualValues(t, 0, ref.Index)

	for _, bad := range []string{"", ":1", txHash + ":", "abc:1", txHash + ":x"} {
		_, err := ParseTxRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestStakeAddress(t *testing.T) {
	hash := bytes.Repeat([]byte{0x5c}, CredentialLen)
	mainnet := append([]byte{0xe1}, hash...)
	testnet := append([]byte{0xe0}, hash...)

	bechMain := encode(t, "stake", mainnet)
	got, err := NormalizeStakeAddress(hex.EncodeToString(mainnet))
	require.NoError(t, err)
	assert.Equal(t, bechMain, got)

	sa, err := ParseStakeAddress(bechMain)
	require.NoError(t, err)
	assert.True(t, sa.Mainnet())

	bechTest := encode(t, "stake_test", testnet)
	sa, err = ParseStakeAddress(bechTest)
	require.NoError(t, err)
	assert.False(t, sa.Mainnet())
	assert.Equal(t, bechTest, sa.String())

	_, err = ParseStakeAddress(encode(t, "stake", testnet))
	assert.ErrorIs(t, err, ErrInvalidStakeAddress)
	_, err = ParseStakeAddress(encode(t, "stake", append([]byte{0x01}, hash...)))
	assert.ErrorIs(t, err, ErrInvalidStakeAddress)
	_, err = ParseStakeAddress("addr1qxy")
	assert.ErrorIs(t, err, ErrInvalidStakeAddress)
}
