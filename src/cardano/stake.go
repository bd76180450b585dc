package cardano

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/bech32"
)

const (
	hrpStake        = "stake"
	hrpStakeTestnet = "stake_test"

	stakeKeyType    byte = 0x0e
	stakeScriptType byte = 0x0f
)

var ErrInvalidStakeAddress = errors.New("invalid stake address")

// StakeAddress is a reward account: one header byte and a credential hash.
type StakeAddress struct {
	Header byte
	Hash   []byte
}

// ParseStakeAddress accepts bech32 stake addresses and the hex encoding
// returned by CIP-30 getRewardAddresses.
func ParseStakeAddress(addr string) (StakeAddress, error) {
	addr = strings.TrimSpace(addr)
	if raw, err := hex.DecodeString(addr); err == nil {
		return stakeFromBytes(raw)
	}

	hrp, data, err := bech32.DecodeToBase256(strings.ToLower(addr))
	if err != nil {
		return StakeAddress{}, fmt.Errorf("%w: %v", ErrInvalidStakeAddress, err)
	}
	if hrp != hrpStake && hrp != hrpStakeTestnet {
		return StakeAddress{}, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidStakeAddress, hrp)
	}
	sa, err := stakeFromBytes(data)
	if err != nil {
		return StakeAddress{}, err
	}
	if sa.Mainnet() != (hrp == hrpStake) {
		return StakeAddress{}, fmt.Errorf("%w: network does not match prefix", ErrInvalidStakeAddress)
	}
	return sa, nil
}

func stakeFromBytes(raw []byte) (StakeAddress, error) {
	if len(raw) != CredentialLen+1 {
		return StakeAddress{}, fmt.Errorf("%w: %d bytes", ErrInvalidStakeAddress, len(raw))
	}
	if t := raw[0] >> 4; t != stakeKeyType && t != stakeScriptType {
		return StakeAddress{}, fmt.Errorf("%w: header 0x%02x is not a reward address", ErrInvalidStakeAddress, raw[0])
	}
	return StakeAddress{Header: raw[0], Hash: raw[1:]}, nil
}

func (a StakeAddress) Mainnet() bool { return a.Header&0x0f == 1 }

func (a StakeAddress) String() string {
	hrp := hrpStakeTestnet
	if a.Mainnet() {
		hrp = hrpStake
	}
	out, err := bech32.EncodeFromBase256(hrp, append([]byte{a.Header}, a.Hash...))
	if err != nil {
		panic(err)
	}
	return out
}

// NormalizeStakeAddress returns the bech32 form of addr.
func NormalizeStakeAddress(addr string) (string, error) {
	sa, err := ParseStakeAddress(addr)
	if err != nil {
		return "", err
	}
	return sa.String(), nil
}
