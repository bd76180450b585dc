// Package cardano holds the textual encodings the platform accepts for
// Cardano identifiers: DRep ids, governance action ids and stake addresses.
package cardano

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/decred/dcrd/bech32"
	"golang.org/x/crypto/blake2b"
)

const (
	hrpDRep       = "drep"
	hrpDRepScript = "drep_script"
	hrpDRepVK     = "drep_vk"

	// CredentialLen is the size of a blake2b-224 key or script hash.
	CredentialLen = 28

	headerDRepKeyHash    byte = 0x22
	headerDRepScriptHash byte = 0x23
)

var ErrInvalidDRepID = errors.New("invalid drep id")

// DRepCredential is the credential a DRep id points at.
type DRepCredential struct {
	Hash   []byte
	Script bool
}

// ParseDRepID accepts CIP-129 and CIP-105 bech32 ids (drep, drep_script,
// drep_vk) as well as raw hex credentials.
func ParseDRepID(id string) (DRepCredential, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return DRepCredential{}, ErrInvalidDRepID
	}

	if raw, err := hex.DecodeString(id); err == nil {
		return credentialFromBytes(raw)
	}

	hrp, data, err := bech32.DecodeToBase256(id)
	if err != nil {
		return DRepCredential{}, fmt.Errorf("%w: %v", ErrInvalidDRepID, err)
	}

	switch hrp {
	case hrpDRep:
		return credentialFromBytes(data)
	case hrpDRepScript:
		if len(data) != CredentialLen {
			return DRepCredential{}, fmt.Errorf("%w: script hash must be %d bytes", ErrInvalidDRepID, CredentialLen)
		}
		return DRepCredential{Hash: data, Script: true}, nil
	case hrpDRepVK:
		if len(data) != 32 {
			return DRepCredential{}, fmt.Errorf("%w: verification key must be 32 bytes", ErrInvalidDRepID)
		}
		return DRepCredential{Hash: KeyHash(data)}, nil
	default:
		return DRepCredential{}, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidDRepID, hrp)
	}
}

func credentialFromBytes(raw []byte) (DRepCredential, error) {
	switch len(raw) {
	case CredentialLen:
		return DRepCredential{Hash: raw}, nil
	case CredentialLen + 1:
		switch raw[0] {
		case headerDRepKeyHash:
			return DRepCredential{Hash: raw[1:]}, nil
		case headerDRepScriptHash:
			return DRepCredential{Hash: raw[1:], Script: true}, nil
		}
		return DRepCredential{}, fmt.Errorf("%w: unknown header byte 0x%02x", ErrInvalidDRepID, raw[0])
	}
	return DRepCredential{}, fmt.Errorf("%w: %d byte credential", ErrInvalidDRepID, len(raw))
}

// CIP129 renders the credential in the canonical form stored by the API.
func (c DRepCredential) CIP129() string {
	header := headerDRepKeyHash
	if c.Script {
		header = headerDRepScriptHash
	}
	payload := append([]byte{header}, c.Hash...)
	out, err := bech32.EncodeFromBase256(hrpDRep, payload)
	if err != nil {
		// 29 bytes under a fixed prefix always encodes.
		panic(err)
	}
	return out
}

// CIP105 renders the legacy form produced by most wallet SDKs.
func (c DRepCredential) CIP105() string {
	hrp := hrpDRep
	if c.Script {
		hrp = hrpDRepScript
	}
	out, err := bech32.EncodeFromBase256(hrp, c.Hash)
	if err != nil {
		panic(err)
	}
	return out
}

// HashHex is the credential hash as lowercase hex.
func (c DRepCredential) HashHex() string {
	return hex.EncodeToString(c.Hash)
}

// NormalizeDRepID converts any accepted DRep id form to CIP-129. Calling it on
// its own output returns the same value.
func NormalizeDRepID(id string) (string, error) {
	cred, err := ParseDRepID(id)
	if err != nil {
		return "", err
	}
	return cred.CIP129(), nil
}

// KeyHash is the blake2b-224 digest used for Cardano key credentials.
func KeyHash(pub []byte) []byte {
	h, err := blake2b.New(CredentialLen, nil)
	if err != nil {
		panic(err)
	}
	h.Write(pub)
	return h.Sum(nil)
}
