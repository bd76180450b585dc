package cardano

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/bech32"
)

const hrpGovAction = "gov_action"

var ErrInvalidGovActionID = errors.New("invalid governance action id")

// GovActionID identifies a governance action by the transaction that
// submitted it and the proposal index inside that transaction.
type GovActionID struct {
	TxHash string
	Index  uint32
}

// ParseGovActionID decodes a CIP-129 gov_action bech32 id.
func ParseGovActionID(id string) (GovActionID, error) {
	hrp, data, err := bech32.DecodeToBase256(strings.ToLower(strings.TrimSpace(id)))
	if err != nil {
		return GovActionID{}, fmt.Errorf("%w: %v", ErrInvalidGovActionID, err)
	}
	if hrp != hrpGovAction || len(data) < 33 || len(data) > 34 {
		return GovActionID{}, ErrInvalidGovActionID
	}
	var index uint32
	for _, b := range data[32:] {
		index = index<<8 | uint32(b)
	}
	return GovActionID{TxHash: hex.EncodeToString(data[:32]), Index: index}, nil
}

// ParseTxRef decodes the "txHash:index" form. "#" is accepted as separator too.
func ParseTxRef(ref string) (GovActionID, error) {
	ref = strings.TrimSpace(ref)
	sep := strings.LastIndexAny(ref, ":#")
	if sep <= 0 || sep == len(ref)-1 {
		return GovActionID{}, ErrInvalidGovActionID
	}
	txHash := strings.ToLower(ref[:sep])
	if raw, err := hex.DecodeString(txHash); err != nil || len(raw) != 32 {
		return GovActionID{}, fmt.Errorf("%w: tx hash must be 32 hex bytes", ErrInvalidGovActionID)
	}
	idx, err := strconv.ParseUint(ref[sep+1:], 10, 16)
	if err != nil {
		return GovActionID{}, fmt.Errorf("%w: bad index", ErrInvalidGovActionID)
	}
	return GovActionID{TxHash: txHash, Index: uint32(idx)}, nil
}

// Bech32 renders the CIP-129 id.
func (g GovActionID) Bech32() (string, error) {
	raw, err := hex.DecodeString(g.TxHash)
	if err != nil || len(raw) != 32 {
		return "", ErrInvalidGovActionID
	}
	if g.Index > 0xff {
		raw = append(raw, byte(g.Index>>8), byte(g.Index))
	} else {
		raw = append(raw, byte(g.Index))
	}
	return bech32.EncodeFromBase256(hrpGovAction, raw)
}

func (g GovActionID) String() string {
	return fmt.Sprintf("%s:%d", g.TxHash, g.Index)
}
