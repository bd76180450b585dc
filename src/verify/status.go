// Package verify serves the page that binds a wallet's stake address to a
// Discord user after checking its on-chain DRep delegation.
package verify

import (
	"context"
	"math/big"
	"strings"

	"github.com/juju/errors"

	"github.com/stake-plus/cardano-gov-sentiment/src/cardano"
)

// State is the delegation state of a stake account relative to the target DRep.
type State string

const (
	StateNotRegistered          State = "not_registered"
	StateRegisteredNotDelegated State = "registered_not_delegated"
	StateDelegated              State = "delegated"
)

// Status is what the page shows for a connected wallet.
type Status struct {
	StakeAddress string `json:"stakeAddress"`
	State        State  `json:"state"`
	DrepID       string `json:"drepId,omitempty"`
	TargetDrepID string `json:"targetDrepId"`
	LiveStake    string `json:"liveStake"`
}

// Accounts looks up stake accounts on chain.
type Accounts interface {
	Account(ctx context.Context, stakeAddress string) (*Account, error)
}

// Checker compares a stake account's delegation with the target DRep.
type Checker struct {
	accounts Accounts
	target   string
	mainnet  bool
}

func NewChecker(accounts Accounts, targetDrepID, network string) *Checker {
	return &Checker{accounts: accounts, target: targetDrepID, mainnet: network == "mainnet"}
}

// Normalize parses a bech32 or CIP-30 hex reward address for this network.
func (c *Checker) Normalize(stakeAddress string) (string, error) {
	if strings.TrimSpace(stakeAddress) == "" {
		return "", errors.NotValidf("missing stakeAddress")
	}
	sa, err := cardano.ParseStakeAddress(stakeAddress)
	if err != nil {
		return "", errors.NewNotValid(err, "stakeAddress")
	}
	if sa.Mainnet() != c.mainnet {
		return "", errors.NotValidf("stakeAddress is for another network")
	}
	return sa.String(), nil
}

func (c *Checker) Status(ctx context.Context, stakeAddress string) (Status, error) {
	addr, err := c.Normalize(stakeAddress)
	if err != nil {
		return Status{}, err
	}
	st := Status{StakeAddress: addr, State: StateNotRegistered, TargetDrepID: c.target, LiveStake: "0"}
	acct, err := c.accounts.Account(ctx, addr)
	switch {
	case errors.Is(err, errors.NotFound):
		return st, nil
	case err != nil:
		return Status{}, err
	}
	if amount, ok := new(big.Int).SetString(acct.ControlledAmount, 10); ok && amount.Sign() >= 0 {
		st.LiveStake = amount.String()
	}
	if !acct.Active {
		return st, nil
	}
	st.State = StateRegisteredNotDelegated
	if acct.DrepID != nil && *acct.DrepID != "" {
		st.DrepID = *acct.DrepID
		// drep_always_abstain and friends do not parse and never match.
		if id, err := cardano.NormalizeDRepID(*acct.DrepID); err == nil {
			st.DrepID = id
		}
	}
	if st.DrepID == c.target {
		st.State = StateDelegated
	}
	return st, nil
}

// Certificate is one step the wallet SDK turns into a transaction certificate.
type Certificate struct {
	Type           string `json:"type"`
	StakeAddress   string `json:"stakeAddress"`
	DrepID         string `json:"drepId,omitempty"`
	CredentialHash string `json:"credentialHash,omitempty"`
	CredentialType string `json:"credentialType,omitempty"`
}

const (
	CertStakeRegistration = "StakeRegistration"
	CertVoteDelegation    = "VoteDelegation"
)

// Certificates lists what the wallet must sign to delegate to the target DRep.
func (c *Checker) Certificates(st Status) ([]Certificate, error) {
	certs := []Certificate{}
	if st.State == StateDelegated {
		return certs, nil
	}
	cred, err := cardano.ParseDRepID(c.target)
	if err != nil {
		return nil, errors.Annotate(err, "target drep id")
	}
	if st.State == StateNotRegistered {
		certs = append(certs, Certificate{Type: CertStakeRegistration, StakeAddress: st.StakeAddress})
	}
	credType := "keyHash"
	if cred.Script {
		credType = "scriptHash"
	}
	certs = append(certs, Certificate{
		Type:           CertVoteDelegation,
		StakeAddress:   st.StakeAddress,
		DrepID:         c.target,
		CredentialHash: cred.HashHex(),
		CredentialType: credType,
	})
	return certs, nil
}
