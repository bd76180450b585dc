package verify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/stake-plus/cardano-gov-sentiment/src/webclient"
)

// Account is the subset of a Blockfrost stake account the service reads.
type Account struct {
	StakeAddress     string  `json:"stake_address"`
	Active           bool    `json:"active"`
	ControlledAmount string  `json:"controlled_amount"`
	DrepID           *string `json:"drep_id"`
}

// Blockfrost reads stake accounts from the Blockfrost API.
type Blockfrost struct {
	base      string
	projectID string
	http      *http.Client
	retry     webclient.Retry
}

func NewBlockfrost(base, projectID string, clk clock.Clock) *Blockfrost {
	return &Blockfrost{
		base:      base,
		projectID: projectID,
		http:      webclient.NewDefault(webclient.DefaultTimeout),
		retry: webclient.Retry{
			Attempts:     3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Clock:        clk,
		},
	}
}

// Account returns NotFound when the chain has never seen the address.
func (b *Blockfrost) Account(ctx context.Context, stakeAddress string) (*Account, error) {
	endpoint := b.base + "/accounts/" + url.PathEscape(stakeAddress)
	status, body, err := b.retry.Do(ctx, func(ctx context.Context) (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("project_id", b.projectID)
		req.Header.Set("Accept", "application/json")
		resp, err := b.http.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return resp.StatusCode, raw, err
	})
	if err != nil {
		return nil, errors.Annotate(err, "blockfrost account")
	}
	switch {
	case status == http.StatusNotFound:
		return nil, errors.NotFoundf("stake account %s", stakeAddress)
	case status == http.StatusBadRequest:
		return nil, errors.NotValidf("stake address %q", stakeAddress)
	case status != http.StatusOK:
		return nil, errors.Errorf("blockfrost account: status %d", status)
	}
	var acct Account
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, errors.Annotate(err, "decode blockfrost account")
	}
	return &acct, nil
}
