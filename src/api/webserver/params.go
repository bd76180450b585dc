package webserver

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/cardano"
)

// normalizeDrep converts any accepted DRep id form to CIP-129.
func normalizeDrep(raw string) (string, error) {
	id, err := cardano.NormalizeDRepID(raw)
	if err != nil {
		return "", errors.NewNotValid(err, "drepId "+strings.TrimSpace(raw))
	}
	return id, nil
}

// optionalDrep normalizes a drepId filter; empty means no filter.
func optionalDrep(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return normalizeDrep(raw)
}

func queryPage(c *gin.Context, def, max int) (data.Page, error) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return data.Page{}, err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return data.Page{}, err
	}
	return data.ClampPage(limit, offset, def, max), nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NotValidf("%s %q", name, raw)
	}
	return n, nil
}

func parseSentiment(raw string) (types.Sentiment, error) {
	s, ok := types.ParseSentiment(raw)
	if !ok {
		return "", errors.NotValidf("sentiment %q, want YES, NO or ABSTAIN", raw)
	}
	return s, nil
}
