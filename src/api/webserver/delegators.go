package webserver

import (
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/cardano"
)

type Delegators struct {
	store *data.Store
	log   *zap.Logger
}

func NewDelegators(store *data.Store, log *zap.Logger) Delegators {
	return Delegators{store: store, log: log}
}

// Verify records a delegation confirmed by the verify service.
func (d Delegators) Verify(c *gin.Context) {
	var req struct {
		DrepID          string `json:"drepId"`
		DiscordUserID   string `json:"discordUserId" binding:"required,numeric"`
		DiscordUsername string `json:"discordUsername"`
		StakeAddress    string `json:"stakeAddress" binding:"required"`
		LiveStake       string `json:"liveStake"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, d.log, err)
		return
	}
	drep, err := scopeDrep(c, req.DrepID)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	stake, err := cardano.NormalizeStakeAddress(req.StakeAddress)
	if err != nil {
		RespondError(c, d.log, errors.NewNotValid(err, "stakeAddress"))
		return
	}
	if req.LiveStake != "" {
		if n, ok := new(big.Int).SetString(req.LiveStake, 10); !ok || n.Sign() < 0 {
			RespondError(c, d.log, errors.NotValidf("liveStake %q", req.LiveStake))
			return
		}
	}
	del, err := d.store.UpsertDelegator(c.Request.Context(), data.DelegatorInput{
		DiscordUserID:   req.DiscordUserID,
		DiscordUsername: req.DiscordUsername,
		DrepID:          drep,
		StakeAddress:    stake,
		LiveStake:       req.LiveStake,
	})
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	d.log.Info("delegator verified", zap.String("drep", drep), zap.String("user", req.DiscordUserID))
	c.JSON(http.StatusOK, gin.H{"success": true, "delegator": del})
}

// Check reports whether a Discord user has a verified delegation.
func (d Delegators) Check(c *gin.Context) {
	user := c.Query("discordUserId")
	if user == "" {
		RespondError(c, d.log, errors.NotValidf("missing discordUserId"))
		return
	}
	drep, err := scopeDrep(c, c.Query("drepId"))
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	del, err := d.store.FindDelegator(c.Request.Context(), user, drep)
	if errors.Is(err, errors.NotFound) {
		c.JSON(http.StatusOK, gin.H{"verified": false})
		return
	}
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true, "delegator": del})
}
