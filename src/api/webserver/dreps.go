package webserver

import (
	"net/http"
	"net/mail"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

type Dreps struct {
	store *data.Store
	log   *zap.Logger
}

func NewDreps(store *data.Store, log *zap.Logger) Dreps {
	return Dreps{store: store, log: log}
}

func (d Dreps) Register(c *gin.Context) {
	var req struct {
		DrepID         string `json:"drepId" binding:"required"`
		DiscordGuildID string `json:"discordGuildId" binding:"required,numeric"`
		DrepName       string `json:"drepName" binding:"required,max=128"`
		ContactEmail   string `json:"contactEmail"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, d.log, err)
		return
	}
	drep, err := normalizeDrep(req.DrepID)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	if req.ContactEmail != "" {
		if _, err := mail.ParseAddress(req.ContactEmail); err != nil {
			RespondError(c, d.log, errors.NotValidf("contactEmail %q", req.ContactEmail))
			return
		}
	}
	reg, err := d.store.RegisterDrep(c.Request.Context(), data.DrepRegistrationInput{
		DrepID:         drep,
		DiscordGuildID: req.DiscordGuildID,
		DrepName:       req.DrepName,
		ContactEmail:   req.ContactEmail,
	})
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	d.log.Info("drep registered", zap.String("drep", drep), zap.String("guild", req.DiscordGuildID))
	c.JSON(http.StatusCreated, reg)
}

// Status is the public view of a registration.
func (d Dreps) Status(c *gin.Context) {
	drep, err := normalizeDrep(c.Param("drepId"))
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	reg, err := d.store.GetDrep(c.Request.Context(), drep)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"drepId":     reg.DrepID,
		"drepName":   reg.DrepName,
		"status":     reg.Status,
		"reviewedAt": reg.ReviewedAt,
	})
}

func (d Dreps) List(c *gin.Context) {
	var status types.RegistrationStatus
	switch raw := types.RegistrationStatus(c.Query("status")); raw {
	case "":
	case types.RegistrationPending, types.RegistrationApproved, types.RegistrationRejected:
		status = raw
	default:
		RespondError(c, d.log, errors.NotValidf("status %q", raw))
		return
	}
	list, err := d.store.ListDreps(c.Request.Context(), status)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dreps": list, "total": len(list)})
}

func (d Dreps) Approve(c *gin.Context) { d.review(c, true) }

func (d Dreps) Reject(c *gin.Context) { d.review(c, false) }

func (d Dreps) review(c *gin.Context, approve bool) {
	drep, err := normalizeDrep(c.Param("drepId"))
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	var req struct {
		Rationale string `json:"rationale"`
	}
	if c.Request.ContentLength > 0 {
		if err := BindJSON(c, &req); err != nil {
			RespondError(c, d.log, err)
			return
		}
	}
	reg, err := d.store.ReviewDrep(c.Request.Context(), drep, approve, req.Rationale)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	d.log.Info("drep reviewed", zap.String("drep", drep), zap.String("status", string(reg.Status)))
	d.respondWithKey(c, reg)
}

func (d Dreps) RotateKey(c *gin.Context) {
	drep, err := normalizeDrep(c.Param("drepId"))
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	reg, err := d.store.RotateAPIKey(c.Request.Context(), drep)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	d.log.Info("drep api key rotated", zap.String("drep", drep))
	d.respondWithKey(c, reg)
}

// respondWithKey is the only place an API key leaves the server.
func (d Dreps) respondWithKey(c *gin.Context, reg *types.DrepRegistration) {
	resp := gin.H{"drep": reg}
	if reg.APIKey != nil {
		resp["apiKey"] = *reg.APIKey
	}
	c.JSON(http.StatusOK, resp)
}
