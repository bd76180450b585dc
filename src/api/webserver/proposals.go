package webserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

const (
	proposalsDefaultLimit = 50
	proposalsMaxLimit     = 100

	overviewCacheKey = "overview"
)

type Proposals struct {
	store    *data.Store
	rdb      *redis.Client
	cacheTTL time.Duration
	log      *zap.Logger
}

func NewProposals(store *data.Store, rdb *redis.Client, cacheTTL time.Duration, log *zap.Logger) Proposals {
	return Proposals{store: store, rdb: rdb, cacheTTL: cacheTTL, log: log}
}

func (p Proposals) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	var out data.Overview
	hit, err := data.CacheGet(ctx, p.rdb, overviewCacheKey, &out)
	if err != nil {
		p.log.Warn("overview cache read", zap.Error(err))
		hit = false
	}
	if !hit {
		out, err = p.store.Overview(ctx)
		if err != nil {
			RespondError(c, p.log, err)
			return
		}
		if err := data.CacheSet(ctx, p.rdb, overviewCacheKey, out, p.cacheTTL); err != nil {
			p.log.Warn("overview cache write", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (p Proposals) List(c *gin.Context) {
	var q data.ProposalQuery
	if raw := c.Query("status"); raw != "" {
		st, ok := types.ParseProposalStatus(raw)
		if !ok {
			RespondError(c, p.log, errors.NotValidf("status %q", raw))
			return
		}
		q.Status = st
	}
	page, err := queryPage(c, proposalsDefaultLimit, proposalsMaxLimit)
	if err != nil {
		RespondError(c, p.log, err)
		return
	}
	q.Page = page

	list, total, err := p.store.ListProposals(c.Request.Context(), q)
	if err != nil {
		RespondError(c, p.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"proposals": list,
		"total":     total,
		"limit":     page.Limit,
		"offset":    page.Offset,
	})
}

func (p Proposals) Get(c *gin.Context) {
	prop, err := p.store.GetProposal(c.Request.Context(), c.Param("proposalId"))
	if err != nil {
		RespondError(c, p.log, err)
		return
	}
	c.JSON(http.StatusOK, prop)
}

// Upsert stores a proposal pushed by the external chain sync.
func (p Proposals) Upsert(c *gin.Context) {
	var req struct {
		ProposalID       string `json:"proposalId"`
		TxHash           string `json:"txHash" binding:"required"`
		CertIndex        uint32 `json:"certIndex"`
		Title            string `json:"title" binding:"required,max=255"`
		Description      string `json:"description"`
		Rationale        string `json:"rationale"`
		Type             string `json:"type" binding:"required"`
		Status           string `json:"status" binding:"required"`
		SubmissionEpoch  uint32 `json:"submissionEpoch"`
		ExpirationEpoch  uint32 `json:"expirationEpoch"`
		WithdrawalAmount string `json:"withdrawalAmount"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, p.log, err)
		return
	}
	prop, err := p.store.UpsertProposal(c.Request.Context(), data.ProposalInput{
		ProposalID:       req.ProposalID,
		TxHash:           req.TxHash,
		CertIndex:        req.CertIndex,
		Title:            req.Title,
		Description:      req.Description,
		Rationale:        req.Rationale,
		Type:             req.Type,
		Status:           types.ProposalStatus(req.Status),
		SubmissionEpoch:  req.SubmissionEpoch,
		ExpirationEpoch:  req.ExpirationEpoch,
		WithdrawalAmount: req.WithdrawalAmount,
	})
	if err != nil {
		RespondError(c, p.log, err)
		return
	}
	p.invalidateOverview(c)
	c.JSON(http.StatusOK, prop)
}

func (p Proposals) UpsertNCL(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		RespondError(c, p.log, errors.NotValidf("year %q", c.Param("year")))
		return
	}
	var req struct {
		Current string `json:"current" binding:"required"`
		Limit   string `json:"limit" binding:"required"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, p.log, err)
		return
	}
	rec, err := p.store.UpsertNCL(c.Request.Context(), year, req.Current, req.Limit)
	if err != nil {
		RespondError(c, p.log, err)
		return
	}
	p.invalidateOverview(c)
	c.JSON(http.StatusOK, rec)
}

func (p Proposals) invalidateOverview(c *gin.Context) {
	if err := data.CacheDel(c.Request.Context(), p.rdb, overviewCacheKey); err != nil {
		p.log.Warn("overview cache invalidate", zap.Error(err))
	}
}
