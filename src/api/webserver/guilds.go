package webserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

type Guilds struct {
	store *data.Store
	log   *zap.Logger
}

func NewGuilds(store *data.Store, log *zap.Logger) Guilds {
	return Guilds{store: store, log: log}
}

// load fetches the path guild and checks the caller may act for its DRep.
func (g Guilds) load(c *gin.Context) (*types.Guild, error) {
	guild, err := g.store.GetGuild(c.Request.Context(), c.Param("guildId"))
	if err != nil {
		return nil, err
	}
	if p, _ := principal(c); p.Role == RoleDRep && p.DrepID != guild.DrepID {
		return nil, errors.Forbiddenf("guild %s belongs to another drep", guild.GuildID)
	}
	return guild, nil
}

func (g Guilds) Register(c *gin.Context) {
	var req struct {
		GuildID        string `json:"guildId" binding:"required,numeric"`
		GuildName      string `json:"guildName" binding:"max=128"`
		DrepID         string `json:"drepId"`
		ForumChannelID string `json:"forumChannelId" binding:"omitempty,numeric"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, g.log, err)
		return
	}
	drep, err := scopeDrep(c, req.DrepID)
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	guild, err := g.store.RegisterGuild(c.Request.Context(), data.GuildInput{
		GuildID:        req.GuildID,
		GuildName:      req.GuildName,
		DrepID:         drep,
		ForumChannelID: req.ForumChannelID,
	})
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	c.JSON(http.StatusCreated, guild)
}

func (g Guilds) Get(c *gin.Context) {
	guild, err := g.load(c)
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	c.JSON(http.StatusOK, guild)
}

func (g Guilds) UpdateChannels(c *gin.Context) {
	var req struct {
		ForumChannelID    *string `json:"forumChannelId" binding:"omitempty,numeric"`
		DelegateChannelID *string `json:"delegateChannelId" binding:"omitempty,numeric"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, g.log, err)
		return
	}
	guild, err := g.load(c)
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	guild, err = g.store.UpdateGuildChannels(c.Request.Context(), guild.GuildID, data.GuildChannels{
		ForumChannelID:    req.ForumChannelID,
		DelegateChannelID: req.DelegateChannelID,
	})
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	c.JSON(http.StatusOK, guild)
}

func (g Guilds) Posts(c *gin.Context) {
	guild, err := g.load(c)
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	drep := guild.DrepID
	if raw := c.Query("drepId"); raw != "" {
		if drep, err = normalizeDrep(raw); err != nil {
			RespondError(c, g.log, err)
			return
		}
	}
	ids, err := g.store.PostedProposalIDs(c.Request.Context(), guild.GuildID, drep)
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guildId": guild.GuildID, "drepId": drep, "proposalIds": ids})
}

func (g Guilds) RecordPost(c *gin.Context) {
	var req struct {
		DrepID     string `json:"drepId"`
		ProposalID string `json:"proposalId" binding:"required"`
		ThreadID   string `json:"threadId" binding:"required,numeric"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, g.log, err)
		return
	}
	guild, err := g.load(c)
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	drep := guild.DrepID
	if req.DrepID != "" {
		if drep, err = scopeDrep(c, req.DrepID); err != nil {
			RespondError(c, g.log, err)
			return
		}
	}
	ctx := c.Request.Context()
	id, err := g.store.ResolveProposalID(ctx, req.ProposalID)
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	post, err := g.store.RecordPost(ctx, data.PostInput{
		GuildID:    guild.GuildID,
		DrepID:     drep,
		ProposalID: id,
		ThreadID:   req.ThreadID,
	})
	if err != nil {
		RespondError(c, g.log, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}
