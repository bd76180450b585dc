package webserver

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

// MaxCommentLength bounds a stored comment, in runes.
const MaxCommentLength = 4000

type Sentiment struct {
	store  *data.Store
	policy *bluemonday.Policy
	log    *zap.Logger
}

func NewSentiment(store *data.Store, log *zap.Logger) Sentiment {
	return Sentiment{store: store, policy: bluemonday.StrictPolicy(), log: log}
}

// resolve maps the path id and the optional drepId filter.
func (s Sentiment) resolve(c *gin.Context) (string, string, error) {
	id, err := s.store.ResolveProposalID(c.Request.Context(), c.Param("proposalId"))
	if err != nil {
		return "", "", err
	}
	drep, err := optionalDrep(c.Query("drepId"))
	if err != nil {
		return "", "", err
	}
	return id, drep, nil
}

func (s Sentiment) Summary(c *gin.Context) {
	id, drep, err := s.resolve(c)
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	sum, err := s.store.Sentiment(c.Request.Context(), data.SentimentQuery{ProposalID: id, DrepID: drep})
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s Sentiment) Comments(c *gin.Context) {
	id, drep, err := s.resolve(c)
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	page, err := queryPage(c, data.CommentsDefaultLimit, data.CommentsMaxLimit)
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	rows, total, err := s.store.Comments(c.Request.Context(), data.CommentsQuery{ProposalID: id, DrepID: drep, Page: page})
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"proposalId": id,
		"comments":   rows,
		"total":      total,
		"limit":      page.Limit,
		"offset":     page.Offset,
	})
}

func (s Sentiment) Reactions(c *gin.Context) {
	id, drep, err := s.resolve(c)
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	q := data.ReactionsQuery{ProposalID: id, DrepID: drep}
	if raw := c.Query("sentiment"); raw != "" {
		if q.Sentiment, err = parseSentiment(raw); err != nil {
			RespondError(c, s.log, err)
			return
		}
	}
	if q.Page, err = queryPage(c, data.ReactionsDefaultLimit, data.ReactionsMaxLimit); err != nil {
		RespondError(c, s.log, err)
		return
	}
	rows, total, err := s.store.Reactions(c.Request.Context(), q)
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"proposalId": id,
		"reactions":  rows,
		"total":      total,
		"limit":      q.Page.Limit,
		"offset":     q.Page.Offset,
	})
}

type interactionRequest struct {
	ProposalID      string `json:"proposalId" binding:"required"`
	DrepID          string `json:"drepId"`
	GuildID         string `json:"guildId"`
	ChannelID       string `json:"channelId"`
	DiscordUserID   string `json:"discordUserId" binding:"required"`
	DiscordUsername string `json:"discordUsername"`
}

func (s Sentiment) target(c *gin.Context, req interactionRequest) (string, string, error) {
	drep, err := scopeDrep(c, req.DrepID)
	if err != nil {
		return "", "", err
	}
	id, err := s.store.ResolveProposalID(c.Request.Context(), req.ProposalID)
	if err != nil {
		return "", "", err
	}
	return id, drep, nil
}

// RecordReaction counts one vote button click. Every click is counted.
func (s Sentiment) RecordReaction(c *gin.Context) {
	var req struct {
		interactionRequest
		Sentiment string `json:"sentiment" binding:"required"`
		Action    string `json:"action"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, s.log, err)
		return
	}
	if req.Action != "" && req.Action != "add" {
		RespondError(c, s.log, errors.NotValidf("action %q", req.Action))
		return
	}
	vote, err := parseSentiment(req.Sentiment)
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	id, drep, err := s.target(c, req.interactionRequest)
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	tally, err := s.store.RecordReaction(c.Request.Context(), data.ReactionInput{
		ProposalID:      id,
		DrepID:          drep,
		GuildID:         req.GuildID,
		ChannelID:       req.ChannelID,
		DiscordUserID:   req.DiscordUserID,
		DiscordUsername: req.DiscordUsername,
		Sentiment:       vote,
	})
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"proposalId": id,
		"drepId":     drep,
		"sentiment":  vote,
		"counts":     data.Totals(tally),
	})
}

// RecordComment stores a thread message with HTML stripped.
func (s Sentiment) RecordComment(c *gin.Context) {
	var req struct {
		interactionRequest
		Comment            string `json:"comment" binding:"required"`
		SuggestedSentiment string `json:"suggestedSentiment"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, s.log, err)
		return
	}
	comment := strings.TrimSpace(s.policy.Sanitize(req.Comment))
	if comment == "" {
		RespondError(c, s.log, errors.NotValidf("empty comment"))
		return
	}
	if utf8.RuneCountInString(comment) > MaxCommentLength {
		RespondError(c, s.log, errors.NotValidf("comment longer than %d characters", MaxCommentLength))
		return
	}
	var suggested types.Sentiment
	if req.SuggestedSentiment != "" {
		var err error
		if suggested, err = parseSentiment(req.SuggestedSentiment); err != nil {
			RespondError(c, s.log, err)
			return
		}
	}
	id, drep, err := s.target(c, req.interactionRequest)
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	tally, err := s.store.RecordComment(c.Request.Context(), data.CommentInput{
		ProposalID:         id,
		DrepID:             drep,
		GuildID:            req.GuildID,
		ChannelID:          req.ChannelID,
		DiscordUserID:      req.DiscordUserID,
		DiscordUsername:    req.DiscordUsername,
		Comment:            comment,
		SuggestedSentiment: suggested,
	})
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"proposalId": id,
		"drepId":     drep,
		"counts":     data.Totals(tally),
	})
}

// Mine lists the caller's per-proposal tallies.
func (s Sentiment) Mine(c *gin.Context) {
	drep, err := scopeDrep(c, "")
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	rows, err := s.store.DrepSentiment(c.Request.Context(), drep)
	if err != nil {
		RespondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"drepId":    drep,
		"totals":    data.Totals(rows...),
		"proposals": rows,
	})
}
