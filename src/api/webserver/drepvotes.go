package webserver

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/data"
	"github.com/stake-plus/cardano-gov-sentiment/src/cardano"
)

// DrepVotes closes the loop between a DRep's on-chain vote and the Discord
// threads where delegators discussed the proposal.
type DrepVotes struct {
	store *data.Store
	log   *zap.Logger
}

func NewDrepVotes(store *data.Store, log *zap.Logger) DrepVotes {
	return DrepVotes{store: store, log: log}
}

func (d DrepVotes) Notify(c *gin.Context) {
	var req struct {
		ProposalID   string `json:"proposalId" binding:"required"`
		DrepID       string `json:"drepId"`
		Vote         string `json:"vote" binding:"required"`
		TxHash       string `json:"txHash"`
		RationaleURL string `json:"rationaleUrl"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, d.log, err)
		return
	}
	vote, err := parseSentiment(req.Vote)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	if req.TxHash != "" {
		if _, err := cardano.ParseTxRef(req.TxHash + ":0"); err != nil {
			RespondError(c, d.log, errors.NotValidf("txHash %q", req.TxHash))
			return
		}
	}
	if req.RationaleURL != "" {
		if u, err := url.Parse(req.RationaleURL); err != nil || (u.Scheme != "https" && u.Scheme != "http" && u.Scheme != "ipfs") {
			RespondError(c, d.log, errors.NotValidf("rationaleUrl %q", req.RationaleURL))
			return
		}
	}
	drep, err := scopeDrep(c, req.DrepID)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := d.store.RequireApprovedDrep(ctx, drep); err != nil {
		RespondError(c, d.log, err)
		return
	}
	id, err := d.store.ResolveProposalID(ctx, req.ProposalID)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	posts, err := d.store.NotifyDrepVote(ctx, data.DrepVoteInput{
		DrepID:       drep,
		ProposalID:   id,
		Vote:         vote,
		TxHash:       req.TxHash,
		RationaleURL: req.RationaleURL,
	})
	if err != nil {
		RespondError(c, d.log, err)
		return
	}

	resp := gin.H{
		"success":                    true,
		"proposalId":                 id,
		"drepId":                     drep,
		"vote":                       vote,
		"discordNotificationPending": len(posts) > 0,
	}
	if len(posts) > 0 {
		resp["threadId"] = posts[0].ThreadID
		threads := make([]string, len(posts))
		for i, p := range posts {
			threads[i] = p.ThreadID
		}
		resp["threadIds"] = threads
	}
	c.JSON(http.StatusOK, resp)
}

// Pending is polled by the bot. Admins may omit drepId to see every DRep.
func (d DrepVotes) Pending(c *gin.Context) {
	var drep string
	p, _ := principal(c)
	if raw := c.Query("drepId"); raw != "" || p.Role == RoleDRep {
		var err error
		if drep, err = scopeDrep(c, raw); err != nil {
			RespondError(c, d.log, err)
			return
		}
	}
	posts, err := d.store.PendingDrepVotes(c.Request.Context(), drep)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": posts, "total": len(posts)})
}

func (d DrepVotes) MarkNotified(c *gin.Context) {
	var req struct {
		PostID uint64 `json:"postId" binding:"required"`
	}
	if err := BindJSON(c, &req); err != nil {
		RespondError(c, d.log, err)
		return
	}
	var drep string
	if p, _ := principal(c); p.Role == RoleDRep {
		drep = p.DrepID
	}
	post, err := d.store.MarkDrepVoteNotified(c.Request.Context(), req.PostID, drep)
	if err != nil {
		RespondError(c, d.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": post})
}
