package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/juju/errors"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
)

// proposalPageSize matches the server's cap on the proposal list.
const proposalPageSize = 100

// Counts is the tally the backend returns after a vote.
type Counts struct {
	YesCount       int64 `json:"yesCount"`
	NoCount        int64 `json:"noCount"`
	AbstainCount   int64 `json:"abstainCount"`
	CommentCount   int64 `json:"commentCount"`
	TotalReactions int64 `json:"totalReactions"`
}

// ActiveProposals pages through every ACTIVE proposal.
func (c *Client) ActiveProposals(ctx context.Context) ([]types.Proposal, error) {
	var all []types.Proposal
	for offset := 0; ; offset += proposalPageSize {
		var page struct {
			Proposals []types.Proposal `json:"proposals"`
			Total     int              `json:"total"`
		}
		q := url.Values{
			"status": {string(types.StatusActive)},
			"limit":  {strconv.Itoa(proposalPageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		if err := c.do(ctx, http.MethodGet, "/v1/proposals", q, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Proposals...)
		if len(page.Proposals) < proposalPageSize || len(all) >= page.Total {
			return all, nil
		}
	}
}

func (c *Client) Proposal(ctx context.Context, id string) (*types.Proposal, error) {
	var p types.Proposal
	if err := c.do(ctx, http.MethodGet, "/v1/proposals/"+url.PathEscape(id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Sentiment(ctx context.Context, proposalID, drepID string) (Counts, error) {
	var out struct {
		Totals Counts `json:"totals"`
	}
	q := url.Values{}
	if drepID != "" {
		q.Set("drepId", drepID)
	}
	err := c.do(ctx, http.MethodGet, "/v1/sentiment/"+url.PathEscape(proposalID), q, nil, &out)
	return out.Totals, err
}

// Guild is the backend's guild registration.
type Guild = types.Guild

// GuildRegistration registers a guild for a DRep.
type GuildRegistration struct {
	GuildID        string `json:"guildId"`
	GuildName      string `json:"guildName,omitempty"`
	DrepID         string `json:"drepId"`
	ForumChannelID string `json:"forumChannelId,omitempty"`
}

// RegisterGuild is idempotent: an existing registration counts as success.
func (c *Client) RegisterGuild(ctx context.Context, reg GuildRegistration) error {
	err := c.do(ctx, http.MethodPost, "/v1/guilds", nil, reg, nil)
	if errors.Is(err, errors.AlreadyExists) {
		return nil
	}
	return err
}

func (c *Client) Guild(ctx context.Context, guildID string) (*Guild, error) {
	var g Guild
	if err := c.do(ctx, http.MethodGet, "/v1/guilds/"+url.PathEscape(guildID), nil, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GuildChannels updates only the channels that are set.
type GuildChannels struct {
	ForumChannelID    *string `json:"forumChannelId,omitempty"`
	DelegateChannelID *string `json:"delegateChannelId,omitempty"`
}

func (c *Client) UpdateGuildChannels(ctx context.Context, guildID string, ch GuildChannels) (*Guild, error) {
	var g Guild
	if err := c.do(ctx, http.MethodPatch, "/v1/guilds/"+url.PathEscape(guildID)+"/channels", nil, ch, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) PostedProposalIDs(ctx context.Context, guildID, drepID string) ([]string, error) {
	var out struct {
		ProposalIDs []string `json:"proposalIds"`
	}
	q := url.Values{"drepId": {drepID}}
	err := c.do(ctx, http.MethodGet, "/v1/guilds/"+url.PathEscape(guildID)+"/posts", q, nil, &out)
	return out.ProposalIDs, err
}

// PostRecord links a forum thread to a proposal.
type PostRecord struct {
	DrepID     string `json:"drepId"`
	ProposalID string `json:"proposalId"`
	ThreadID   string `json:"threadId"`
}

// RecordPost returns an AlreadyExists error when the proposal was posted before.
func (c *Client) RecordPost(ctx context.Context, guildID string, rec PostRecord) error {
	return c.do(ctx, http.MethodPost, "/v1/guilds/"+url.PathEscape(guildID)+"/posts", nil, rec, nil)
}

// Reaction is one vote button click.
type Reaction struct {
	ProposalID      string          `json:"proposalId"`
	DrepID          string          `json:"drepId"`
	GuildID         string          `json:"guildId,omitempty"`
	ChannelID       string          `json:"channelId,omitempty"`
	DiscordUserID   string          `json:"discordUserId"`
	DiscordUsername string          `json:"discordUsername,omitempty"`
	Sentiment       types.Sentiment `json:"sentiment"`
	Action          string          `json:"action"`
}

func (c *Client) RecordReaction(ctx context.Context, r Reaction) (Counts, error) {
	if r.Action == "" {
		r.Action = "add"
	}
	var out struct {
		Counts Counts `json:"counts"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/sentiment/reaction", nil, r, &out)
	return out.Counts, err
}

// Comment is a delegator message from a proposal thread.
type Comment struct {
	ProposalID         string          `json:"proposalId"`
	DrepID             string          `json:"drepId"`
	GuildID            string          `json:"guildId,omitempty"`
	ChannelID          string          `json:"channelId,omitempty"`
	DiscordUserID      string          `json:"discordUserId"`
	DiscordUsername    string          `json:"discordUsername,omitempty"`
	Comment            string          `json:"comment"`
	SuggestedSentiment types.Sentiment `json:"suggestedSentiment,omitempty"`
}

func (c *Client) RecordComment(ctx context.Context, cm Comment) error {
	return c.do(ctx, http.MethodPost, "/v1/sentiment/comment", nil, cm, nil)
}

// PendingDrepVotes lists posts whose DRep vote has not been announced yet.
func (c *Client) PendingDrepVotes(ctx context.Context, drepID string) ([]types.GuildProposalPost, error) {
	var out struct {
		Pending []types.GuildProposalPost `json:"pending"`
	}
	q := url.Values{}
	if drepID != "" {
		q.Set("drepId", drepID)
	}
	err := c.do(ctx, http.MethodGet, "/v1/sentiment/pending-drep-votes", q, nil, &out)
	return out.Pending, err
}

func (c *Client) MarkDrepVoteNotified(ctx context.Context, postID uint64) error {
	return c.do(ctx, http.MethodPost, "/v1/sentiment/mark-drep-vote-notified", nil, map[string]uint64{"postId": postID}, nil)
}

// CheckDelegator reports whether the user has a verified delegation.
func (c *Client) CheckDelegator(ctx context.Context, discordUserID, drepID string) (bool, error) {
	var out struct {
		Verified bool `json:"verified"`
	}
	q := url.Values{"discordUserId": {discordUserID}, "drepId": {drepID}}
	err := c.do(ctx, http.MethodGet, "/v1/delegators/check", q, nil, &out)
	return out.Verified, err
}

// Delegation is a confirmed on-chain delegation.
type Delegation struct {
	DrepID          string `json:"drepId"`
	DiscordUserID   string `json:"discordUserId"`
	DiscordUsername string `json:"discordUsername,omitempty"`
	StakeAddress    string `json:"stakeAddress"`
	LiveStake       string `json:"liveStake"`
}

func (c *Client) VerifyDelegator(ctx context.Context, d Delegation) error {
	return c.do(ctx, http.MethodPost, "/v1/delegators/verify", nil, d, nil)
}
