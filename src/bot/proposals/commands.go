package proposals

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/discord"
)

const maxListed = 20

// CommandBackend adds single-proposal lookup to Backend.
type CommandBackend interface {
	Backend
	Proposal(ctx context.Context, id string) (*types.Proposal, error)
}

// Commands serves /proposal post|list|sync.
type Commands struct {
	s       discord.Session
	backend CommandBackend
	syncer  *Syncer
	target  TargetSource
	log     *zap.Logger
}

func NewCommands(s discord.Session, backend CommandBackend, syncer *Syncer, target TargetSource, log *zap.Logger) *Commands {
	return &Commands{s: s, backend: backend, syncer: syncer, target: target, log: log.Named("proposal-commands")}
}

// Handle serves the interaction when it is a /proposal command.
func (c *Commands) Handle(ctx context.Context, i *discordgo.Interaction) bool {
	if i.Type != discordgo.InteractionApplicationCommand || i.ApplicationCommandData().Name != discord.CommandProposal {
		return false
	}
	err := c.s.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		c.log.Warn("defer proposal command", zap.Error(err))
		return true
	}

	sub, opts := discord.SubcommandOptions(i.ApplicationCommandData())
	var reply string
	switch sub {
	case discord.SubcommandPost:
		var id string
		if o, ok := opts[discord.OptionProposalID]; ok {
			id, _ = o.Value.(string)
		}
		reply = c.post(ctx, strings.TrimSpace(id))
	case discord.SubcommandList:
		reply = c.list(ctx)
	case discord.SubcommandSync:
		reply = c.sync(ctx)
	default:
		reply = "Unknown proposal command."
	}
	if _, err := c.s.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &reply}, discordgo.WithContext(ctx)); err != nil {
		c.log.Warn("reply to proposal command", zap.String("subcommand", sub), zap.Error(err))
	}
	return true
}

func (c *Commands) post(ctx context.Context, id string) string {
	if id == "" {
		return "Please give a proposal id."
	}
	t, err := c.target(ctx)
	if err != nil {
		c.log.Error("resolve sync target", zap.Error(err))
		return "The backend is unavailable right now. Please try again later."
	}
	p, err := c.backend.Proposal(ctx, id)
	switch {
	case errors.Is(err, errors.NotFound):
		return fmt.Sprintf("No proposal found for `%s`.", id)
	case err != nil:
		c.log.Error("load proposal", zap.String("proposal", id), zap.Error(err))
		return "The backend is unavailable right now. Please try again later."
	}
	threadID, err := c.syncer.PostOne(ctx, t, *p)
	switch {
	case err == nil:
		return fmt.Sprintf("Posted **%s** in <#%s>.", ThreadName(*p), threadID)
	case errors.Is(err, errors.AlreadyExists):
		return fmt.Sprintf("**%s** already has a thread in this server.", ThreadName(*p))
	default:
		return c.failure(err, "post "+p.ProposalID)
	}
}

func (c *Commands) list(ctx context.Context) string {
	t, err := c.target(ctx)
	if err != nil {
		c.log.Error("resolve sync target", zap.Error(err))
		return "The backend is unavailable right now. Please try again later."
	}
	active, err := c.backend.ActiveProposals(ctx)
	if err != nil {
		c.log.Error("list active proposals", zap.Error(err))
		return "The backend is unavailable right now. Please try again later."
	}
	if len(active) == 0 {
		return "There are no active proposals."
	}
	posted := map[string]bool{}
	if t.GuildID != "" && t.DrepID != "" {
		ids, err := c.backend.PostedProposalIDs(ctx, t.GuildID, t.DrepID)
		if err != nil {
			c.log.Warn("list posted proposals", zap.Error(err))
		}
		for _, id := range ids {
			posted[id] = true
		}
	}
	// Newest first, the way the forum shows them.
	ordered := NewProposals(active, nil)
	var b strings.Builder
	fmt.Fprintf(&b, "**%d active proposals**\n", len(active))
	for n := 0; n < len(ordered) && n < maxListed; n++ {
		p := ordered[len(ordered)-1-n]
		mark := "🆕"
		if posted[p.ProposalID] {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s `%d` %s\n", mark, p.SubmissionEpoch, discord.Truncate(ThreadName(p), 80))
	}
	if len(ordered) > maxListed {
		fmt.Fprintf(&b, "…and %d more.", len(ordered)-maxListed)
	}
	return discord.Truncate(b.String(), 2000)
}

func (c *Commands) sync(ctx context.Context) string {
	res, err := c.syncer.RunTarget(ctx, c.target)
	if err != nil {
		return c.failure(err, "sync")
	}
	msg := fmt.Sprintf("Sync finished: %d posted, %d failed.", res.Posted, res.Failed)
	if res.Skipped > 0 {
		msg += fmt.Sprintf(" %d were already posted by another run.", res.Skipped)
	}
	return msg
}

func (c *Commands) failure(err error, op string) string {
	switch {
	case errors.Is(err, ErrMissingConfig):
		reason := strings.TrimSuffix(err.Error(), ": "+ErrMissingConfig.Error())
		return fmt.Sprintf("Sync cannot run: %s.", reason)
	case errors.Is(err, ErrSyncInProgress):
		return "A sync is already running for this server. Try again when it finishes."
	}
	c.log.Error("proposal command failed", zap.String("op", op), zap.Error(err))
	return "Something went wrong. Check the bot logs for details."
}
