// Package bot wires the Discord session to the proposal, interaction and
// notifier modules.
package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/core"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/interactions"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/notifier"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/proposals"
	"github.com/stake-plus/cardano-gov-sentiment/src/config"
	"github.com/stake-plus/cardano-gov-sentiment/src/discord"
)

// handlerTimeout bounds the backend and Discord calls made for one event.
const handlerTimeout = 30 * time.Second

type Bot struct {
	cfg          config.Bot
	session      *discordgo.Session
	manager      *core.Manager
	commands     *proposals.Commands
	interactions *interactions.Handler
	log          *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Annotate(err, "create discord session")
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	return dg, nil
}

func newSyncer(cfg config.Bot, dg *discordgo.Session, backend *api.Client, clk clock.Clock, log *zap.Logger) (*proposals.Syncer, proposals.TargetSource) {
	poster := proposals.NewForumPoster(dg, log)
	return proposals.NewSyncer(backend, poster, clk, cfg.PostDelay, log.Named("sync")),
		proposals.ConfiguredTarget(cfg, backend)
}

func New(cfg config.Bot, clk clock.Clock, log *zap.Logger) (*Bot, error) {
	dg, err := newSession(cfg.Token)
	if err != nil {
		return nil, err
	}
	backend := api.NewClient(cfg.Backend)
	syncer, target := newSyncer(cfg, dg, backend, clk, log)

	b := &Bot{
		cfg:      cfg,
		session:  dg,
		commands: proposals.NewCommands(dg, backend, syncer, target, log),
		interactions: interactions.NewHandler(dg, backend, interactions.Settings{
			DrepID:         cfg.DRepID,
			VerifiedRoleID: cfg.VerifiedRoleID,
			VerifyURL:      cfg.VerifyURL,
		}, log),
		log: log,
	}
	b.manager = core.NewManager(log,
		&gateway{session: dg},
		proposals.NewScheduler(cfg.SyncCron, syncer, target, log),
		notifier.New(dg, backend, cfg.DRepID, cfg.PendingVotePollInterval, clk, log),
	)

	dg.AddHandler(b.handleReady)
	dg.AddHandler(b.handleInteraction)
	dg.AddHandler(b.handleMessage)
	return b, nil
}

// Start opens the gateway and starts the background modules.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	if err := b.manager.Start(b.ctx); err != nil {
		b.cancel()
		return err
	}
	b.log.Info("bot started", zap.Strings("modules", b.manager.Running()))
	return nil
}

func (b *Bot) Stop(ctx context.Context) {
	if b.cancel != nil {
		b.cancel()
	}
	b.manager.Stop(ctx)
}

func (b *Bot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	b.log.Info("discord bot logged in", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
	if err := discord.RegisterSlashCommands(s, b.cfg.ClientID, b.cfg.GuildID, b.log); err != nil {
		b.log.Error("register slash commands", zap.Error(err))
	}
}

func (b *Bot) handleInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
	defer cancel()
	if b.commands.Handle(ctx, ic.Interaction) || b.interactions.Handle(ctx, ic.Interaction) {
		return
	}
	b.log.Debug("unhandled interaction", zap.String("id", ic.ID), zap.Int("type", int(ic.Type)))
}

func (b *Bot) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	ctx, cancel := context.WithTimeout(b.ctx, handlerTimeout)
	defer cancel()
	b.interactions.CollectComment(ctx, m.Message)
}

// gateway adapts the websocket session to the module lifecycle.
type gateway struct {
	session *discordgo.Session
}

func (g *gateway) Name() string { return "discord-gateway" }

func (g *gateway) Start(context.Context) error {
	return errors.Annotate(g.session.Open(), "open discord gateway")
}

func (g *gateway) Stop(context.Context) { _ = g.session.Close() }

// SyncOnce runs a single proposal sync without opening the gateway; forum
// posts only need the REST API.
func SyncOnce(ctx context.Context, cfg config.Bot, clk clock.Clock, log *zap.Logger) (proposals.Result, error) {
	dg, err := newSession(cfg.Token)
	if err != nil {
		return proposals.Result{}, err
	}
	backend := api.NewClient(cfg.Backend)
	syncer, target := newSyncer(cfg, dg, backend, clk, log)
	return syncer.RunTarget(ctx, target)
}
