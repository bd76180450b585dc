package proposals

import (
	"context"

	"github.com/juju/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/config"
)

// TargetSource resolves the sync target at run time.
type TargetSource func(ctx context.Context) (Target, error)

// GuildLookup reads the backend's guild record.
type GuildLookup interface {
	Guild(ctx context.Context, guildID string) (*api.Guild, error)
}

// ConfiguredTarget uses the configured forum channel, falling back to the one
// stored with the guild registration.
func ConfiguredTarget(cfg config.Bot, guilds GuildLookup) TargetSource {
	return func(ctx context.Context) (Target, error) {
		t := Target{GuildID: cfg.GuildID, ForumChannelID: cfg.ForumChannelID, DrepID: cfg.DRepID}
		if t.ForumChannelID != "" {
			return t, nil
		}
		g, err := guilds.Guild(ctx, cfg.GuildID)
		switch {
		case errors.Is(err, errors.NotFound):
			return t, nil
		case err != nil:
			return t, errors.Annotate(err, "load guild")
		}
		t.GuildName = g.GuildName
		t.ForumChannelID = g.ForumChannelID
		return t, nil
	}
}

// RunTarget resolves the target and runs one sync.
func (s *Syncer) RunTarget(ctx context.Context, src TargetSource) (Result, error) {
	t, err := src(ctx)
	if err != nil {
		return Result{}, err
	}
	return s.Run(ctx, t)
}

// Scheduler runs the sync on a cron schedule.
type Scheduler struct {
	spec   string
	syncer *Syncer
	target TargetSource
	log    *zap.Logger
	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewScheduler(spec string, syncer *Syncer, target TargetSource, log *zap.Logger) *Scheduler {
	return &Scheduler{spec: spec, syncer: syncer, target: target, log: log.Named("sync")}
}

func (s *Scheduler) Name() string { return "proposal-sync" }

func (s *Scheduler) Start(ctx context.Context) error {
	logger := cron.PrintfLogger(zap.NewStdLog(s.log))
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	runCtx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(s.spec, func() { s.runOnce(runCtx) }); err != nil {
		cancel()
		return errors.Annotatef(err, "schedule %q", s.spec)
	}
	s.cron, s.cancel = c, cancel
	c.Start()
	s.log.Info("proposal sync scheduled", zap.String("cron", s.spec))
	return nil
}

func (s *Scheduler) Stop(context.Context) {
	if s.cron == nil {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	res, err := s.syncer.RunTarget(ctx, s.target)
	switch {
	case errors.Is(err, ErrMissingConfig):
		s.log.Warn("proposal sync skipped", zap.Error(err))
	case errors.Is(err, ErrSyncInProgress):
		s.log.Info("proposal sync already running")
	case err != nil:
		s.log.Error("proposal sync failed", zap.Error(err))
	default:
		s.log.Debug("scheduled sync", zap.Int("posted", res.Posted), zap.Int("failed", res.Failed))
	}
}
