package proposals

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/logging"
)

const (
	// ErrMissingConfig aborts a run before any backend call.
	ErrMissingConfig = errors.ConstError("sync configuration incomplete")
	// ErrSyncInProgress rejects a run for a guild that is already syncing.
	ErrSyncInProgress = errors.ConstError("sync already running for this guild")
)

// Backend is the part of the backend API the sync uses.
type Backend interface {
	RegisterGuild(ctx context.Context, reg api.GuildRegistration) error
	ActiveProposals(ctx context.Context) ([]types.Proposal, error)
	PostedProposalIDs(ctx context.Context, guildID, drepID string) ([]string, error)
	RecordPost(ctx context.Context, guildID string, rec api.PostRecord) error
}

// ThreadPoster publishes one proposal and returns the thread id.
type ThreadPoster interface {
	CreateProposalThread(ctx context.Context, forumID string, p types.Proposal) (string, error)
}

// Target is the guild forum a run fills for one DRep.
type Target struct {
	GuildID        string
	GuildName      string
	ForumChannelID string
	DrepID         string
}

// Result counts the outcome of a run. Skipped covers proposals another
// process recorded between the diff and the post.
type Result struct {
	Posted  int
	Failed  int
	Skipped int
}

// Syncer posts active proposals a guild has not seen yet.
type Syncer struct {
	backend Backend
	poster  ThreadPoster
	clock   clock.Clock
	delay   time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	running map[string]bool
}

func NewSyncer(backend Backend, poster ThreadPoster, clk clock.Clock, delay time.Duration, log *zap.Logger) *Syncer {
	return &Syncer{
		backend: backend,
		poster:  poster,
		clock:   clk,
		delay:   delay,
		log:     log,
		running: map[string]bool{},
	}
}

func (s *Syncer) acquire(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[guildID] {
		return false
	}
	s.running[guildID] = true
	return true
}

func (s *Syncer) release(guildID string) {
	s.mu.Lock()
	delete(s.running, guildID)
	s.mu.Unlock()
}

// Run posts every active proposal not yet recorded for the target, oldest
// submission epoch first, pausing between posts. A failed post is logged and
// counted; it does not stop the batch.
func (s *Syncer) Run(ctx context.Context, t Target) (Result, error) {
	var res Result
	switch {
	case t.GuildID == "":
		return res, errors.Annotate(ErrMissingConfig, "no guild id")
	case t.ForumChannelID == "":
		return res, errors.Annotate(ErrMissingConfig, "no forum channel configured")
	case t.DrepID == "":
		return res, errors.Annotate(ErrMissingConfig, "no DRep id configured")
	}
	if !s.acquire(t.GuildID) {
		return res, ErrSyncInProgress
	}
	defer s.release(t.GuildID)

	log := s.log.With(zap.String("guild", t.GuildID), zap.String("drep", t.DrepID))

	if err := s.backend.RegisterGuild(ctx, api.GuildRegistration{
		GuildID:        t.GuildID,
		GuildName:      t.GuildName,
		DrepID:         t.DrepID,
		ForumChannelID: t.ForumChannelID,
	}); err != nil {
		return res, errors.Annotate(err, "register guild")
	}
	active, err := s.backend.ActiveProposals(ctx)
	if err != nil {
		return res, errors.Annotate(err, "fetch active proposals")
	}
	posted, err := s.backend.PostedProposalIDs(ctx, t.GuildID, t.DrepID)
	if err != nil {
		return res, errors.Annotate(err, "fetch posted proposals")
	}

	fresh := NewProposals(active, posted)
	log.Info("proposal sync", zap.Int("active", len(active)), zap.Int("new", len(fresh)))

	for i, p := range fresh {
		if i > 0 && s.delay > 0 {
			select {
			case <-ctx.Done():
				return res, errors.Trace(ctx.Err())
			case <-s.clock.After(s.delay):
			}
		}
		threadID, err := s.poster.CreateProposalThread(ctx, t.ForumChannelID, p)
		if err != nil {
			res.Failed++
			log.Warn("post proposal", zap.String("proposal", p.ProposalID),
				zap.Bool("rate_limited", logging.IsRateLimit(err)), zap.Error(err))
			continue
		}
		err = s.backend.RecordPost(ctx, t.GuildID, api.PostRecord{DrepID: t.DrepID, ProposalID: p.ProposalID, ThreadID: threadID})
		switch {
		case errors.Is(err, errors.AlreadyExists):
			res.Skipped++
			log.Warn("proposal recorded concurrently", zap.String("proposal", p.ProposalID), zap.String("thread", threadID))
		case err != nil:
			res.Failed++
			log.Warn("record post", zap.String("proposal", p.ProposalID), zap.String("thread", threadID), zap.Error(err))
		default:
			res.Posted++
		}
	}
	log.Info("proposal sync done", zap.Int("posted", res.Posted), zap.Int("failed", res.Failed), zap.Int("skipped", res.Skipped))
	return res, nil
}

// NewProposals returns active proposals not in posted, ordered by submission
// epoch ascending so the newest proposal ends up on top of the forum.
func NewProposals(active []types.Proposal, posted []string) []types.Proposal {
	seen := make(map[string]bool, len(posted))
	for _, id := range posted {
		seen[id] = true
	}
	fresh := make([]types.Proposal, 0, len(active))
	for _, p := range active {
		if !seen[p.ProposalID] {
			fresh = append(fresh, p)
		}
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		if fresh[i].SubmissionEpoch != fresh[j].SubmissionEpoch {
			return fresh[i].SubmissionEpoch < fresh[j].SubmissionEpoch
		}
		return fresh[i].ProposalID < fresh[j].ProposalID
	})
	return fresh
}

// PostOne publishes a single proposal for the target. It shares the guild
// lock with Run and returns AlreadyExists when the proposal has a thread.
func (s *Syncer) PostOne(ctx context.Context, t Target, p types.Proposal) (string, error) {
	if t.GuildID == "" || t.ForumChannelID == "" || t.DrepID == "" {
		return "", errors.Annotate(ErrMissingConfig, "no forum channel or DRep id configured")
	}
	if !s.acquire(t.GuildID) {
		return "", ErrSyncInProgress
	}
	defer s.release(t.GuildID)

	if err := s.backend.RegisterGuild(ctx, api.GuildRegistration{
		GuildID: t.GuildID, GuildName: t.GuildName, DrepID: t.DrepID, ForumChannelID: t.ForumChannelID,
	}); err != nil {
		return "", errors.Annotate(err, "register guild")
	}
	posted, err := s.backend.PostedProposalIDs(ctx, t.GuildID, t.DrepID)
	if err != nil {
		return "", errors.Annotate(err, "fetch posted proposals")
	}
	for _, id := range posted {
		if id == p.ProposalID {
			return "", errors.AlreadyExistsf("thread for %s", p.ProposalID)
		}
	}
	threadID, err := s.poster.CreateProposalThread(ctx, t.ForumChannelID, p)
	if err != nil {
		return "", err
	}
	if err := s.backend.RecordPost(ctx, t.GuildID, api.PostRecord{DrepID: t.DrepID, ProposalID: p.ProposalID, ThreadID: threadID}); err != nil {
		return threadID, errors.Annotate(err, "record post")
	}
	return threadID, nil
}
