package proposals

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stake-plus/cardano-gov-sentiment/src/api/types"
	"github.com/stake-plus/cardano-gov-sentiment/src/bot/api"
	"github.com/stake-plus/cardano-gov-sentiment/src/config"
	"github.com/stake-plus/cardano-gov-sentiment/src/discord/discordtest"
)

type fakeBackend struct {
	mu         sync.Mutex
	active     []types.Proposal
	posted     map[string]string
	registered []api.GuildRegistration
	calls      int
	recordErr  map[string]error
	activeErr  error
	guild      *api.Guild
}

func newFakeBackend(active ...types.Proposal) *fakeBackend {
	return &fakeBackend{active: active, posted: map[string]string{}, recordErr: map[string]error{}}
}

func (f *fakeBackend) RegisterGuild(_ context.Context, reg api.GuildRegistration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.registered = append(f.registered, reg)
	return nil
}

func (f *fakeBackend) ActiveProposals(context.Context) ([]types.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.active, f.activeErr
}

func (f *fakeBackend) PostedProposalIDs(context.Context, string, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	ids := make([]string, 0, len(f.posted))
	for id := range f.posted {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeBackend) RecordPost(_ context.Context, _ string, rec api.PostRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.recordErr[rec.ProposalID]; err != nil {
		return err
	}
	f.posted[rec.ProposalID] = rec.ThreadID
	return nil
}

func (f *fakeBackend) Guild(_ context.Context, guildID string) (*api.Guild, error) {
	if f.guild == nil {
		return nil, errors.NotFoundf("guild %s", guildID)
	}
	return f.guild, nil
}

func proposal(id string, epoch uint32) types.Proposal {
	return types.Proposal{
		ProposalID:      id,
		Title:           fmt.Sprintf("Proposal %s", id),
		Type:            types.TypeInfoAction,
		Status:          types.StatusActive,
		SubmissionEpoch: epoch,
	}
}

var target = Target{GuildID: "100", ForumChannelID: "forum", DrepID: "drep1test"}

func newSyncer(t *testing.T, b *fakeBackend, s *discordtest.Session, clk *testclock.Clock, delay time.Duration) *Syncer {
	log := zaptest.NewLogger(t)
	return NewSyncer(b, NewForumPoster(s, log), clk, delay, log)
}

func TestSyncPostsOldestFirstAndIsIdempotent(t *testing.T) {
	b := newFakeBackend(proposal("gov_a", 450), proposal("gov_b", 448), proposal("gov_c", 452))
	s := discordtest.New()
	syncer := newSyncer(t, b, s, testclock.NewClock(time.Now()), 0)

	res, err := syncer.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Result{Posted: 3}, res)
	assert.Equal(t, []string{"Proposal gov_b", "Proposal gov_a", "Proposal gov_c"}, s.ThreadTitles())
	require.Len(t, b.registered, 1)
	assert.Equal(t, "forum", b.registered[0].ForumChannelID)

	res, err = syncer.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Len(t, s.Threads, 3)
}

func TestSyncMissingConfigMakesNoCalls(t *testing.T) {
	b := newFakeBackend(proposal("gov_a", 1))
	syncer := newSyncer(t, b, discordtest.New(), testclock.NewClock(time.Now()), 0)

	for _, tt := range []Target{
		{GuildID: "1", DrepID: "drep1"},
		{GuildID: "1", ForumChannelID: "f"},
		{ForumChannelID: "f", DrepID: "drep1"},
	} {
		_, err := syncer.Run(context.Background(), tt)
		assert.True(t, errors.Is(err, ErrMissingConfig), "%+v: %v", tt, err)
	}
	assert.Zero(t, b.calls)
}

func TestSyncIsolatesFailures(t *testing.T) {
	b := newFakeBackend(proposal("gov_a", 1), proposal("gov_b", 2), proposal("gov_c", 3), proposal("gov_d", 4))
	b.recordErr["gov_c"] = errors.AlreadyExistsf("post for gov_c")
	b.recordErr["gov_d"] = errors.New("backend down")
	s := discordtest.New()
	s.FailThread = func(title string) error {
		if title == "Proposal gov_a" {
			return errors.New("HTTP 429 Too Many Requests")
		}
		return nil
	}
	syncer := newSyncer(t, b, s, testclock.NewClock(time.Now()), 0)

	res, err := syncer.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Result{Posted: 1, Failed: 2, Skipped: 1}, res)

	// gov_a failed to post and gov_d failed to record, so both are retried.
	s.FailThread = nil
	delete(b.recordErr, "gov_d")
	res, err = syncer.Run(context.Background(), target)
	require.NoError(t, err)
	assert.Equal(t, Result{Posted: 2, Skipped: 1}, res)
}

func TestSyncAbortsWhenProposalsUnavailable(t *testing.T) {
	b := newFakeBackend()
	b.activeErr = errors.New("connection refused")
	syncer := newSyncer(t, b, discordtest.New(), testclock.NewClock(time.Now()), 0)
	_, err := syncer.Run(context.Background(), target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch active proposals")
}

func TestSyncWaitsBetweenPosts(t *testing.T) {
	b := newFakeBackend(proposal("gov_a", 1), proposal("gov_b", 2), proposal("gov_c", 3))
	s := discordtest.New()
	clk := testclock.NewClock(time.Now())
	syncer := newSyncer(t, b, s, clk, 2*time.Second)

	done := make(chan Result, 1)
	go func() {
		res, err := syncer.Run(context.Background(), target)
		assert.NoError(t, err)
		done <- res
	}()

	for i := 0; i < 2; i++ {
		require.NoError(t, clk.WaitAdvance(2*time.Second, 5*time.Second, 1))
	}
	select {
	case res := <-done:
		assert.Equal(t, 3, res.Posted)
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not finish")
	}
	assert.Len(t, s.Threads, 3)
}

func TestSyncRejectsConcurrentRunForGuild(t *testing.T) {
	b := newFakeBackend(proposal("gov_a", 1), proposal("gov_b", 2))
	clk := testclock.NewClock(time.Now())
	syncer := newSyncer(t, b, discordtest.New(), clk, time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = syncer.Run(context.Background(), target)
	}()
	// The first run is parked on the inter-post delay.
	require.NoError(t, clk.WaitAdvance(0, 5*time.Second, 1))

	_, err := syncer.Run(context.Background(), target)
	assert.True(t, errors.Is(err, ErrSyncInProgress))

	// gov_a is already recorded, so the other guild posts once and never waits.
	other := target
	other.GuildID = "200"
	_, err = syncer.Run(context.Background(), other)
	assert.NoError(t, err)

	clk.Advance(time.Minute)
	<-done
}

func TestConfiguredTargetFallsBackToGuildRecord(t *testing.T) {
	b := newFakeBackend()
	cfg := config.Bot{GuildID: "100", DRepID: "drep1x"}

	tgt, err := ConfiguredTarget(cfg, b)(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tgt.ForumChannelID)

	b.guild = &api.Guild{GuildID: "100", GuildName: "Pool", ForumChannelID: "stored"}
	tgt, err = ConfiguredTarget(cfg, b)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Target{GuildID: "100", GuildName: "Pool", ForumChannelID: "stored", DrepID: "drep1x"}, tgt)

	cfg.ForumChannelID = "env"
	tgt, err = ConfiguredTarget(cfg, b)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env", tgt.ForumChannelID)
}
