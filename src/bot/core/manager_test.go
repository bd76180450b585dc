package core

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeModule struct {
	name    string
	failErr error
	events  *[]string
	stopCtx context.Context
}

func (f *fakeModule) Name() string { return f.name }

func (f *fakeModule) Start(context.Context) error {
	if f.failErr != nil {
		return f.failErr
	}
	*f.events = append(*f.events, "start:"+f.name)
	return nil
}

func (f *fakeModule) Stop(ctx context.Context) {
	f.stopCtx = ctx
	*f.events = append(*f.events, "stop:"+f.name)
}

func TestManagerStartsInOrderAndStopsInReverse(t *testing.T) {
	var events []string
	m := NewManager(zaptest.NewLogger(t),
		&fakeModule{name: "gateway", events: &events},
		nil,
		&fakeModule{name: "proposal-sync", events: &events},
		&fakeModule{name: "drep-vote-notifier", events: &events},
	)
	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, []string{"gateway", "proposal-sync", "drep-vote-notifier"}, m.Running())

	err := m.Start(context.Background())
	assert.True(t, errors.Is(err, errors.AlreadyExists), "%v", err)

	m.Stop(context.Background())
	assert.Equal(t, []string{
		"start:gateway", "start:proposal-sync", "start:drep-vote-notifier",
		"stop:drep-vote-notifier", "stop:proposal-sync", "stop:gateway",
	}, events)
	assert.Empty(t, m.Running())
}

func TestManagerUnwindsOnFailure(t *testing.T) {
	var events []string
	m := NewManager(zaptest.NewLogger(t),
		&fakeModule{name: "gateway", events: &events},
		&fakeModule{name: "proposal-sync", events: &events, failErr: errors.New("bad cron spec")},
		&fakeModule{name: "drep-vote-notifier", events: &events},
	)
	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "module proposal-sync: bad cron spec")
	assert.Equal(t, []string{"start:gateway", "stop:gateway"}, events)
	assert.Empty(t, m.Running())

	// Nothing is running, so Stop is a no-op.
	m.Stop(context.Background())
	assert.Equal(t, []string{"start:gateway", "stop:gateway"}, events)
}

func TestManagerStopOutlivesCancelledContext(t *testing.T) {
	var events []string
	mod := &fakeModule{name: "gateway", events: &events}
	m := NewManager(zaptest.NewLogger(t), mod)
	require.NoError(t, m.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Stop(ctx)

	require.NotNil(t, mod.stopCtx)
	assert.NoError(t, mod.stopCtx.Err())
	_, ok := mod.stopCtx.Deadline()
	assert.True(t, ok)
}
