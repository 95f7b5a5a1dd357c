package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/usecase"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/entity"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
	"github.com/dreschagin/dlp-kpi-monitor/pkg/logger"
)

type fakeExecutor struct {
	calls atomic.Int32
	err   error
	got   usecase.RunSuiteCommand
}

func (f *fakeExecutor) Execute(_ context.Context, cmd usecase.RunSuiteCommand) (*entity.SuiteRun, error) {
	f.calls.Add(1)
	f.got = cmd
	if f.err != nil {
		return nil, f.err
	}
	run := entity.StartSuiteRun(valueobject.ModeQuick, time.Now())
	run.Finalize(time.Now())
	return run, nil
}

type fakePruner struct {
	calls int
}

func (p *fakePruner) Execute(context.Context) (int64, error) {
	p.calls++
	return 3, nil
}

func TestRunOnceSuccess(t *testing.T) {
	exec := &fakeExecutor{}
	pruner := &fakePruner{}
	r := NewRunner(exec, usecase.RunSuiteCommand{Mode: "quick"}, Config{Interval: time.Minute}, logger.NewNop()).
		WithPruner(pruner)

	run, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, "quick", exec.got.Mode)
	assert.Equal(t, 1, pruner.calls)

	snap := r.Snapshot()
	assert.Equal(t, run.ID(), snap.LastRunID)
	assert.Equal(t, "critical", snap.LastOverall)
	assert.Empty(t, snap.LastError)
	assert.False(t, snap.Running)
	assert.NoError(t, snap.Ready(time.Now()))
}

func TestRunOnceFailureKeepsPreviousRun(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRunner(exec, usecase.RunSuiteCommand{Mode: "quick"}, Config{Interval: time.Minute}, logger.NewNop())

	first, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	exec.err = errors.New("unknown check")
	_, err = r.RunOnce(context.Background())
	require.Error(t, err)

	snap := r.Snapshot()
	assert.Equal(t, first.ID(), snap.LastRunID)
	assert.Contains(t, snap.LastError, "unknown check")
	assert.Error(t, snap.Ready(time.Now()))
}

func TestSnapshotReady(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Error(t, Snapshot{Interval: time.Minute}.Ready(now))
	assert.Error(t, Snapshot{Interval: time.Minute, LastRunAt: now.Add(-4 * time.Minute)}.Ready(now))
	assert.NoError(t, Snapshot{Interval: time.Minute, LastRunAt: now.Add(-time.Minute)}.Ready(now))
}

func TestStartRunsOnStartAndStopsOnCancel(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRunner(exec, usecase.RunSuiteCommand{Mode: "quick"}, Config{Interval: time.Hour, RunOnStart: true}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return exec.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

type blockingExecutor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingExecutor) Execute(context.Context, usecase.RunSuiteCommand) (*entity.SuiteRun, error) {
	close(b.started)
	<-b.release
	run := entity.StartSuiteRun(valueobject.ModeQuick, time.Now())
	run.Finalize(time.Now())
	return run, nil
}

func TestWaitBlocksUntilRunFinishes(t *testing.T) {
	exec := &blockingExecutor{started: make(chan struct{}), release: make(chan struct{})}
	r := NewRunner(exec, usecase.RunSuiteCommand{Mode: "quick"}, Config{Interval: time.Minute}, logger.NewNop())

	go func() { _, _ = r.RunOnce(context.Background()) }()
	<-exec.started

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, r.Wait(short), context.DeadlineExceeded)

	close(exec.release)
	require.NoError(t, r.Wait(context.Background()))
	assert.False(t, r.Snapshot().Running)
	assert.NotEmpty(t, r.Snapshot().LastRunID)
}
