package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestly/gestly/pkg/logger"
)

func TestAddValidatesSchedule(t *testing.T) {
	s := NewScheduler(0, logger.NewDiscard())
	noop := func(context.Context) (int, error) { return 0, nil }

	assert.Error(t, s.Add(Job{Name: "bad", Schedule: "every now and then", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "", Schedule: "@every 1m", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "reminders", Schedule: "@every 5m", Run: noop}))
	require.NoError(t, s.Add(Job{Name: "campaigns", Schedule: "*/1 * * * *", Run: noop}))
	assert.Len(t, s.Jobs(), 2)
}

func TestRunNowSkipsOverlappingRuns(t *testing.T) {
	s := NewScheduler(time.Second, logger.NewDiscard())
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int32
	job := Job{Name: "slow", Schedule: "@every 1h", Run: func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
		}
		return 1, nil
	}}

	done := make(chan struct{})
	go func() {
		s.RunNow(job)
		close(done)
	}()
	<-started
	s.RunNow(job)
	close(release)
	<-done

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	s.RunNow(job)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRunNowAppliesTimeout(t *testing.T) {
	s := NewScheduler(20*time.Millisecond, logger.NewDiscard())
	var got error
	s.RunNow(Job{Name: "timeout", Schedule: "@every 1h", Run: func(ctx context.Context) (int, error) {
		<-ctx.Done()
		got = ctx.Err()
		return 0, got
	}})
	assert.True(t, errors.Is(got, context.DeadlineExceeded))
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(0, logger.NewDiscard())
	require.NoError(t, s.Add(Job{Name: "tick", Schedule: "@every 1h", Run: func(context.Context) (int, error) { return 0, nil }}))
	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, "jobs", s.Name())
}
