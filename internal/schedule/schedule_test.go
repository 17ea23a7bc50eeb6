package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New("@every 1h", nil)
	assert.Error(t, err)

	_, err = New("every hour", func(context.Context) {})
	assert.Error(t, err)

	_, err = New("0 */6 * * *", func(context.Context) {})
	assert.NoError(t, err)
}

func TestStart_RunOnStart(t *testing.T) {
	var runs atomic.Int32
	done := make(chan struct{}, 1)
	s, err := New("@every 1h", func(context.Context) {
		runs.Add(1)
		done <- struct{}{}
	}, WithRunOnStart())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run did not happen")
	}
	assert.Equal(t, int32(1), runs.Load())
	assert.WithinDuration(t, time.Now().Add(time.Hour), s.Next(), time.Minute)
}

func TestStart_Twice(t *testing.T) {
	s, err := New("@every 1h", func(context.Context) {})
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Error(t, s.Start(context.Background()))
}

func TestStop_CancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	var sawCancel atomic.Bool
	s, err := New("@every 1h", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	}, WithRunOnStart())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	<-started
	s.Stop()
	assert.True(t, sawCancel.Load(), "Stop waits for the run to observe cancellation")

	s.Stop()
}

func TestRun_SkipsOverlap(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	s, err := New("@every 1h", func(context.Context) {
		runs.Add(1)
		<-release
	})
	require.NoError(t, err)

	ctx := context.Background()
	go s.run(ctx, "first")
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.run(ctx, "second")
	close(release)
	assert.Equal(t, int32(1), runs.Load())
}
