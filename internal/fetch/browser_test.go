package fetch

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromeLauncher_CancelledBeforeLaunch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChromeLauncher(DefaultChromeOptions()).Launch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChromeLauncher_CancelInterruptsHungStart(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script standing in for Chrome")
	}

	// A "browser" that never prints its DevTools endpoint.
	hung := filepath.Join(t.TempDir(), "hung-chrome")
	require.NoError(t, os.WriteFile(hung, []byte("#!/bin/sh\nexec sleep 60\n"), 0o755))

	opts := DefaultChromeOptions()
	opts.ExecPath = hung

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewChromeLauncher(opts).Launch(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestNewChromeLauncher_DefaultsUserAgent(t *testing.T) {
	l := NewChromeLauncher(ChromeOptions{Headless: true})
	assert.Equal(t, DefaultUserAgent, l.opts.UserAgent)
}
