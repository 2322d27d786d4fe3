package scheduler

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coinpulse/regimescan/internal/config"
)

func TestGuarded_SkipsOverlappingRuns(t *testing.T) {
	s := New(config.Default().Refresh, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.guarded(&s.normalBusy, "full-cycle", func() error {
			calls.Add(1)
			close(started)
			<-release
			return nil
		})
	}()

	<-started // first run is inside fn

	// Overlapping tick: skipped, fn not invoked again.
	s.guarded(&s.normalBusy, "full-cycle", func() error {
		calls.Add(1)
		return nil
	})
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	wg.Wait()

	// The guard is free again.
	s.guarded(&s.normalBusy, "full-cycle", func() error {
		calls.Add(1)
		return nil
	})
	assert.Equal(t, int32(2), calls.Load())
}

func TestGuarded_ErrorReleasesGuard(t *testing.T) {
	s := New(config.Default().Refresh, nil)
	s.guarded(&s.slowBusy, "regime-check", func() error { return errors.New("boom") })
	assert.False(t, s.slowBusy.Load())
}
