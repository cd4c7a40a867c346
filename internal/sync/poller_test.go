package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fetchRecorder считает вызовы callback'а и запоминает их режим.
type fetchRecorder struct {
	mu       stdsync.Mutex
	calls    []bool // silent-флаги в порядке вызова
	delay    time.Duration
	err      error
	inFlight int32
	maxBusy  int32
}

func (f *fetchRecorder) fetch(ctx context.Context, silent bool) error {
	busy := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		old := atomic.LoadInt32(&f.maxBusy)
		if busy <= old || atomic.CompareAndSwapInt32(&f.maxBusy, old, busy) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, silent)
	f.mu.Unlock()
	return f.err
}

func (f *fetchRecorder) snapshot() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestPoller(t *testing.T, opts Options) *Poller {
	t.Helper()
	p := NewPoller(opts, zap.NewNop(), nil)
	t.Cleanup(p.Stop)
	return p
}

func TestStartFetchesImmediatelyAndLoudly(t *testing.T) {
	rec := &fetchRecorder{}
	p := newTestPoller(t, Options{
		Name:           "hr-requests",
		Interval:       time.Hour, // таймер не должен успеть сработать
		InitialEnabled: true,
		Fetch:          rec.fetch,
	})
	p.Start()

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.False(t, calls[0], "initial fetch must not be silent")
}

func TestTimerFetchesAreSilent(t *testing.T) {
	rec := &fetchRecorder{}
	p := newTestPoller(t, Options{
		Name:           "hr-requests",
		Interval:       30 * time.Millisecond,
		InitialEnabled: true,
		Fetch:          rec.fetch,
	})
	p.Start()

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 3
	}, time.Second, 5*time.Millisecond)

	calls := rec.snapshot()
	assert.False(t, calls[0])
	for i, silent := range calls[1:] {
		assert.True(t, silent, "timer fetch #%d must be silent", i+1)
	}
}

func TestSingleFlightUnderSlowFetch(t *testing.T) {
	// fetch длится в несколько раз дольше интервала: тики обязаны
	// пропускаться, а не накладываться друг на друга.
	rec := &fetchRecorder{delay: 80 * time.Millisecond}
	p := newTestPoller(t, Options{
		Name:           "dean-approvals",
		Interval:       15 * time.Millisecond,
		InitialEnabled: true,
		Fetch:          rec.fetch,
	})
	p.Start()

	time.Sleep(250 * time.Millisecond)
	p.Stop()

	assert.EqualValues(t, 1, atomic.LoadInt32(&rec.maxBusy),
		"no two fetches may ever be in flight simultaneously")
}

func TestSetEnabledStopsFutureFetches(t *testing.T) {
	rec := &fetchRecorder{}
	p := newTestPoller(t, Options{
		Name:           "hr-requests",
		Interval:       20 * time.Millisecond,
		InitialEnabled: true,
		Fetch:          rec.fetch,
	})
	p.Start()

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 2
	}, time.Second, 5*time.Millisecond)

	p.SetEnabled(false)
	count := len(rec.snapshot())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, count, len(rec.snapshot()), "no fetches after SetEnabled(false)")
	assert.False(t, p.Enabled())
}

func TestManualRefreshIsLoudAndReturnsError(t *testing.T) {
	rec := &fetchRecorder{err: errors.New("boom")}
	var reported error
	p := newTestPoller(t, Options{
		Name:           "hr-requests",
		Interval:       time.Hour,
		InitialEnabled: false,
		Fetch:          rec.fetch,
		OnError:        func(err error) { reported = err },
	})

	err := p.ManualRefresh()
	require.Error(t, err)
	assert.Equal(t, rec.err, reported, "manual failure must also hit the error callback")

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.False(t, calls[0])
}

func TestStopDiscardsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	var errorsReported int32
	var sawCancel int32

	fetch := func(ctx context.Context, silent bool) error {
		<-release
		if ctx.Err() != nil {
			atomic.StoreInt32(&sawCancel, 1)
		}
		return errors.New("late failure")
	}

	p := NewPoller(Options{
		Name:           "vc-events",
		Interval:       time.Hour,
		InitialEnabled: false,
		Fetch:          fetch,
		OnError:        func(error) { atomic.AddInt32(&errorsReported, 1) },
	}, zap.NewNop(), nil)

	done := make(chan struct{})
	go func() {
		p.Start() // повиснет внутри первоначального fetch'а
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	p.Stop()
	p.Stop() // повторный Stop безопасен
	close(release)
	<-done

	assert.EqualValues(t, 0, atomic.LoadInt32(&errorsReported),
		"result arriving after Stop must be discarded entirely")
	assert.EqualValues(t, 1, atomic.LoadInt32(&sawCancel),
		"fetch must observe the cancelled context")
}

func TestSetIntervalRestartsTimer(t *testing.T) {
	rec := &fetchRecorder{}
	p := newTestPoller(t, Options{
		Name:           "hr-requests",
		Interval:       time.Hour,
		InitialEnabled: true,
		Fetch:          rec.fetch,
	})
	p.Start()
	require.Len(t, rec.snapshot(), 1)

	// С часового интервала на 20мс: новый таймер должен заработать сразу.
	p.SetInterval(20 * time.Millisecond)
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestRegistryDisableAll(t *testing.T) {
	rec := &fetchRecorder{}
	reg := NewRegistry(zap.NewNop())

	var pollers []*Poller
	for _, name := range []string{"hr-requests", "dean-approvals", "vc-events"} {
		p := newTestPoller(t, Options{
			Name:           name,
			Interval:       time.Hour,
			InitialEnabled: true,
			Fetch:          rec.fetch,
		})
		p.Start()
		reg.Add(name, p)
		pollers = append(pollers, p)
	}

	reg.DisableAll()
	for _, p := range pollers {
		assert.False(t, p.Enabled())
	}

	reg.EnableAll()
	for _, p := range pollers {
		assert.True(t, p.Enabled())
	}
}
