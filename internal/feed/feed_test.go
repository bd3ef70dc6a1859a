package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/bedwards/imaginary-crime-lab/internal/activity"
	"github.com/bedwards/imaginary-crime-lab/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func fastConfig() Config {
	return Config{
		Interval:     5 * time.Millisecond,
		Lifetime:     time.Minute,
		ActiveWindow: 30 * time.Second,
		BatchSize:    2,
	}
}

// collector records sent events and can be told to fail.
type collector struct {
	mu     sync.Mutex
	events []activity.Event
	fail   atomic.Bool
}

func (c *collector) send(e activity.Event) error {
	if c.fail.Load() {
		return errors.New("client gone")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) ofType(typ activity.Type) []activity.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []activity.Event
	for _, e := range c.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (c *collector) nonSynthetic() []activity.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []activity.Event
	for _, e := range c.events {
		if e.Type.Storable() {
			out = append(out, e)
		}
	}
	return out
}

// serve runs Serve in the background and returns a stop function that
// cancels it and returns its error.
func serve(t *testing.T, b *Broadcaster, c *collector) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx, c.send) }()
	return func() error {
		cancel()
		return <-done
	}
}

func appendAt(t *testing.T, log activity.Log, id string, at time.Time, session string) {
	t.Helper()
	require.NoError(t, log.Append(context.Background(), activity.Event{
		ID: id, Type: activity.TypeCartAdd, Timestamp: at, SessionID: session,
	}))
}

func TestServe_DeliversOnlyNewEventsInOrder(t *testing.T) {
	clk := testutil.NewManualClock(testutil.Epoch)
	log := activity.NewMemoryLog(0, clk)
	appendAt(t, log, "before", testutil.Epoch.Add(-time.Second), "s0")
	// Stamped after the subscribe instant, appended out of order.
	appendAt(t, log, "b", testutil.Epoch.Add(2*time.Second), "s1")
	appendAt(t, log, "a", testutil.Epoch.Add(1*time.Second), "s1")
	appendAt(t, log, "c", testutil.Epoch.Add(2*time.Second), "s2")

	c := &collector{}
	stop := serve(t, New(log, fastConfig(), WithClock(clk), WithLogger(discard)), c)

	require.Eventually(t, func() bool { return len(c.nonSynthetic()) == 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	got := c.nonSynthetic()
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestServe_NoDuplicatesAcrossPolls(t *testing.T) {
	clk := testutil.NewManualClock(testutil.Epoch)
	log := activity.NewMemoryLog(0, clk)

	c := &collector{}
	stop := serve(t, New(log, fastConfig(), WithClock(clk), WithLogger(discard)), c)

	const total = 40
	for i := 0; i < total; i++ {
		appendAt(t, log, fmt.Sprintf("e%03d", i), testutil.Epoch.Add(time.Duration(i+1)*time.Millisecond), "s")
		if i%7 == 0 {
			time.Sleep(3 * time.Millisecond)
		}
	}

	require.Eventually(t, func() bool { return len(c.nonSynthetic()) >= total }, 2*time.Second, 5*time.Millisecond)
	// Let a few more polls run over the same range.
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, stop())

	got := c.nonSynthetic()
	require.Len(t, got, total)
	for i := 1; i < len(got); i++ {
		assert.True(t, activity.Less(got[i-1], got[i]), "event %d out of order", i)
	}
}

func TestServe_EmitsActiveSessionCount(t *testing.T) {
	clk := testutil.NewManualClock(testutil.Epoch)
	log := activity.NewMemoryLog(0, clk)
	appendAt(t, log, "old", testutil.Epoch.Add(-time.Minute), "stale")
	appendAt(t, log, "x", testutil.Epoch.Add(-10*time.Second), "s1")
	appendAt(t, log, "y", testutil.Epoch.Add(-5*time.Second), "s2")
	appendAt(t, log, "z", testutil.Epoch.Add(-1*time.Second), "s1")

	c := &collector{}
	stop := serve(t, New(log, fastConfig(), WithClock(clk), WithLogger(discard)), c)
	require.Eventually(t, func() bool { return len(c.ofType(activity.TypeConnectionCount)) > 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	counts := c.ofType(activity.TypeConnectionCount)
	assert.Equal(t, 2, counts[0].Payload.Count)
	assert.Empty(t, c.nonSynthetic(), "events before subscribe are not replayed")
}

func TestServe_LifetimeSendsReconnect(t *testing.T) {
	clk := testutil.NewManualClock(testutil.Epoch)
	cfg := fastConfig()
	cfg.Lifetime = 30 * time.Millisecond
	b := New(activity.NewMemoryLog(0, clk), cfg, WithClock(clk), WithLogger(discard))

	c := &collector{}
	err := b.Serve(context.Background(), c.send)
	require.NoError(t, err)

	c.mu.Lock()
	last := c.events[len(c.events)-1]
	c.mu.Unlock()
	assert.Equal(t, activity.TypeReconnect, last.Type)
}

func TestServe_StopsWhenSendFails(t *testing.T) {
	clk := testutil.NewManualClock(testutil.Epoch)
	b := New(activity.NewMemoryLog(0, clk), fastConfig(), WithClock(clk), WithLogger(discard))

	c := &collector{}
	c.fail.Store(true)
	err := b.Serve(context.Background(), c.send)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client gone")
}

// flakyReader fails its first reads.
type flakyReader struct {
	*activity.MemoryLog
	failures atomic.Int32
}

func (f *flakyReader) Since(ctx context.Context, c activity.Cursor, limit int) ([]activity.Event, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("log unavailable")
	}
	return f.MemoryLog.Since(ctx, c, limit)
}

func TestServe_RetriesAfterReadError(t *testing.T) {
	clk := testutil.NewManualClock(testutil.Epoch)
	log := &flakyReader{MemoryLog: activity.NewMemoryLog(0, clk)}
	log.failures.Store(3)

	c := &collector{}
	stop := serve(t, New(log, fastConfig(), WithClock(clk), WithLogger(discard)), c)
	appendAt(t, log.MemoryLog, "a", testutil.Epoch.Add(time.Second), "s1")

	require.Eventually(t, func() bool { return len(c.nonSynthetic()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
}

func TestNew_AppliesDefaults(t *testing.T) {
	b := New(activity.NewMemoryLog(0, nil), Config{})
	assert.Equal(t, DefaultConfig(), b.cfg)
}

func TestActiveSessions(t *testing.T) {
	events := []activity.Event{{SessionID: "a"}, {SessionID: ""}, {SessionID: "b"}, {SessionID: "a"}}
	assert.Equal(t, 2, activeSessions(events))
}
