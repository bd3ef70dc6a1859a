package activity

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedwards/imaginary-crime-lab/internal/testutil"
)

func openTestBadger(t *testing.T, cfg BadgerConfig) *BadgerLog {
	t.Helper()
	l, err := OpenBadger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestBadgerLog_Contract(t *testing.T) {
	runLogContract(t, func(t *testing.T) Log {
		return openTestBadger(t, BadgerConfig{})
	})
}

func TestBadgerLog_PersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "activity")
	ctx := t.Context()

	l, err := OpenBadger(BadgerConfig{Path: dir})
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, ev("a", time.Second, TypeCaseSolved)))
	require.NoError(t, l.Close())

	l = openTestBadger(t, BadgerConfig{Path: dir, GCInterval: time.Minute})
	got, err := l.Since(ctx, Cursor{}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestBadgerLog_TTLExpiresEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for badger TTL")
	}
	l := openTestBadger(t, BadgerConfig{Retention: time.Second})
	ctx := t.Context()

	require.NoError(t, l.Append(ctx, ev("a", 0, TypeCartAdd)))
	time.Sleep(2100 * time.Millisecond)

	got, err := l.Since(ctx, Cursor{}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBadgerLog_CloseTwice(t *testing.T) {
	l, err := OpenBadger(BadgerConfig{})
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

func TestBadgerLog_RejectsBadDiscardRatio(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{GCDiscardRatio: 1.5})
	assert.Error(t, err)
}

func TestEventKey_OrdersByTimeThenID(t *testing.T) {
	a := eventKey(testutil.Epoch, "b")
	b := eventKey(testutil.Epoch.Add(time.Nanosecond), "a")
	c := eventKey(testutil.Epoch.Add(time.Nanosecond), "b")
	assert.Less(t, string(a), string(b))
	assert.Less(t, string(b), string(c))

	assert.Equal(t, make([]byte, 8), timeBytes(time.Time{}))
}
