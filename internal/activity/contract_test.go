package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bedwards/imaginary-crime-lab/internal/testutil"
)

// contractNow is the clock reading every backend is opened with, so that
// events stamped around testutil.Epoch are unexpired.
var contractNow = testutil.Epoch.Add(time.Hour)

func ev(id string, offset time.Duration, typ Type) Event {
	return Event{
		ID:        id,
		Type:      typ,
		Timestamp: testutil.Epoch.Add(offset),
		SessionID: "s-" + id,
	}
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

// runLogContract exercises the behavior every Log backend must share.
func runLogContract(t *testing.T, open func(t *testing.T) Log) {
	t.Run("SinceReturnsTimestampOrder", func(t *testing.T) {
		l := open(t)
		ctx := t.Context()
		require.NoError(t, l.Append(ctx, ev("c", 3*time.Second, TypeCartAdd)))
		require.NoError(t, l.Append(ctx, ev("a", 1*time.Second, TypeCaseViewed)))
		require.NoError(t, l.Append(ctx, ev("b", 2*time.Second, TypeCartRemove)))

		got, err := l.Since(ctx, Cursor{}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, ids(got))
		assert.Equal(t, "s-a", got[0].SessionID)
		assert.True(t, got[0].Timestamp.Equal(testutil.Epoch.Add(time.Second)))
	})

	t.Run("SinceExcludesCursorPosition", func(t *testing.T) {
		l := open(t)
		ctx := t.Context()
		a, b := ev("a", time.Second, TypeCaseViewed), ev("b", 2*time.Second, TypeCaseViewed)
		require.NoError(t, l.Append(ctx, a))
		require.NoError(t, l.Append(ctx, b))

		got, err := l.Since(ctx, CursorAt(a), 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, ids(got))

		got, err = l.Since(ctx, CursorAt(b), 0)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NotNil(t, got)
	})

	t.Run("SameTimestampOrderedByID", func(t *testing.T) {
		l := open(t)
		ctx := t.Context()
		require.NoError(t, l.Append(ctx, ev("y", time.Second, TypeCartAdd)))
		require.NoError(t, l.Append(ctx, ev("x", time.Second, TypeCartAdd)))
		require.NoError(t, l.Append(ctx, ev("z", time.Second, TypeCartAdd)))

		got, err := l.Since(ctx, Cursor{Time: testutil.Epoch.Add(time.Second)}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", "y", "z"}, ids(got))

		got, err = l.Since(ctx, Cursor{Time: testutil.Epoch.Add(time.Second), ID: "x"}, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"y", "z"}, ids(got))
	})

	t.Run("SinceHonorsLimit", func(t *testing.T) {
		l := open(t)
		ctx := t.Context()
		for i, id := range []string{"a", "b", "c", "d"} {
			require.NoError(t, l.Append(ctx, ev(id, time.Duration(i+1)*time.Millisecond, TypeCartAdd)))
		}
		got, err := l.Since(ctx, Cursor{}, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids(got))
	})

	t.Run("AppendSameEventTwiceStoresOnce", func(t *testing.T) {
		l := open(t)
		ctx := t.Context()
		e := ev("solved-1", time.Second, TypeCaseSolved)
		e.Payload = Payload{CaseID: "case-001", OrderID: "order-1"}
		require.NoError(t, l.Append(ctx, e))
		require.NoError(t, l.Append(ctx, e))

		got, err := l.Since(ctx, Cursor{}, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "case-001", got[0].Payload.CaseID)
	})

	t.Run("AppendKnownIDKeepsFirstTimestamp", func(t *testing.T) {
		l := open(t)
		ctx := t.Context()
		first := ev("solved-1", time.Second, TypeCaseSolved)
		later := ev("solved-1", time.Minute, TypeCaseSolved)
		require.NoError(t, l.Append(ctx, first))
		require.NoError(t, l.Append(ctx, later))

		got, err := l.Since(ctx, Cursor{}, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Timestamp.Equal(first.Timestamp))

		got, err = l.Since(ctx, Cursor{Time: first.Timestamp, ID: first.ID}, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("BetweenIsInclusive", func(t *testing.T) {
		l := open(t)
		ctx := t.Context()
		for i, id := range []string{"a", "b", "c", "d"} {
			require.NoError(t, l.Append(ctx, ev(id, time.Duration(i)*time.Minute, TypeCaseViewed)))
		}
		got, err := l.Between(ctx, testutil.Epoch.Add(time.Minute), testutil.Epoch.Add(2*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, ids(got))
	})
}
