package activity

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces event keys. A key is the prefix, the event timestamp
// as 8 big-endian bytes of unix nanoseconds, then the event id, so byte
// order equals (Timestamp, ID) order.
var keyPrefix = []byte("evt/")

// idPrefix namespaces the id index: id/<event id> maps to the event key.
var idPrefix = []byte("id/")

// BadgerConfig configures a BadgerLog.
type BadgerConfig struct {
	// Path is the database directory. Empty opens an in-memory database.
	Path string

	// Retention is the TTL written on every event. Default: DefaultRetention.
	Retention time.Duration

	// SyncWrites fsyncs every append.
	SyncWrites bool

	// GCInterval is how often value log GC runs. 0 disables it.
	// Ignored for in-memory databases.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum discardable fraction that triggers a
	// rewrite. Default: 0.5.
	GCDiscardRatio float64

	// Logger receives badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

// BadgerLog is a Log stored in BadgerDB. Expiry uses badger's key TTL, so
// expired events vanish from reads without a sweeper.
//
// Thread Safety: safe for concurrent use.
type BadgerLog struct {
	db        *badger.DB
	retention time.Duration
	gc        *gcRunner
	closeOnce sync.Once
	closeErr  error
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens or creates a badger-backed activity log.
func OpenBadger(cfg BadgerConfig) (*BadgerLog, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.GCDiscardRatio == 0 {
		cfg.GCDiscardRatio = 0.5
	}
	if cfg.GCDiscardRatio < 0 || cfg.GCDiscardRatio > 1 {
		return nil, errors.New("gc discard ratio must be between 0 and 1")
	}

	var opts badger.Options
	inMemory := cfg.Path == ""
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create activity directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}

	l := &BadgerLog{db: db, retention: cfg.Retention}
	if cfg.GCInterval > 0 && !inMemory {
		l.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		l.gc.start()
	}
	return l, nil
}

func (l *BadgerLog) Append(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	idKey := append(append([]byte{}, idPrefix...), e.ID...)
	return l.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(idKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		key := eventKey(e.Timestamp, e.ID)
		if err := txn.SetEntry(badger.NewEntry(key, data).WithTTL(l.retention)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(idKey, key).WithTTL(l.retention))
	})
}

func (l *BadgerLog) Since(ctx context.Context, c Cursor, limit int) ([]Event, error) {
	start := eventKey(c.Time, c.ID)
	if c.Time.IsZero() {
		start = keyPrefix
	}
	out := []Event{}
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(keyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && len(out) >= limit {
				return nil
			}
			item := it.Item()
			if bytes.Equal(item.Key(), start) {
				continue
			}
			e, err := decodeItem(item)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read activity since %s: %w", c.Time.Format(time.RFC3339Nano), err)
	}
	return out, nil
}

func (l *BadgerLog) Between(ctx context.Context, from, to time.Time) ([]Event, error) {
	out := []Event{}
	limit := timeBytes(to)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(eventKey(from, "")); it.ValidForPrefix(keyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			if bytes.Compare(item.Key()[len(keyPrefix):len(keyPrefix)+8], limit) > 0 {
				return nil
			}
			e, err := decodeItem(item)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read activity between: %w", err)
	}
	return out, nil
}

// Close stops value log GC and closes the database. Safe to call multiple times.
func (l *BadgerLog) Close() error {
	l.closeOnce.Do(func() {
		if l.gc != nil {
			l.gc.stop()
		}
		l.closeErr = l.db.Close()
	})
	return l.closeErr
}

func eventKey(t time.Time, id string) []byte {
	key := make([]byte, 0, len(keyPrefix)+8+len(id))
	key = append(key, keyPrefix...)
	key = append(key, timeBytes(t)...)
	return append(key, id...)
}

// Unix nanoseconds only fit an int64 between 1970 and 2262; times outside
// clamp to the ends of the key space.
var maxKeyTime = time.Unix(0, math.MaxInt64)

func timeBytes(t time.Time) []byte {
	var nanos uint64
	switch {
	case t.Before(time.Unix(0, 0)):
		nanos = 0
	case t.After(maxKeyTime):
		nanos = math.MaxUint64
	default:
		nanos = uint64(t.UnixNano())
	}
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, nanos)
	return b
}

func decodeItem(item *badger.Item) (Event, error) {
	var e Event
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	if err != nil {
		return Event{}, fmt.Errorf("decode event %x: %w", item.Key(), err)
	}
	return e, nil
}

// gcRunner periodically triggers badger value log garbage collection.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	logger   *slog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcRunner {
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runGC()
		}
	}
}

func (r *gcRunner) runGC() {
	// ErrNoRewrite means nothing was worth collecting.
	err := r.db.RunValueLogGC(r.ratio)
	if err == nil {
		if r.logger != nil {
			r.logger.Debug("activity value log GC completed")
		}
	} else if !errors.Is(err, badger.ErrNoRewrite) {
		if r.logger != nil {
			r.logger.Warn("activity value log GC error", "error", err)
		}
	}
}
