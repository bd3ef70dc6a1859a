package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// marshalIDs converts an id set to a JSON array TEXT for storage.
// The array is sorted so that equal sets always serialize identically.
func marshalIDs(ids []string) (string, error) {
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)
	data, err := json.Marshal(sorted)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

// unmarshalIDs parses a JSON array TEXT. Returns an empty slice (not nil)
// for empty input.
func unmarshalIDs(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// toMillis converts a time to the INTEGER unix-milliseconds column format.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// fromMillis converts a unix-milliseconds column back to a UTC time.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
