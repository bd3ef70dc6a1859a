// Package activity records and reads the append-only activity log.
//
// Every user-visible happening (a case viewed, evidence added to a cart, a
// case solved) is appended as an Event. Observers read the log forward from a
// Cursor; the analytics aggregator reads time ranges from it. Entries expire
// after a retention window, which is a capability of the backing Log:
//
//   - BadgerLog writes each event with a native key TTL.
//   - RedisLog keeps a sorted set and trims it on every append.
//   - MemoryLog trims on read and exists for tests and single-process demos.
//
// Events are ordered by (Timestamp, ID). IDs are UUIDv7 so that two events
// stamped in the same instant still sort in creation order.
package activity
