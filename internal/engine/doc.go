// Package engine implements case resolution.
//
// An order arrives from the storefront webhook carrying the evidence units it
// bought. The Committer records those units in the global evidence ledger,
// evaluates every unsolved case against the full ledger (not just this
// order), marks newly covered cases solved and writes the purchase receipt.
// All of that happens in one SQLite write transaction, so either the whole
// resolution is durable or none of it is.
//
// Two guards make resolution safe under concurrency and webhook retries:
//
//   - The order id is the idempotency key. A second delivery of the same
//     order finds its receipt and changes nothing.
//   - A case is solved with UPDATE ... WHERE solved_at IS NULL. Of several
//     transactions that cover the same case only one sees a changed row, so
//     exactly one case_solved event is ever produced per case.
//
// Activity events produced by a resolution are staged in an outbox table in
// the same transaction and appended to the activity log after commit. A
// failed append leaves them in the outbox; the next delivery of the order
// (the storefront retries on 503) publishes them again under the same ids.
package engine
