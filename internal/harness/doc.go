// Package harness runs order scenarios against a fresh store and checks the
// outcome.
//
// A scenario names a catalog, a sequence of orders with optional expected
// results, and assertions on the final state and the activity log. Each run
// uses an in-memory database, an in-memory activity log, a manual clock that
// advances one second per order and sequential event ids, so traces are
// deterministic and can be compared against golden files.
//
// Example scenario:
//
//	name: two-orders-one-case
//	description: Evidence bought across two orders solves the case once.
//	catalog: ../catalogs/demo.yaml
//	orders:
//	  - id: order-1
//	    evidence: [fingerprint]
//	    expect:
//	      solved: []
//	  - id: order-2
//	    evidence: [ledger-page]
//	    expect:
//	      solved: [case-001]
//	assertions:
//	  - type: solved
//	    cases: [case-001]
//	  - type: event_count
//	    event: case_solved
//	    count: 1
package harness
