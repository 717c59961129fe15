// Package core provides the domain model and the building blocks of the
// incremental shader build: kinds, candidates, the change record, discovery,
// staleness filtering, batch compilation and output writing.
//
// # Core Types
//
// Kind: the category of a shader source, fixing its search extension and its
// output suffix.
// Candidate: a discovered source file paired with the kind it was found under.
// Record: the ledger of last-compiled modification times, keyed by path.
// Outcome: the per-candidate result of a batch compilation.
//
// The components hold no persistence or orchestration logic;
// internal/record persists a Record and internal/pipeline sequences
// the steps of a run.
package core
