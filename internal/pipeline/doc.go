// Package pipeline sequences one wrangler run.
//
// A run loads the change record, discovers candidates, filters them to the
// stale subset, compiles that subset, writes the outputs, logs each written
// source into the record and persists the record. Persistence happens once
// per run and also when the run fails after compilation started.
package pipeline
