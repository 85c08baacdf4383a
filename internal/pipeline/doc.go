// Package pipeline runs validation steps for one target and batches of
// targets.
//
// A run moves through ordered steps: capture the markup, validate it
// through the target's session, and save it to the history database. Each
// step implements Step and receives the *model.Run built so far.
//
// ErrSkip lets a step end the run early without marking it failed. The
// capture step uses it for unchanged markup in watch mode and the validate
// step for results superseded by a newer validation.
//
// BatchProcessor runs one pipeline per target with a concurrency limit
// using errgroup.
package pipeline
