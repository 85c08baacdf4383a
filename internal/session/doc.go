// Package session holds the state of validating one target over time.
//
// A Session is a small state machine:
//
//	Idle ──Begin──▶ Validating ──Complete──▶ ShowingResults
//	                    │
//	                    └──────Fail───────▶ Failed
//
// Every Begin issues a new Token. Complete and Fail only take effect for
// the latest token, so when validations overlap (for example in watch mode)
// the last one started wins and older responses are dropped with ErrStale.
// A failure keeps the previous results on display.
//
// The filter panel and result visibility are independent display flags,
// and filter changes are written through a filter.Store as they happen.
package session
