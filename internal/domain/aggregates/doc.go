// Package aggregates defines the write boundaries of the training progression model.
//
// Each aggregate owns its transaction: callers hand over identifiers and an actor, the
// aggregate validates, mutates and recomputes parent status inside one unit of work.
// Reads that are not needed to decide a transition live on table repos.
package aggregates
