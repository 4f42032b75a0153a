// Package store holds the latest accepted version of every conversation,
// guarded by one advisory lock per reference id.
//
// Two backends implement the same contract: an in-process map for the
// reference single-node design, and a Redis-backed store whose advisory
// locks make the contract hold across processes.
package store

import (
	"context"

	"github.com/trustrail/trustrail/pkg/command"
)

// OnAccept is invoked after a new command version is accepted, while the
// conversation lock is still held. The engine uses it to enqueue the
// follow-up or send-request task and to journal the accepted version.
type OnAccept func(cmd command.Command)

// CommandStore is the keyed map of conversation id to latest accepted
// command version.
//
// Save acquires a non-blocking advisory lock for the command's reference
// id and fails with a conflict error when the lock is already held; the
// caller retries later, it is never queued. Under the lock: an incoming
// command equal to the stored version returns immediately (idempotent
// replay), an invalid transition propagates the validator's error and
// leaves the store unchanged, and an accepted command overwrites the
// stored version before the OnAccept hook runs. The lock is released on
// every path.
type CommandStore interface {
	Save(ctx context.Context, cmd command.Command) error
	// Get returns the latest accepted version, or ok=false when the
	// conversation is unknown.
	Get(ctx context.Context, referenceID string) (cmd command.Command, ok bool, err error)
}
