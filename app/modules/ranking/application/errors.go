package rankingservice

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveSeason indicates no season is flagged current. Jobs that need
	// one log a warning and return without doing work.
	ErrNoActiveSeason = errors.New("no active season")

	// ErrUnknownJob indicates a job kind that is not registered.
	ErrUnknownJob = errors.New("unknown job kind")
)

// EntityKind names what an EntityError is about.
type EntityKind string

const (
	EntityPost   EntityKind = "post"
	EntityRegion EntityKind = "region"
	EntityUser   EntityKind = "user"
)

// EntityError is a failure confined to one post, region, or user. The job logs
// it, counts it, and moves on.
type EntityError struct {
	Kind EntityKind
	ID   string
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error { return e.Err }

// BatchCommitError reports the chunk whose commit failed. Chunks before it
// were committed; chunks after it were not attempted.
type BatchCommitError struct {
	Chunk int
	Size  int
	Err   error
}

func (e *BatchCommitError) Error() string {
	return fmt.Sprintf("commit chunk %d (%d writes): %v", e.Chunk, e.Size, e.Err)
}

func (e *BatchCommitError) Unwrap() error { return e.Err }
