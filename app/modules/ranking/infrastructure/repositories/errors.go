package rankingdb

import "errors"

// Sentinel errors for the repository layer.
var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBatchTooLarge indicates a batch exceeds the store's per-commit mutation ceiling.
	ErrBatchTooLarge = errors.New("batch exceeds mutation limit")
)

// MaxBatchMutations is the most writes a single atomic batch may carry.
const MaxBatchMutations = 500
