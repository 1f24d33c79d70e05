package rankingservice

import (
	"context"
	"errors"
)

// commitInChunks applies items as a sequence of atomic units of at most size
// items each. Units commit in order and the first failure stops the run with a
// *BatchCommitError; units committed before it stay committed. Cancellation
// is returned as ctx.Err() unwrapped. It returns the number of units committed.
func commitInChunks[T any](ctx context.Context, items []T, size int, commit func(ctx context.Context, chunk []T) error) (int, error) {
	if size < 1 {
		size = 1
	}

	committed := 0
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunk := items[start:end]

		if err := ctx.Err(); err != nil {
			return committed, err
		}
		if err := commit(ctx, chunk); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return committed, ctxErr
			}
			return committed, &BatchCommitError{Chunk: committed, Size: len(chunk), Err: err}
		}
		committed++
	}
	return committed, nil
}
