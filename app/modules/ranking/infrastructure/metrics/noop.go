package rankingmetrics

import (
	"context"
	"time"
)

// NoOpMetrics discards everything. Used in tests and when metrics are disabled.
type NoOpMetrics struct{}

var (
	_ RankingMetrics = NoOpMetrics{}
	_ QueueMetrics   = NoOpMetrics{}
)

func (NoOpMetrics) RecordJobAttempt(context.Context, string) {}
func (NoOpMetrics) RecordJobSuccess(context.Context, string) {}
func (NoOpMetrics) RecordJobFailure(context.Context, string) {}
func (NoOpMetrics) RecordJobSkipped(context.Context, string, string) {}
func (NoOpMetrics) RecordJobDuration(context.Context, string, time.Duration) {}
func (NoOpMetrics) RecordEntityFailure(context.Context, string, string) {}
func (NoOpMetrics) RecordBatchCommit(context.Context, string, int) {}
func (NoOpMetrics) RecordExperienceGranted(context.Context, int) {}
func (NoOpMetrics) RecordOperationAttempt(context.Context, string, string) {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, string) {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, string) {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
