package firestore

import (
	"context"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/Heang0/Digital-Label-sub001/internal/platform/firestore"
)

// bulkChunkSize bounds how many writes are queued on one BulkWriter before
// it is flushed.
const bulkChunkSize = 400

type bulkOp func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error)

// runBulk applies ops in chunks and returns how many succeeded. It stops at
// the first failed chunk; earlier chunks stay applied.
func runBulk(ctx context.Context, provider *pfirestore.Provider, op string, ops []bulkOp) (int, error) {
	if len(ops) == 0 {
		return 0, nil
	}
	client, err := provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	done := 0
	for start := 0; start < len(ops); start += bulkChunkSize {
		end := min(start+bulkChunkSize, len(ops))
		bw := client.BulkWriter(ctx)
		jobs := make([]*firestore.BulkWriterJob, 0, end-start)
		for _, fn := range ops[start:end] {
			job, err := fn(bw)
			if err != nil {
				bw.End()
				return done, pfirestore.WrapError(op, err)
			}
			jobs = append(jobs, job)
		}
		bw.End()
		for _, job := range jobs {
			if _, err := job.Results(); err != nil {
				return done, pfirestore.WrapError(op, err)
			}
			done++
		}
	}
	return done, nil
}
