package examgen

import (
	"context"
	"log"
	"sync"
)

// BatchRequest describes one scheduler run.
type BatchRequest struct {
	ChapterID     int
	Difficulty    Difficulty
	Count         int
	IncludeImages bool
	MaxConcurrent int
}

// BatchResult aggregates a scheduler run: the stored questions plus a count
// of instances that produced none (controller FAIL or an error).
type BatchResult struct {
	Questions []*Question
	Failed    int
}

// BatchScheduler runs independent pipeline instances under a concurrency
// cap. Each instance owns its own state; one instance's failure never
// cancels its siblings or aborts later batches.
type BatchScheduler struct {
	generate func(ctx context.Context, req BatchRequest) (*Question, error)
}

// NewBatchScheduler schedules instances of the given pipeline.
func NewBatchScheduler(p *QuestionPipeline) *BatchScheduler {
	return &BatchScheduler{
		generate: func(ctx context.Context, req BatchRequest) (*Question, error) {
			return p.GenerateOne(ctx, req.ChapterID, req.Difficulty, req.IncludeImages)
		},
	}
}

// Run executes req.Count pipeline instances in batches of at most
// req.MaxConcurrent, awaiting each batch before starting the next. Partial
// failure never raises: the result always accounts for every instance.
func (s *BatchScheduler) Run(ctx context.Context, req BatchRequest) BatchResult {
	maxConcurrent := req.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	result := BatchResult{}
	remaining := req.Count
	instance := 0

	for remaining > 0 {
		batchSize := maxConcurrent
		if remaining < batchSize {
			batchSize = remaining
		}

		questions := make([]*Question, batchSize)
		errs := make([]error, batchSize)

		var wg sync.WaitGroup
		for i := 0; i < batchSize; i++ {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				questions[slot], errs[slot] = s.generate(ctx, req)
			}(i)
		}
		wg.Wait()

		for i := 0; i < batchSize; i++ {
			instance++
			switch {
			case errs[i] != nil:
				log.Printf("Question %d/%d failed: %v", instance, req.Count, errs[i])
				result.Failed++
			case questions[i] == nil:
				result.Failed++
			default:
				result.Questions = append(result.Questions, questions[i])
			}
		}
		remaining -= batchSize
	}

	return result
}
