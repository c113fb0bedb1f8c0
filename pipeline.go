package examgen

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// QuestionPipeline runs the full generation chain for one question:
// retrieve, then a bounded generate/validate loop, then finalize. A pipeline
// instance is strictly sequential; parallelism exists only across instances
// in a scheduler batch.
type QuestionPipeline struct {
	retriever  *ContextRetriever
	maker      *QuestionMaker
	uniqueness *UniquenessChecker
	checker    *QuestionChecker
	finalizer  *Finalizer
	gen        GenerationConfig
	logger     *RunLogger
}

// NewQuestionPipeline wires a complete pipeline against the given store and
// index.
func NewQuestionPipeline(cfg Config, store *Store, index *VectorIndex, logger *RunLogger) *QuestionPipeline {
	client := openai.NewClient(cfg.OpenAI.APIKey)
	embedder := NewEmbeddingClient(client, cfg.OpenAI.EmbeddingModel, cfg.Ingest.EmbeddingBatchSize)
	analyzer := NewImageAnalyzer(client, cfg.OpenAI.LLMModel, logger)
	uniqueness := NewUniquenessChecker(store, cfg.Uniqueness)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	return &QuestionPipeline{
		retriever:  NewContextRetriever(embedder, index, store, store, cfg.Retrieval, rng),
		maker:      NewQuestionMaker(client, cfg.OpenAI, analyzer, logger),
		uniqueness: uniqueness,
		checker:    NewQuestionChecker(client, cfg.OpenAI, logger),
		finalizer:  NewFinalizer(store, uniqueness, cfg.Generation.QualityHistorySize, logger),
		gen:        cfg.Generation,
		logger:     logger,
	}
}

// GenerateOne produces and stores one validated question, or an error when
// the instance fails. Context is retrieved exactly once; regeneration
// re-enters generation only.
func (p *QuestionPipeline) GenerateOne(ctx context.Context, chapterID int, difficulty Difficulty, includeImages bool) (*Question, error) {
	state := &GenerationState{
		ChapterID:     chapterID,
		Difficulty:    difficulty,
		IncludeImages: includeImages,
	}

	if err := p.retriever.Retrieve(ctx, state); err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	if len(state.RetrievedChunks) == 0 {
		return nil, fmt.Errorf("no chunks indexed for chapter %d", chapterID)
	}

	for {
		p.maker.Generate(ctx, state)

		if state.Err == nil && state.Draft != nil {
			check, err := p.uniqueness.Check(state.ChapterID, state.Draft.Question)
			if err != nil {
				state.Err = err
			} else {
				state.Uniqueness = check
				p.logger.LogUniqueness(check)
			}
		}

		// A recorded provider error leaves no validation result, which
		// the controller reads as an automatic fail.
		if state.Err == nil {
			p.checker.Validate(ctx, state)
		} else {
			state.Validation = nil
		}

		transition := Decide(state.Validation, state.AttemptCount, p.gen)
		p.logger.LogTransition(state.AttemptCount, transition)

		switch transition {
		case TransitionContinue:
			return p.finalizer.Finalize(state)
		case TransitionFail:
			if state.Err != nil {
				return nil, fmt.Errorf("generation failed after %d attempt(s): %w", state.AttemptCount, state.Err)
			}
			if state.Validation != nil && len(state.Validation.Issues) > 0 {
				return nil, fmt.Errorf("validation failed after %d attempt(s): %s", state.AttemptCount, state.Validation.Issues[0])
			}
			return nil, fmt.Errorf("validation failed after %d attempt(s)", state.AttemptCount)
		case TransitionRegenerate:
			VerboseLog("Regenerating question for chapter %d (attempt %d)", chapterID, state.AttemptCount)
			state.Draft = nil
			state.Uniqueness = nil
			state.Validation = nil
		}
	}
}
