package examgen

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
)

// imageSource provides the stored images of a chapter. *Store satisfies it.
type imageSource interface {
	ImagesByChapter(chapterID int) ([]ImageRecord, error)
}

// How much question history feeds retrieval: domain terms come from the last
// termHintWindow questions, chunk reuse is judged against the last
// usedChunkWindow questions' source chunks.
const (
	termHintWindow  = 15
	usedChunkWindow = 20
	maxHintTerms    = 5
	maxImagesPerRun = 2
)

var difficultyQueries = map[Difficulty]string{
	DifficultyIntermediate: "fundamental concepts and definitions from chapter %d",
	DifficultyAdvanced:     "clinical applications and mechanisms from chapter %d",
	DifficultyComplex:      "complex cases and differential diagnosis from chapter %d",
}

// ContextRetriever selects the chunks (and optionally images) that ground one
// generation attempt, preferring chunks that recent questions have not used.
type ContextRetriever struct {
	embedder  Embedder
	index     *VectorIndex
	questions questionSource
	images    imageSource
	table     RetrievalConfig

	// One retriever serves every pipeline instance in a batch, and
	// *rand.Rand is not safe for concurrent use, so all sampling goes
	// through rngMu.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewContextRetriever wires a retriever. rng drives all sampling; pass a
// seeded source for deterministic behavior in tests.
func NewContextRetriever(embedder Embedder, index *VectorIndex, questions questionSource, images imageSource, table RetrievalConfig, rng *rand.Rand) *ContextRetriever {
	return &ContextRetriever{
		embedder:  embedder,
		index:     index,
		questions: questions,
		images:    images,
		table:     table,
		rng:       rng,
	}
}

// Retrieve fills state.RetrievedChunks and state.RetrievedImages. It runs
// exactly once per pipeline instance; regeneration reuses its output.
func (r *ContextRetriever) Retrieve(ctx context.Context, state *GenerationState) error {
	params := r.table.Params(state.Difficulty)

	existing, err := r.questions.QuestionsByChapter(state.ChapterID)
	if err != nil {
		return fmt.Errorf("load chapter history: %w", err)
	}

	query := r.buildQuery(state.ChapterID, state.Difficulty, existing)
	VerboseLog("Retrieval query for chapter %d: %s", state.ChapterID, query)

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed retrieval query: %w", err)
	}

	results, err := r.index.Search(embedding, params.K, state.ChapterID)
	if err != nil {
		return fmt.Errorf("search index: %w", err)
	}

	state.RetrievedChunks = r.selectChunks(results, existing, params.ChunksToUse)

	if state.IncludeImages {
		images, err := r.images.ImagesByChapter(state.ChapterID)
		if err != nil {
			return fmt.Errorf("load chapter images: %w", err)
		}
		state.RetrievedImages = r.sampleImages(images, maxImagesPerRun)
	}

	VerboseLog("Retrieved %d chunks and %d images for chapter %d",
		len(state.RetrievedChunks), len(state.RetrievedImages), state.ChapterID)
	return nil
}

// buildQuery starts from the difficulty's base phrase and, when the chapter
// already has questions, appends a hint built from the most frequent domain
// terms of the recent ones so the search drifts away from covered ground.
func (r *ContextRetriever) buildQuery(chapterID int, difficulty Difficulty, existing []Question) string {
	base, ok := difficultyQueries[difficulty]
	if !ok {
		base = difficultyQueries[DifficultyIntermediate]
	}
	query := fmt.Sprintf(base, chapterID)

	if len(existing) == 0 {
		return query
	}

	recent := existing
	if len(recent) > termHintWindow {
		recent = recent[len(recent)-termHintWindow:]
	}
	texts := make([]string, len(recent))
	for i, q := range recent {
		texts[i] = q.Question
	}
	if terms := topDomainTerms(texts, maxHintTerms); len(terms) > 0 {
		query += ", differ from: " + strings.Join(terms, ", ")
	}
	return query
}

// selectChunks partitions search hits into unused and used by recent
// source-chunk history, then samples preferring unused. The chapter's first
// generation skips partitioning entirely.
func (r *ContextRetriever) selectChunks(results []SearchResult, existing []Question, chunksToUse int) []SearchResult {
	if len(existing) == 0 {
		return r.sampleResults(results, chunksToUse)
	}

	recent := existing
	if len(recent) > usedChunkWindow {
		recent = recent[len(recent)-usedChunkWindow:]
	}
	usedIndices := make(map[int]struct{})
	for _, q := range recent {
		for _, idx := range q.SourceChunks {
			usedIndices[idx] = struct{}{}
		}
	}

	var unused, used []SearchResult
	for _, res := range results {
		if _, ok := usedIndices[res.Meta.ChunkIndex]; ok {
			used = append(used, res)
		} else {
			unused = append(unused, res)
		}
	}

	if len(unused) >= chunksToUse {
		return r.sampleResults(unused, chunksToUse)
	}
	selected := append([]SearchResult{}, unused...)
	selected = append(selected, r.sampleResults(used, chunksToUse-len(unused))...)
	return selected
}

// sampleResults draws up to n results uniformly at random without
// replacement.
func (r *ContextRetriever) sampleResults(results []SearchResult, n int) []SearchResult {
	if n >= len(results) {
		return append([]SearchResult{}, results...)
	}
	r.rngMu.Lock()
	perm := r.rng.Perm(len(results))
	r.rngMu.Unlock()

	sampled := make([]SearchResult, 0, n)
	for _, i := range perm[:n] {
		sampled = append(sampled, results[i])
	}
	return sampled
}

func (r *ContextRetriever) sampleImages(images []ImageRecord, n int) []ImageRecord {
	if len(images) == 0 {
		return nil
	}
	if n >= len(images) {
		return append([]ImageRecord{}, images...)
	}
	r.rngMu.Lock()
	perm := r.rng.Perm(len(images))
	r.rngMu.Unlock()

	sampled := make([]ImageRecord, 0, n)
	for _, i := range perm[:n] {
		sampled = append(sampled, images[i])
	}
	return sampled
}
