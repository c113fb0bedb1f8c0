package examgen

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"
)

type fakeEmbedder struct {
	vector []float32
	err    error

	mu    sync.Mutex
	texts []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return f.vector, f.err
}

type fakeImageSource struct {
	images []ImageRecord
}

func (f *fakeImageSource) ImagesByChapter(chapterID int) ([]ImageRecord, error) {
	return f.images, nil
}

func testRetriever(t *testing.T, questions []Question, images []ImageRecord) (*ContextRetriever, *fakeEmbedder) {
	t.Helper()
	index := NewVectorIndex(2)
	vectors := make([][]float32, 8)
	meta := make([]ChunkMeta, 8)
	for i := range vectors {
		vectors[i] = []float32{float32(i), 0}
		meta[i] = ChunkMeta{ChapterID: 1, PageNumber: i + 1, Text: "chunk", ChunkIndex: i}
	}
	if err := index.Add(vectors, meta); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	embedder := &fakeEmbedder{vector: []float32{0, 0}}
	table := RetrievalConfig{
		Intermediate: RetrievalParams{K: 6, ChunksToUse: 3},
		Advanced:     RetrievalParams{K: 6, ChunksToUse: 3},
		Complex:      RetrievalParams{K: 6, ChunksToUse: 3},
	}
	rng := rand.New(rand.NewSource(1))
	retriever := NewContextRetriever(embedder, index, &fakeQuestionSource{questions: questions}, &fakeImageSource{images: images}, table, rng)
	return retriever, embedder
}

func TestBuildQueryFirstGeneration(t *testing.T) {
	retriever, _ := testRetriever(t, nil, nil)
	query := retriever.buildQuery(3, DifficultyIntermediate, nil)
	if query != "fundamental concepts and definitions from chapter 3" {
		t.Errorf("query = %q", query)
	}
}

func TestBuildQueryAppendsDomainTermHint(t *testing.T) {
	existing := []Question{
		{Question: "What is the first-line treatment for Hypertension?"},
		{Question: "How does Hypertension cause renal damage?"},
	}
	retriever, _ := testRetriever(t, existing, nil)

	query := retriever.buildQuery(1, DifficultyAdvanced, existing)
	if !strings.HasPrefix(query, "clinical applications and mechanisms from chapter 1") {
		t.Errorf("query = %q", query)
	}
	if !strings.Contains(query, ", differ from: ") {
		t.Errorf("expected a differ-from hint, got %q", query)
	}
	if !strings.Contains(query, "Hypertension") {
		t.Errorf("expected the dominant domain term in the hint, got %q", query)
	}
}

func TestBuildQueryNoTermsNoHint(t *testing.T) {
	existing := []Question{{Question: "what is the dose?"}}
	retriever, _ := testRetriever(t, existing, nil)

	query := retriever.buildQuery(1, DifficultyIntermediate, existing)
	if strings.Contains(query, "differ from") {
		t.Errorf("no domain terms means no hint, got %q", query)
	}
}

func TestBuildQueryUnknownDifficultyFallsBack(t *testing.T) {
	retriever, _ := testRetriever(t, nil, nil)
	query := retriever.buildQuery(2, Difficulty("bogus"), nil)
	if !strings.Contains(query, "fundamental concepts") {
		t.Errorf("expected intermediate fallback, got %q", query)
	}
}

func TestRetrieveFillsState(t *testing.T) {
	retriever, embedder := testRetriever(t, nil, nil)

	state := &GenerationState{ChapterID: 1, Difficulty: DifficultyIntermediate}
	if err := retriever.Retrieve(context.Background(), state); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(state.RetrievedChunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(state.RetrievedChunks))
	}
	for _, chunk := range state.RetrievedChunks {
		if chunk.Meta.ChapterID != 1 {
			t.Errorf("retrieved chunk from chapter %d", chunk.Meta.ChapterID)
		}
	}
	if len(embedder.texts) != 1 {
		t.Errorf("expected exactly one embedded query, got %d", len(embedder.texts))
	}
	if len(state.RetrievedImages) != 0 {
		t.Errorf("images retrieved without IncludeImages: %v", state.RetrievedImages)
	}
}

func TestRetrievePrefersUnusedChunks(t *testing.T) {
	// Recent questions consumed chunks 0, 1, and 2; the remaining hits
	// within k=6 are 3, 4, and 5, exactly enough to fill the selection.
	existing := []Question{
		{Question: "q1", SourceChunks: []int{0, 1}},
		{Question: "q2", SourceChunks: []int{2}},
	}
	retriever, _ := testRetriever(t, existing, nil)

	state := &GenerationState{ChapterID: 1, Difficulty: DifficultyIntermediate}
	if err := retriever.Retrieve(context.Background(), state); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(state.RetrievedChunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(state.RetrievedChunks))
	}
	for _, chunk := range state.RetrievedChunks {
		if chunk.Meta.ChunkIndex <= 2 {
			t.Errorf("selected recently used chunk %d over unused ones", chunk.Meta.ChunkIndex)
		}
	}
}

func TestRetrieveBackfillsFromUsedChunks(t *testing.T) {
	// All but one hit is used, so the selection keeps the single unused
	// chunk and tops up from used ones.
	existing := []Question{
		{Question: "q1", SourceChunks: []int{0, 1, 2, 3, 4}},
	}
	retriever, _ := testRetriever(t, existing, nil)

	state := &GenerationState{ChapterID: 1, Difficulty: DifficultyIntermediate}
	if err := retriever.Retrieve(context.Background(), state); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(state.RetrievedChunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(state.RetrievedChunks))
	}
	foundUnused := false
	for _, chunk := range state.RetrievedChunks {
		if chunk.Meta.ChunkIndex == 5 {
			foundUnused = true
		}
	}
	if !foundUnused {
		t.Errorf("the unused chunk must always be selected, got %+v", state.RetrievedChunks)
	}
}

func TestRetrieveConcurrentInstances(t *testing.T) {
	// One retriever serves every instance of a batch; concurrent
	// retrievals must not corrupt the shared sampler.
	existing := []Question{
		{Question: "q1", SourceChunks: []int{0, 1}},
	}
	retriever, _ := testRetriever(t, existing, nil)

	const instances = 8
	var wg sync.WaitGroup
	errs := make([]error, instances)
	states := make([]*GenerationState, instances)

	for i := 0; i < instances; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			state := &GenerationState{ChapterID: 1, Difficulty: DifficultyIntermediate}
			errs[slot] = retriever.Retrieve(context.Background(), state)
			states[slot] = state
		}(i)
	}
	wg.Wait()

	for i := 0; i < instances; i++ {
		if errs[i] != nil {
			t.Fatalf("instance %d failed: %v", i, errs[i])
		}
		if len(states[i].RetrievedChunks) != 3 {
			t.Errorf("instance %d retrieved %d chunks, want 3", i, len(states[i].RetrievedChunks))
		}
		seen := make(map[int]bool)
		for _, chunk := range states[i].RetrievedChunks {
			if seen[chunk.Meta.ChunkIndex] {
				t.Errorf("instance %d sampled chunk %d twice", i, chunk.Meta.ChunkIndex)
			}
			seen[chunk.Meta.ChunkIndex] = true
		}
	}
}

func TestRetrieveSamplesImages(t *testing.T) {
	images := []ImageRecord{
		{ID: 1, ChapterID: 1, Path: "a.png"},
		{ID: 2, ChapterID: 1, Path: "b.png"},
		{ID: 3, ChapterID: 1, Path: "c.png"},
	}
	retriever, _ := testRetriever(t, nil, images)

	state := &GenerationState{ChapterID: 1, Difficulty: DifficultyIntermediate, IncludeImages: true}
	if err := retriever.Retrieve(context.Background(), state); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(state.RetrievedImages) != 2 {
		t.Errorf("expected at most 2 sampled images, got %d", len(state.RetrievedImages))
	}
}
