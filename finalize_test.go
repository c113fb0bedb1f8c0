package examgen

import (
	"errors"
	"reflect"
	"testing"
)

type fakeSink struct {
	appended  []Question
	scored    [][3]int // chapterID, chunkIndex, score
	appendErr error
}

func (f *fakeSink) AppendQuestion(q Question) (Question, error) {
	if f.appendErr != nil {
		return q, f.appendErr
	}
	q.ID = len(f.appended) + 1
	f.appended = append(f.appended, q)
	return q, nil
}

func (f *fakeSink) RecordChunkScore(chapterID, chunkIndex, score, window int) (*ChunkQualityRecord, error) {
	f.scored = append(f.scored, [3]int{chapterID, chunkIndex, score})
	return &ChunkQualityRecord{ChapterID: chapterID, ChunkIndex: chunkIndex}, nil
}

func acceptedState() *GenerationState {
	return &GenerationState{
		ChapterID:  2,
		Difficulty: DifficultyAdvanced,
		RetrievedChunks: []SearchResult{
			{Meta: ChunkMeta{ChapterID: 2, ChunkIndex: 4}},
			{Meta: ChunkMeta{ChapterID: 2, ChunkIndex: 9}},
			{Meta: ChunkMeta{ChapterID: 2, ChunkIndex: 1}},
			{Meta: ChunkMeta{ChapterID: 2, ChunkIndex: 7}},
		},
		Draft: &QuestionDraft{
			Question:      "Which finding confirms the diagnosis?",
			Options:       map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			CorrectAnswer: "B",
			Explanation:   "explained",
			Citations:     []string{"Page 4"},
			ChapterID:     2,
			Difficulty:    DifficultyAdvanced,
		},
		Validation: &ValidationResult{IsValid: true, ConfidenceScore: 85, MedicalAccuracy: true},
	}
}

func TestFinalizeStoresQuestion(t *testing.T) {
	sink := &fakeSink{}
	finalizer := NewFinalizer(sink, nil, 10, nil)

	stored, err := finalizer.Finalize(acceptedState())
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if stored.ID != 1 {
		t.Errorf("stored id = %d", stored.ID)
	}
	if stored.ConfidenceScore != 85 {
		t.Errorf("confidence = %d, want the accepted validation's score", stored.ConfidenceScore)
	}
	if want := []int{4, 9, 1, 7}; !reflect.DeepEqual(stored.SourceChunks, want) {
		t.Errorf("source chunks = %v, want every retrieved chunk index %v", stored.SourceChunks, want)
	}
	if stored.ChapterID != 2 || stored.Difficulty != DifficultyAdvanced {
		t.Errorf("stored question = %+v", stored)
	}
}

func TestFinalizeScoresLeadingChunks(t *testing.T) {
	sink := &fakeSink{}
	finalizer := NewFinalizer(sink, nil, 10, nil)

	if _, err := finalizer.Finalize(acceptedState()); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	want := [][3]int{{2, 4, 85}, {2, 9, 85}, {2, 1, 85}}
	if !reflect.DeepEqual(sink.scored, want) {
		t.Errorf("scored = %v, want the first %d chunks %v", sink.scored, qualityFeedbackChunks, want)
	}
}

func TestFinalizeInvalidatesUniquenessCache(t *testing.T) {
	source := &fakeQuestionSource{}
	checker := NewUniquenessChecker(source, testUniquenessConfig())
	// Prime the cache.
	if _, err := checker.Check(2, "q"); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	finalizer := NewFinalizer(&fakeSink{}, checker, 10, nil)
	if _, err := finalizer.Finalize(acceptedState()); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	if _, err := checker.Check(2, "q"); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("expected a reload after finalization, got %d loads", source.calls)
	}
}

func TestFinalizeAppendFailure(t *testing.T) {
	sink := &fakeSink{appendErr: errors.New("disk full")}
	finalizer := NewFinalizer(sink, nil, 10, nil)

	if _, err := finalizer.Finalize(acceptedState()); err == nil {
		t.Fatal("expected append error to propagate")
	}
	if len(sink.scored) != 0 {
		t.Errorf("no chunk scores may be recorded when the append fails, got %v", sink.scored)
	}
}
