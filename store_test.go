package examgen

import (
	"reflect"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendChapterAssignsIncreasingIDs(t *testing.T) {
	store := openTestStore(t)

	first, err := store.AppendChapter(ChapterRecord{Name: "Cardiology", SourceFile: "ch1.txt", NumChunks: 12})
	if err != nil {
		t.Fatalf("AppendChapter failed: %v", err)
	}
	second, err := store.AppendChapter(ChapterRecord{Name: "Pulmonology", SourceFile: "ch2.txt"})
	if err != nil {
		t.Fatalf("AppendChapter failed: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Errorf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}

	got, err := store.ChapterByID(first.ID)
	if err != nil {
		t.Fatalf("ChapterByID failed: %v", err)
	}
	if got.Name != "Cardiology" || got.NumChunks != 12 {
		t.Errorf("ChapterByID returned %+v", got)
	}

	if _, err := store.ChapterByID(99); err == nil {
		t.Error("expected error for missing chapter")
	}

	if err := store.SetChapterChunkCount(second.ID, 40); err != nil {
		t.Fatalf("SetChapterChunkCount failed: %v", err)
	}
	updated, err := store.ChapterByID(second.ID)
	if err != nil {
		t.Fatalf("ChapterByID failed: %v", err)
	}
	if updated.NumChunks != 40 {
		t.Errorf("chunk count = %d, want 40", updated.NumChunks)
	}
}

func TestAppendQuestionRoundTrip(t *testing.T) {
	store := openTestStore(t)

	q := Question{
		ChapterID:       1,
		Difficulty:      DifficultyAdvanced,
		Question:        "Which beta blocker is cardioselective?",
		Options:         map[string]string{"A": "Metoprolol", "B": "Propranolol", "C": "Labetalol", "D": "Carvedilol"},
		CorrectAnswer:   "A",
		Explanation:     "Metoprolol is beta-1 selective.",
		Citations:       []string{`Page 42: "beta-1 selectivity..."...`},
		SourceChunks:    []int{3, 7, 9},
		KeyConcepts:     []string{"beta blockade", "receptor selectivity"},
		ReasoningType:   "mechanism",
		QuestionType:    "factual",
		ConfidenceScore: 88,
	}
	stored, err := store.AppendQuestion(q)
	if err != nil {
		t.Fatalf("AppendQuestion failed: %v", err)
	}
	if stored.ID != 1 {
		t.Errorf("first question id = %d, want 1", stored.ID)
	}

	loaded, err := store.QuestionByID(stored.ID)
	if err != nil {
		t.Fatalf("QuestionByID failed: %v", err)
	}
	if loaded.Question != q.Question || loaded.CorrectAnswer != "A" || loaded.Difficulty != DifficultyAdvanced {
		t.Errorf("loaded question differs: %+v", loaded)
	}
	if !reflect.DeepEqual(loaded.Options, q.Options) {
		t.Errorf("options = %v, want %v", loaded.Options, q.Options)
	}
	if !reflect.DeepEqual(loaded.SourceChunks, q.SourceChunks) {
		t.Errorf("source chunks = %v, want %v", loaded.SourceChunks, q.SourceChunks)
	}
	if !reflect.DeepEqual(loaded.Citations, q.Citations) {
		t.Errorf("citations = %v, want %v", loaded.Citations, q.Citations)
	}
	if !reflect.DeepEqual(loaded.KeyConcepts, q.KeyConcepts) {
		t.Errorf("key concepts = %v, want %v", loaded.KeyConcepts, q.KeyConcepts)
	}
	if loaded.ConfidenceScore != 88 {
		t.Errorf("confidence = %d, want 88", loaded.ConfidenceScore)
	}
}

func TestQuestionsByChapterFiltersAndOrders(t *testing.T) {
	store := openTestStore(t)

	for i, chapterID := range []int{1, 2, 1, 1} {
		_, err := store.AppendQuestion(Question{
			ChapterID:     chapterID,
			Difficulty:    DifficultyIntermediate,
			Question:      "q",
			Options:       map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			CorrectAnswer: "A",
		})
		if err != nil {
			t.Fatalf("AppendQuestion %d failed: %v", i, err)
		}
	}

	questions, err := store.QuestionsByChapter(1)
	if err != nil {
		t.Fatalf("QuestionsByChapter failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions for chapter 1, got %d", len(questions))
	}
	for i := 1; i < len(questions); i++ {
		if questions[i].ID <= questions[i-1].ID {
			t.Errorf("questions not in id order: %v", questions)
		}
	}
}

func TestAppendImageAndAttempt(t *testing.T) {
	store := openTestStore(t)

	img, err := store.AppendImage(ImageRecord{ChapterID: 1, PageNumber: 4, Path: "figures/page-4.png"})
	if err != nil {
		t.Fatalf("AppendImage failed: %v", err)
	}
	if img.ID != 1 {
		t.Errorf("image id = %d, want 1", img.ID)
	}

	images, err := store.ImagesByChapter(1)
	if err != nil {
		t.Fatalf("ImagesByChapter failed: %v", err)
	}
	if len(images) != 1 || images[0].Path != "figures/page-4.png" {
		t.Errorf("images = %+v", images)
	}

	attempt, err := store.AppendAttempt(Attempt{QuestionID: 1, ChapterID: 1, UserAnswer: "B", CorrectAnswer: "A"})
	if err != nil {
		t.Fatalf("AppendAttempt failed: %v", err)
	}
	if attempt.ID != 1 {
		t.Errorf("attempt id = %d, want 1", attempt.ID)
	}
}

func TestChunkQualityMissingIsNil(t *testing.T) {
	store := openTestStore(t)
	rec, err := store.ChunkQuality(1, 0)
	if err != nil {
		t.Fatalf("ChunkQuality failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil record for untouched chunk, got %+v", rec)
	}
}

func TestRecordChunkScoreWindow(t *testing.T) {
	store := openTestStore(t)

	var last *ChunkQualityRecord
	var err error
	for score := 1; score <= 12; score++ {
		last, err = store.RecordChunkScore(1, 5, score, 10)
		if err != nil {
			t.Fatalf("RecordChunkScore failed: %v", err)
		}
	}

	// 12 appends with a window of 10 keep scores 3..12.
	want := []int{3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	if !reflect.DeepEqual(last.Scores, want) {
		t.Errorf("scores = %v, want %v", last.Scores, want)
	}
	if last.Average != 7.5 {
		t.Errorf("average = %v, want 7.5", last.Average)
	}

	stored, err := store.ChunkQuality(1, 5)
	if err != nil {
		t.Fatalf("ChunkQuality failed: %v", err)
	}
	if stored == nil || !reflect.DeepEqual(stored.Scores, want) || stored.Average != 7.5 {
		t.Errorf("persisted record = %+v", stored)
	}
}

func TestRecordChunkScoreSeparateChunks(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.RecordChunkScore(1, 0, 90, 10); err != nil {
		t.Fatalf("RecordChunkScore failed: %v", err)
	}
	if _, err := store.RecordChunkScore(1, 1, 40, 10); err != nil {
		t.Fatalf("RecordChunkScore failed: %v", err)
	}

	rec, err := store.ChunkQuality(1, 0)
	if err != nil {
		t.Fatalf("ChunkQuality failed: %v", err)
	}
	if rec.Average != 90 {
		t.Errorf("chunk 0 average = %v, want 90", rec.Average)
	}
}
