package examgen

// qualityFeedbackChunks is how many leading source chunks receive the
// accepted question's confidence score.
const qualityFeedbackChunks = 3

// questionSink is the storage surface finalization needs. *Store satisfies
// it.
type questionSink interface {
	AppendQuestion(q Question) (Question, error)
	RecordChunkScore(chapterID, chunkIndex, score, window int) (*ChunkQualityRecord, error)
}

// Finalizer assembles the accepted draft into a stored Question and feeds the
// judge's confidence back into the chunk quality history.
type Finalizer struct {
	sink          questionSink
	checker       *UniquenessChecker
	qualityWindow int
	logger        *RunLogger
}

// NewFinalizer creates a finalizer. checker may be nil; when present its
// chapter snapshot is invalidated on every append so the next uniqueness
// check sees the new question immediately.
func NewFinalizer(sink questionSink, checker *UniquenessChecker, qualityWindow int, logger *RunLogger) *Finalizer {
	return &Finalizer{
		sink:          sink,
		checker:       checker,
		qualityWindow: qualityWindow,
		logger:        logger,
	}
}

// Finalize stores the accepted draft. The stored question carries every
// retrieved chunk index as its source chunks and the accepted validation's
// confidence score; the first chunks additionally receive that score in their
// rolling quality history.
func (f *Finalizer) Finalize(state *GenerationState) (*Question, error) {
	draft := state.Draft

	sourceChunks := make([]int, 0, len(state.RetrievedChunks))
	for _, chunk := range state.RetrievedChunks {
		sourceChunks = append(sourceChunks, chunk.Meta.ChunkIndex)
	}

	question := Question{
		ChapterID:       draft.ChapterID,
		Difficulty:      draft.Difficulty,
		Question:        draft.Question,
		Options:         draft.Options,
		CorrectAnswer:   draft.CorrectAnswer,
		Explanation:     draft.Explanation,
		Citations:       draft.Citations,
		SourceChunks:    sourceChunks,
		KeyConcepts:     draft.KeyConcepts,
		ReasoningType:   draft.ReasoningType,
		QuestionType:    draft.QuestionType,
		ConfidenceScore: state.Validation.ConfidenceScore,
		ImagePath:       draft.ImagePath,
	}

	stored, err := f.sink.AppendQuestion(question)
	if err != nil {
		return nil, err
	}
	if f.checker != nil {
		f.checker.Invalidate(stored.ChapterID)
	}

	for i, chunkIndex := range sourceChunks {
		if i >= qualityFeedbackChunks {
			break
		}
		if _, err := f.sink.RecordChunkScore(stored.ChapterID, chunkIndex, stored.ConfidenceScore, f.qualityWindow); err != nil {
			return nil, err
		}
	}

	f.logger.Logf("Finalized question %d (chapter %d, confidence %d)\n",
		stored.ID, stored.ChapterID, stored.ConfidenceScore)
	return &stored, nil
}
