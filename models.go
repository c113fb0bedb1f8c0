package examgen

import "time"

// Difficulty controls retrieval breadth and the prompt template used for
// question generation.
type Difficulty string

const (
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyComplex      Difficulty = "complex"
)

// OptionKeys lists the four answer keys every question carries, in order.
var OptionKeys = []string{"A", "B", "C", "D"}

// ChunkMeta describes one embedded text fragment. The vector itself lives in
// the index; metadata travels alongside it at the same position.
type ChunkMeta struct {
	ChapterID  int    `json:"chapter_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	ChunkIndex int    `json:"chunk_index"`
}

// SearchResult is a single nearest-neighbor hit from the vector index.
type SearchResult struct {
	Meta     ChunkMeta `json:"metadata"`
	Distance float32   `json:"distance"`
	Index    int       `json:"index"`
}

// Question is a finished, validated exam question. Created only by the
// finalization stage and immutable once stored; the store assigns the ID.
type Question struct {
	ID              int               `json:"id"`
	ChapterID       int               `json:"chapter_id"`
	Difficulty      Difficulty        `json:"difficulty"`
	Question        string            `json:"question"`
	Options         map[string]string `json:"options"`
	CorrectAnswer   string            `json:"correct_answer"`
	Explanation     string            `json:"explanation"`
	Citations       []string          `json:"citations"`
	SourceChunks    []int             `json:"source_chunks"`
	KeyConcepts     []string          `json:"key_concepts,omitempty"`
	ReasoningType   string            `json:"reasoning_type,omitempty"`
	QuestionType    string            `json:"question_type,omitempty"`
	ConfidenceScore int               `json:"confidence_score"`
	ImagePath       string            `json:"image_path,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// QuestionDraft is a candidate question produced by the generation stage,
// already normalized (single explanation text, rendered citations) but not
// yet accepted or stored.
type QuestionDraft struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
	Citations     []string          `json:"citations"`
	KeyConcepts   []string          `json:"key_concepts,omitempty"`
	ReasoningType string            `json:"reasoning_type,omitempty"`
	QuestionType  string            `json:"question_type,omitempty"`
	ChapterID     int               `json:"chapter_id"`
	Difficulty    Difficulty        `json:"difficulty"`
	ImagePath     string            `json:"image_path,omitempty"`
}

// UniquenessCheck is the verdict of the duplicate detector. A failed check is
// a normal branch, not an error.
type UniquenessCheck struct {
	IsUnique bool   `json:"is_unique"`
	Reason   string `json:"reason"`
}

// ValidationResult is the judge's verdict on a candidate question.
type ValidationResult struct {
	IsValid                 bool     `json:"is_valid"`
	ConfidenceScore         int      `json:"confidence_score"`
	Issues                  []string `json:"issues"`
	Suggestions             []string `json:"suggestions,omitempty"`
	MedicalAccuracy         bool     `json:"medical_accuracy"`
	ClarityScore            int      `json:"clarity_score,omitempty"`
	ExplanationQualityScore int      `json:"explanation_quality_score,omitempty"`
	ApplicationQualityScore int      `json:"application_quality_score,omitempty"`
}

// GenerationState is the ephemeral per-pipeline-instance state threaded
// through the stages. It is owned by exactly one pipeline instance and is
// discarded when the instance finishes.
type GenerationState struct {
	ChapterID       int
	Difficulty      Difficulty
	IncludeImages   bool
	RetrievedChunks []SearchResult
	RetrievedImages []ImageRecord
	ImageAnalysis   string
	Draft           *QuestionDraft
	Uniqueness      *UniquenessCheck
	Validation      *ValidationResult
	AttemptCount    int
	Err             error
}

// ChunkQualityRecord tracks the rolling confidence scores of questions a
// chunk contributed to. Mutated only by finalization; read by the retriever.
type ChunkQualityRecord struct {
	ChapterID  int     `json:"chapter_id"`
	ChunkIndex int     `json:"chunk_index"`
	Scores     []int   `json:"scores"`
	Average    float64 `json:"average"`
}

// ChapterRecord identifies one ingested chapter.
type ChapterRecord struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	SourceFile string    `json:"source_file"`
	NumChunks  int       `json:"num_chunks"`
	CreatedAt  time.Time `json:"created_at"`
}

// ImageRecord identifies one stored figure extracted from a chapter.
type ImageRecord struct {
	ID         int       `json:"id"`
	ChapterID  int       `json:"chapter_id"`
	PageNumber int       `json:"page_number"`
	Path       string    `json:"path"`
	CreatedAt  time.Time `json:"created_at"`
}

// Attempt records one practice answer against a stored question.
type Attempt struct {
	ID            int       `json:"id"`
	QuestionID    int       `json:"question_id"`
	ChapterID     int       `json:"chapter_id"`
	UserAnswer    string    `json:"user_answer"`
	CorrectAnswer string    `json:"correct_answer"`
	IsCorrect     bool      `json:"is_correct"`
	CreatedAt     time.Time `json:"created_at"`
}
