package examgen

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the record store backing chapters, questions, images, attempts,
// and per-chunk quality history. Appends assign unique, monotonically
// increasing ids; ids are never reused even after deletion.
//
// Read-modify-write operations (quality history) go through a single writer
// critical section so concurrent pipeline instances cannot lose updates.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// OpenStore opens (or creates) the sqlite database at path and ensures the
// schema exists.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS chapters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			source_file TEXT,
			num_chunks INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chapter_id INTEGER NOT NULL,
			difficulty TEXT NOT NULL,
			question TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			explanation TEXT,
			citations TEXT,
			source_chunks TEXT,
			key_concepts TEXT,
			reasoning_type TEXT,
			question_type TEXT,
			confidence_score INTEGER NOT NULL DEFAULT 0,
			image_path TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (chapter_id) REFERENCES chapters(id)
		)`,
		`CREATE TABLE IF NOT EXISTS images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chapter_id INTEGER NOT NULL,
			page_number INTEGER NOT NULL,
			path TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (chapter_id) REFERENCES chapters(id)
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question_id INTEGER NOT NULL,
			chapter_id INTEGER NOT NULL,
			user_answer TEXT NOT NULL,
			correct_answer TEXT NOT NULL,
			is_correct INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (question_id) REFERENCES questions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS chunk_quality (
			chapter_id INTEGER NOT NULL,
			chunk_index INTEGER NOT NULL,
			scores TEXT NOT NULL,
			average REAL NOT NULL,
			PRIMARY KEY (chapter_id, chunk_index)
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// AppendChapter stores a chapter record and returns it with its assigned id.
func (s *Store) AppendChapter(c ChapterRecord) (ChapterRecord, error) {
	c.CreatedAt = time.Now()
	res, err := s.db.Exec(
		"INSERT INTO chapters (name, source_file, num_chunks, created_at) VALUES (?, ?, ?, ?)",
		c.Name, c.SourceFile, c.NumChunks, c.CreatedAt,
	)
	if err != nil {
		return c, fmt.Errorf("failed to append chapter: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return c, fmt.Errorf("failed to read chapter id: %w", err)
	}
	c.ID = int(id)
	return c, nil
}

// SetChapterChunkCount records how many chunks a chapter's ingestion
// produced.
func (s *Store) SetChapterChunkCount(id, numChunks int) error {
	_, err := s.db.Exec("UPDATE chapters SET num_chunks = ? WHERE id = ?", numChunks, id)
	if err != nil {
		return fmt.Errorf("failed to update chapter chunk count: %w", err)
	}
	return nil
}

// Chapters returns all chapters ordered by id.
func (s *Store) Chapters() ([]ChapterRecord, error) {
	rows, err := s.db.Query("SELECT id, name, source_file, num_chunks, created_at FROM chapters ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to load chapters: %w", err)
	}
	defer rows.Close()

	var chapters []ChapterRecord
	for rows.Next() {
		var c ChapterRecord
		if err := rows.Scan(&c.ID, &c.Name, &c.SourceFile, &c.NumChunks, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// ChapterByID returns one chapter.
func (s *Store) ChapterByID(id int) (*ChapterRecord, error) {
	var c ChapterRecord
	err := s.db.QueryRow(
		"SELECT id, name, source_file, num_chunks, created_at FROM chapters WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.SourceFile, &c.NumChunks, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chapter not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &c, nil
}

// AppendQuestion stores a finished question and returns it with its assigned
// id and creation timestamp.
func (s *Store) AppendQuestion(q Question) (Question, error) {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return q, fmt.Errorf("failed to marshal options: %w", err)
	}
	citations, err := json.Marshal(q.Citations)
	if err != nil {
		return q, fmt.Errorf("failed to marshal citations: %w", err)
	}
	sourceChunks, err := json.Marshal(q.SourceChunks)
	if err != nil {
		return q, fmt.Errorf("failed to marshal source chunks: %w", err)
	}
	keyConcepts, err := json.Marshal(q.KeyConcepts)
	if err != nil {
		return q, fmt.Errorf("failed to marshal key concepts: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	q.CreatedAt = time.Now()
	res, err := s.db.Exec(
		`INSERT INTO questions (chapter_id, difficulty, question, options, correct_answer,
			explanation, citations, source_chunks, key_concepts, reasoning_type,
			question_type, confidence_score, image_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ChapterID, string(q.Difficulty), q.Question, string(options), q.CorrectAnswer,
		q.Explanation, string(citations), string(sourceChunks), string(keyConcepts),
		q.ReasoningType, q.QuestionType, q.ConfidenceScore, q.ImagePath, q.CreatedAt,
	)
	if err != nil {
		return q, fmt.Errorf("failed to append question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return q, fmt.Errorf("failed to read question id: %w", err)
	}
	q.ID = int(id)
	return q, nil
}

// QuestionsByChapter returns every stored question for a chapter in stored
// (id) order.
func (s *Store) QuestionsByChapter(chapterID int) ([]Question, error) {
	rows, err := s.db.Query(
		`SELECT id, chapter_id, difficulty, question, options, correct_answer,
			explanation, citations, source_chunks, key_concepts, reasoning_type,
			question_type, confidence_score, image_path, created_at
		 FROM questions WHERE chapter_id = ? ORDER BY id`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionByID returns one stored question.
func (s *Store) QuestionByID(id int) (*Question, error) {
	rows, err := s.db.Query(
		`SELECT id, chapter_id, difficulty, question, options, correct_answer,
			explanation, citations, source_chunks, key_concepts, reasoning_type,
			question_type, confidence_score, image_path, created_at
		 FROM questions WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get question: %w", err)
		}
		return nil, fmt.Errorf("question not found: %d", id)
	}
	q, err := scanQuestion(rows)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func scanQuestion(rows *sql.Rows) (Question, error) {
	var q Question
	var difficulty, options, citations, sourceChunks, keyConcepts string
	err := rows.Scan(&q.ID, &q.ChapterID, &difficulty, &q.Question, &options,
		&q.CorrectAnswer, &q.Explanation, &citations, &sourceChunks, &keyConcepts,
		&q.ReasoningType, &q.QuestionType, &q.ConfidenceScore, &q.ImagePath, &q.CreatedAt)
	if err != nil {
		return q, fmt.Errorf("failed to scan question: %w", err)
	}
	q.Difficulty = Difficulty(difficulty)
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("failed to unmarshal options for question %d: %w", q.ID, err)
	}
	if citations != "" {
		if err := json.Unmarshal([]byte(citations), &q.Citations); err != nil {
			return q, fmt.Errorf("failed to unmarshal citations for question %d: %w", q.ID, err)
		}
	}
	if sourceChunks != "" {
		if err := json.Unmarshal([]byte(sourceChunks), &q.SourceChunks); err != nil {
			return q, fmt.Errorf("failed to unmarshal source chunks for question %d: %w", q.ID, err)
		}
	}
	if keyConcepts != "" {
		if err := json.Unmarshal([]byte(keyConcepts), &q.KeyConcepts); err != nil {
			return q, fmt.Errorf("failed to unmarshal key concepts for question %d: %w", q.ID, err)
		}
	}
	return q, nil
}

// AppendImage stores an image record and returns it with its assigned id.
func (s *Store) AppendImage(img ImageRecord) (ImageRecord, error) {
	img.CreatedAt = time.Now()
	res, err := s.db.Exec(
		"INSERT INTO images (chapter_id, page_number, path, created_at) VALUES (?, ?, ?, ?)",
		img.ChapterID, img.PageNumber, img.Path, img.CreatedAt,
	)
	if err != nil {
		return img, fmt.Errorf("failed to append image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return img, fmt.Errorf("failed to read image id: %w", err)
	}
	img.ID = int(id)
	return img, nil
}

// ImagesByChapter returns the stored images for a chapter in stored order.
func (s *Store) ImagesByChapter(chapterID int) ([]ImageRecord, error) {
	rows, err := s.db.Query(
		"SELECT id, chapter_id, page_number, path, created_at FROM images WHERE chapter_id = ? ORDER BY id",
		chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	defer rows.Close()

	var images []ImageRecord
	for rows.Next() {
		var img ImageRecord
		if err := rows.Scan(&img.ID, &img.ChapterID, &img.PageNumber, &img.Path, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// AppendAttempt records one practice answer.
func (s *Store) AppendAttempt(a Attempt) (Attempt, error) {
	a.CreatedAt = time.Now()
	res, err := s.db.Exec(
		"INSERT INTO attempts (question_id, chapter_id, user_answer, correct_answer, is_correct, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		a.QuestionID, a.ChapterID, a.UserAnswer, a.CorrectAnswer, a.IsCorrect, a.CreatedAt,
	)
	if err != nil {
		return a, fmt.Errorf("failed to append attempt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return a, fmt.Errorf("failed to read attempt id: %w", err)
	}
	a.ID = int(id)
	return a, nil
}

// ChunkQuality returns the quality record for one chunk, or nil if the chunk
// has not contributed to any question yet.
func (s *Store) ChunkQuality(chapterID, chunkIndex int) (*ChunkQualityRecord, error) {
	var scores string
	rec := ChunkQualityRecord{ChapterID: chapterID, ChunkIndex: chunkIndex}
	err := s.db.QueryRow(
		"SELECT scores, average FROM chunk_quality WHERE chapter_id = ? AND chunk_index = ?",
		chapterID, chunkIndex,
	).Scan(&scores, &rec.Average)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk quality: %w", err)
	}
	if err := json.Unmarshal([]byte(scores), &rec.Scores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chunk quality scores: %w", err)
	}
	return &rec, nil
}

// RecordChunkScore appends a confidence score to a chunk's rolling history,
// keeps only the window most recent entries, and recomputes the average. The
// whole read-modify-write runs under the store's writer lock.
func (s *Store) RecordChunkScore(chapterID, chunkIndex, score, window int) (*ChunkQualityRecord, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rec, err := s.ChunkQuality(chapterID, chunkIndex)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &ChunkQualityRecord{ChapterID: chapterID, ChunkIndex: chunkIndex}
	}

	rec.Scores = append(rec.Scores, score)
	if len(rec.Scores) > window {
		rec.Scores = rec.Scores[len(rec.Scores)-window:]
	}
	var sum int
	for _, v := range rec.Scores {
		sum += v
	}
	rec.Average = float64(sum) / float64(len(rec.Scores))

	scores, err := json.Marshal(rec.Scores)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk quality scores: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO chunk_quality (chapter_id, chunk_index, scores, average) VALUES (?, ?, ?, ?)
		 ON CONFLICT(chapter_id, chunk_index) DO UPDATE SET scores = excluded.scores, average = excluded.average`,
		chapterID, chunkIndex, string(scores), rec.Average,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record chunk score: %w", err)
	}
	return rec, nil
}
