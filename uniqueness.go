package examgen

import (
	"fmt"
	"sync"
	"time"
)

// questionSource provides the stored questions of a chapter in stored order.
// *Store satisfies it.
type questionSource interface {
	QuestionsByChapter(chapterID int) ([]Question, error)
}

// chapterCache is a TTL cache of per-chapter question snapshots. It bounds
// duplicate-detection I/O across concurrent pipeline instances; a stale
// window within the TTL is an accepted tradeoff. Safe for concurrent use.
type chapterCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int]chapterCacheEntry
}

type chapterCacheEntry struct {
	fetchedAt time.Time
	questions []Question
}

func newChapterCache(ttl time.Duration) *chapterCache {
	return &chapterCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int]chapterCacheEntry),
	}
}

// get returns the cached snapshot for a chapter, loading it through load when
// missing or expired.
func (c *chapterCache) get(chapterID int, load func() ([]Question, error)) ([]Question, error) {
	c.mu.RLock()
	entry, ok := c.entries[chapterID]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		return entry.questions, nil
	}

	questions, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[chapterID] = chapterCacheEntry{fetchedAt: c.now(), questions: questions}
	c.mu.Unlock()
	return questions, nil
}

// invalidate drops the cached snapshot for a chapter. Called after every
// question append so the next check sees the new question immediately.
func (c *chapterCache) invalidate(chapterID int) {
	c.mu.Lock()
	delete(c.entries, chapterID)
	c.mu.Unlock()
}

// UniquenessChecker detects candidate questions that duplicate a chapter's
// stored questions, by lexical similarity and by domain-term overlap.
type UniquenessChecker struct {
	source        questionSource
	cache         *chapterCache
	textThreshold float64
	termThreshold float64
}

// NewUniquenessChecker wires the checker to a question source with the given
// thresholds and cache TTL.
func NewUniquenessChecker(source questionSource, cfg UniquenessConfig) *UniquenessChecker {
	return &UniquenessChecker{
		source:        source,
		cache:         newChapterCache(time.Duration(cfg.CacheTTLSeconds) * time.Second),
		textThreshold: cfg.TextSimilarityThreshold,
		termThreshold: cfg.TermOverlapThreshold,
	}
}

// Invalidate drops the checker's cached snapshot of a chapter.
func (u *UniquenessChecker) Invalidate(chapterID int) {
	u.cache.invalidate(chapterID)
}

// Check scans a chapter's stored questions in stored order and reports the
// first violation found: lexical similarity above the text threshold, then
// domain-term overlap above the term threshold. A duplicate is a normal
// verdict, not an error; errors are reserved for storage failures.
func (u *UniquenessChecker) Check(chapterID int, candidate string) (*UniquenessCheck, error) {
	existing, err := u.cache.get(chapterID, func() ([]Question, error) {
		return u.source.QuestionsByChapter(chapterID)
	})
	if err != nil {
		return nil, fmt.Errorf("load questions for uniqueness check: %w", err)
	}

	candidateTerms := termSet(candidate)
	for _, q := range existing {
		if ratio := similarityRatio(candidate, q.Question); ratio > u.textThreshold {
			return &UniquenessCheck{
				IsUnique: false,
				Reason: fmt.Sprintf("question is %.1f%% similar to existing question: %q",
					ratio*100, snippet(q.Question, 80)),
			}, nil
		}
		if overlap := jaccard(candidateTerms, termSet(q.Question)); overlap > u.termThreshold {
			return &UniquenessCheck{
				IsUnique: false,
				Reason: fmt.Sprintf("question shares %.0f%% of its domain terms with existing question: %q",
					overlap*100, snippet(q.Question, 80)),
			}, nil
		}
	}

	return &UniquenessCheck{IsUnique: true, Reason: "question is unique"}, nil
}

func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
