package examgen

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunLogger records every LLM interaction and pipeline decision of one batch
// run to a dedicated log file. All methods are safe on a nil receiver so
// callers can run without a logger.
type RunLogger struct {
	file  *os.File
	mu    sync.Mutex
	runID string
}

// NewRunLogger creates a run log file under dir, named by a fresh run id.
func NewRunLogger(dir string, chapterID int, difficulty Difficulty, count int) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runID := uuid.NewString()
	file, err := os.Create(filepath.Join(dir, fmt.Sprintf("run-%s.log", runID)))
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	rl := &RunLogger{file: file, runID: runID}
	rl.Logf("=== Question Generation Run ===\n")
	rl.Logf("Run ID: %s\n", runID)
	rl.Logf("Chapter: %d\n", chapterID)
	rl.Logf("Difficulty: %s\n", difficulty)
	rl.Logf("Requested Questions: %d\n", count)
	rl.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	rl.Logf("===============================\n\n")
	return rl, nil
}

// RunID returns the run's identifier.
func (rl *RunLogger) RunID() string {
	if rl == nil {
		return ""
	}
	return rl.runID
}

// Logf writes a formatted log entry with timestamp.
func (rl *RunLogger) Logf(format string, args ...interface{}) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(rl.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	rl.file.Sync()
}

// LogLLMRequest logs an outgoing LLM prompt.
func (rl *RunLogger) LogLLMRequest(stage, prompt string) {
	rl.Logf("=== LLM REQUEST (%s) ===\n%s\n========================\n\n", stage, prompt)
}

// LogLLMResponse logs a raw LLM response.
func (rl *RunLogger) LogLLMResponse(stage, response string) {
	rl.Logf("=== LLM RESPONSE (%s) ===\n%s\n=========================\n\n", stage, response)
}

// LogUniqueness logs a duplicate-detection verdict.
func (rl *RunLogger) LogUniqueness(check *UniquenessCheck) {
	if rl == nil || check == nil {
		return
	}
	if check.IsUnique {
		rl.Logf("Uniqueness: UNIQUE - %s\n", check.Reason)
	} else {
		rl.Logf("Uniqueness: DUPLICATE - %s\n", check.Reason)
	}
}

// LogValidation logs the judge's verdict.
func (rl *RunLogger) LogValidation(result *ValidationResult) {
	if rl == nil || result == nil {
		return
	}
	rl.Logf("Validation: valid=%v confidence=%d medical_accuracy=%v issues=%v\n",
		result.IsValid, result.ConfidenceScore, result.MedicalAccuracy, result.Issues)
}

// LogTransition logs a controller decision.
func (rl *RunLogger) LogTransition(attempt int, t Transition) {
	rl.Logf("Controller: attempt %d -> %s\n", attempt, t)
}

// Close finalizes and closes the run log.
func (rl *RunLogger) Close() error {
	if rl == nil {
		return nil
	}
	rl.Logf("=== Run Complete ===\nCompleted: %s\n====================\n", time.Now().Format(time.RFC3339))
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file != nil {
		return rl.file.Close()
	}
	return nil
}
