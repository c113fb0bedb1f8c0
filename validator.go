package examgen

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// The judge runs cooler than the author so its scores are comparable across
// attempts.
const judgeTemperature = 0.3

// QuestionChecker validates candidate questions with an LLM judge.
type QuestionChecker struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *RunLogger
}

// NewQuestionChecker creates a question checker.
func NewQuestionChecker(client *openai.Client, cfg OpenAIConfig, logger *RunLogger) *QuestionChecker {
	return &QuestionChecker{
		client:    client,
		model:     cfg.LLMModel,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

// Validate sets state.Validation. A failed uniqueness check short-circuits
// without calling the judge: the result is invalid with zero confidence but
// keeps medical_accuracy true, because a duplicate is not an accuracy
// failure. A judge-provider failure yields the opposite bias - invalid, zero
// confidence, accuracy suspect - so the controller prefers regenerating over
// accepting an unverified question.
func (qc *QuestionChecker) Validate(ctx context.Context, state *GenerationState) {
	if state.Uniqueness != nil && !state.Uniqueness.IsUnique {
		VerboseLog("Question failed uniqueness check: %s", state.Uniqueness.Reason)
		state.Validation = &ValidationResult{
			IsValid:         false,
			ConfidenceScore: 0,
			Issues:          []string{state.Uniqueness.Reason},
			MedicalAccuracy: true,
		}
		qc.logger.LogValidation(state.Validation)
		return
	}

	prompt := validationPrompt(state.Draft, buildExcerpt(state.RetrievedChunks))
	qc.logger.LogLLMRequest("QuestionChecker", prompt)

	resp, err := qc.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       qc.model,
		Temperature: judgeTemperature,
		MaxTokens:   qc.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		state.Validation = pessimisticResult(err)
		qc.logger.LogValidation(state.Validation)
		return
	}
	if len(resp.Choices) == 0 {
		state.Validation = pessimisticResult(fmt.Errorf("empty judge response"))
		qc.logger.LogValidation(state.Validation)
		return
	}

	raw := resp.Choices[0].Message.Content
	qc.logger.LogLLMResponse("QuestionChecker", raw)

	var result ValidationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		state.Validation = pessimisticResult(fmt.Errorf("parse judge response: %w", err))
		qc.logger.LogValidation(state.Validation)
		return
	}

	state.Validation = &result
	qc.logger.LogValidation(state.Validation)
	VerboseLog("Validation complete: valid=%v, confidence=%d", result.IsValid, result.ConfidenceScore)
}

func pessimisticResult(err error) *ValidationResult {
	return &ValidationResult{
		IsValid:         false,
		ConfidenceScore: 0,
		Issues:          []string{err.Error()},
		MedicalAccuracy: false,
	}
}
