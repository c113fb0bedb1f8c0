package examgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Context-assembly bounds: how much of each chunk reaches the prompt.
const (
	contextChunkLimit   = 500
	imageContextLimit   = 500
	citationQuoteLimit  = 100
	excerptChunkLimit   = 300
	excerptChunkCount   = 2
	generationSystemMsg = "You are a medical education expert creating unique, high-quality exam questions."
)

// QuestionMaker authors candidate questions from retrieved context using the
// chat model's JSON response mode.
type QuestionMaker struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	analyzer    *ImageAnalyzer
	logger      *RunLogger
}

// NewQuestionMaker creates a question maker. analyzer may be nil when image
// questions are disabled.
func NewQuestionMaker(client *openai.Client, cfg OpenAIConfig, analyzer *ImageAnalyzer, logger *RunLogger) *QuestionMaker {
	return &QuestionMaker{
		client:      client,
		model:       cfg.LLMModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		analyzer:    analyzer,
		logger:      logger,
	}
}

// Generate runs one authoring attempt. Provider failures are recorded on the
// state (state.Err) and leave the draft absent; they are never raised out of
// the pipeline. A successful attempt increments state.AttemptCount.
func (qm *QuestionMaker) Generate(ctx context.Context, state *GenerationState) {
	contextBlock := buildContextBlock(state.RetrievedChunks)

	imageContext := ""
	if len(state.RetrievedImages) > 0 && qm.analyzer != nil {
		image := state.RetrievedImages[0]
		surrounding := ""
		for _, chunk := range state.RetrievedChunks {
			if chunk.Meta.PageNumber == image.PageNumber {
				surrounding = truncate(chunk.Meta.Text, imageContextLimit)
				break
			}
		}
		analysis, err := qm.analyzer.Analyze(ctx, image.Path, surrounding)
		if err != nil {
			state.Err = fmt.Errorf("image analysis: %w", err)
			return
		}
		imageContext = analysis
		state.ImageAnalysis = analysis
	}

	prompt := generationPrompt(state.Difficulty, contextBlock, imageContext)
	qm.logger.LogLLMRequest("QuestionMaker", prompt)

	resp, err := qm.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       qm.model,
		Temperature: qm.temperature,
		MaxTokens:   qm.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: generationSystemMsg},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		state.Err = fmt.Errorf("generate question: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		state.Err = fmt.Errorf("generate question: empty response")
		return
	}

	raw := resp.Choices[0].Message.Content
	qm.logger.LogLLMResponse("QuestionMaker", raw)

	draft, err := normalizeDraft([]byte(raw))
	if err != nil {
		state.Err = fmt.Errorf("parse generated question: %w", err)
		return
	}

	draft.ChapterID = state.ChapterID
	draft.Difficulty = state.Difficulty
	if len(state.RetrievedImages) > 0 {
		draft.ImagePath = state.RetrievedImages[0].Path
	}

	state.Draft = draft
	state.AttemptCount++
	VerboseLog("Generated question draft (attempt %d) for chapter %d", state.AttemptCount, state.ChapterID)
}

// buildContextBlock concatenates retrieved chunks into the page-tagged source
// block fed to the model, each chunk truncated to a bounded length.
func buildContextBlock(chunks []SearchResult) string {
	parts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("[Page %d]\n%s", chunk.Meta.PageNumber, truncate(chunk.Meta.Text, contextChunkLimit)))
	}
	return strings.Join(parts, "\n\n")
}

// buildExcerpt condenses the first retrieved chunks into the judge's source
// excerpt.
func buildExcerpt(chunks []SearchResult) string {
	parts := make([]string, 0, excerptChunkCount)
	for i, chunk := range chunks {
		if i >= excerptChunkCount {
			break
		}
		parts = append(parts, truncate(chunk.Meta.Text, excerptChunkLimit))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// generatedPayload mirrors the JSON shape requested from the model.
// Explanation may be a flat string or a structured object; references may be
// objects or bare strings.
type generatedPayload struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   json.RawMessage   `json:"explanation"`
	References    []json.RawMessage `json:"references"`
	KeyConcepts   []string          `json:"key_concepts"`
	ReasoningType string            `json:"reasoning_type"`
	QuestionType  string            `json:"question_type"`
}

type structuredExplanation struct {
	CorrectReasoning   string            `json:"correct_reasoning"`
	DistractorAnalysis map[string]string `json:"distractor_analysis"`
	ClinicalContext    string            `json:"clinical_context"`
	KeyTakeaway        string            `json:"key_takeaway"`
}

type structuredReference struct {
	Page    any    `json:"page"`
	Quote   string `json:"quote"`
	Section string `json:"section"`
}

// normalizeDraft parses a raw model response and normalizes it into the
// single canonical draft representation: one formatted explanation text and
// rendered citation strings.
func normalizeDraft(raw []byte) (*QuestionDraft, error) {
	var payload generatedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("invalid response JSON: %w", err)
	}
	if strings.TrimSpace(payload.Question) == "" {
		return nil, fmt.Errorf("response has no question text")
	}
	if len(payload.Options) != len(OptionKeys) {
		return nil, fmt.Errorf("response has %d options, want %d", len(payload.Options), len(OptionKeys))
	}
	for _, key := range OptionKeys {
		if _, ok := payload.Options[key]; !ok {
			return nil, fmt.Errorf("response is missing option %s", key)
		}
	}
	answer := strings.ToUpper(strings.TrimSpace(payload.CorrectAnswer))
	if _, ok := payload.Options[answer]; !ok {
		return nil, fmt.Errorf("correct_answer %q is not one of the options", payload.CorrectAnswer)
	}

	explanation, err := normalizeExplanation(payload.Explanation, payload.Options, answer)
	if err != nil {
		return nil, err
	}

	return &QuestionDraft{
		Question:      payload.Question,
		Options:       payload.Options,
		CorrectAnswer: answer,
		Explanation:   explanation,
		Citations:     renderCitations(payload.References),
		KeyConcepts:   payload.KeyConcepts,
		ReasoningType: payload.ReasoningType,
		QuestionType:  payload.QuestionType,
	}, nil
}

// normalizeExplanation renders either explanation shape into one formatted
// text with four labeled sections. The distractor analysis omits the correct
// option.
func normalizeExplanation(raw json.RawMessage, options map[string]string, correct string) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var flat string
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var exp structuredExplanation
	if err := json.Unmarshal(raw, &exp); err != nil {
		return "", fmt.Errorf("explanation is neither a string nor a structured object: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("**Why %q is the correct answer:**\n%s\n\n", options[correct], exp.CorrectReasoning))
	sb.WriteString("**Analysis of Other Options:**\n")
	for _, key := range OptionKeys {
		if key == correct {
			continue
		}
		if analysis, ok := exp.DistractorAnalysis[key]; ok {
			sb.WriteString(fmt.Sprintf("- Option %s (%s): %s\n", key, options[key], analysis))
		}
	}
	sb.WriteString(fmt.Sprintf("\n**Clinical Context:**\n%s\n\n", exp.ClinicalContext))
	sb.WriteString(fmt.Sprintf("**Key Takeaway:**\n%s", exp.KeyTakeaway))
	return sb.String(), nil
}

// renderCitations turns reference entries into citation strings of the form
// `Page <n>[, <section>][: "<quote>..."]`. Entries that are not objects are
// stringified verbatim.
func renderCitations(refs []json.RawMessage) []string {
	if len(refs) == 0 {
		return nil
	}
	citations := make([]string, 0, len(refs))
	for _, raw := range refs {
		var ref structuredReference
		if err := json.Unmarshal(raw, &ref); err == nil && (ref.Page != nil || ref.Quote != "" || ref.Section != "") {
			citation := fmt.Sprintf("Page %s", pageOrNA(ref.Page))
			if ref.Section != "" {
				citation += ", " + ref.Section
			}
			if ref.Quote != "" {
				citation += fmt.Sprintf(": %q...", truncate(ref.Quote, citationQuoteLimit))
			}
			citations = append(citations, citation)
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			citations = append(citations, s)
		} else {
			citations = append(citations, string(raw))
		}
	}
	return citations
}

func pageOrNA(page any) string {
	switch v := page.(type) {
	case nil:
		return "N/A"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		if v == "" {
			return "N/A"
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
