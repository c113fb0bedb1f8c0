package examgen

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ImageAnalyzer describes a stored figure in exam-preparation terms using a
// vision-capable chat model.
type ImageAnalyzer struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *RunLogger
}

// NewImageAnalyzer creates an image analyzer.
func NewImageAnalyzer(client *openai.Client, model string, logger *RunLogger) *ImageAnalyzer {
	return &ImageAnalyzer{
		client:    client,
		model:     model,
		maxTokens: 1000,
		logger:    logger,
	}
}

// Analyze reads the image at path and returns the model's analysis, grounded
// in the surrounding textbook text where available.
func (ia *ImageAnalyzer) Analyze(ctx context.Context, path, textContext string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", path, err)
	}

	prompt := imageAnalysisPrompt(textContext)
	ia.logger.LogLLMRequest("ImageAnalyzer", prompt)

	resp, err := ia.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     ia.model,
		MaxTokens: ia.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageDataURL(path, data),
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from image analysis")
	}

	analysis := resp.Choices[0].Message.Content
	ia.logger.LogLLMResponse("ImageAnalyzer", analysis)
	return analysis, nil
}

func imageDataURL(path string, data []byte) string {
	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
