package extractor

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 1000
	defaultTimeout   = 60 * time.Second
)

// labelPrompt asks the model for the JSON shape nutrition.Record decodes.
const labelPrompt = `Please extract all nutritional information from this food product label image for SSIS compliance checking.

Return the data as a JSON object with the following structure:
{
  "productName": "string",
  "servingSize": "string",
  "servingWeightGrams": "number (extract the weight in grams from serving size, e.g., from '28g' extract 28)",
  "calories": "number",
  "totalFat": "number",
  "saturatedFat": "number",
  "transFat": "number",
  "cholesterol": "number",
  "sodium": "number",
  "totalCarbohydrates": "number",
  "dietaryFiber": "number",
  "totalSugars": "number",
  "addedSugars": "number",
  "protein": "number",
  "ingredients": ["array of ingredient strings"],
  "allergens": ["array of allergen strings"],
  "additionalInfo": "any other relevant nutritional information"
}

IMPORTANT:
- Extract numbers without units (just the numeric value)
- For servingWeightGrams, convert serving size to grams (e.g., "1 cup (28g)" -> 28, "2 pieces (30g)" -> 30)
- If serving weight is in other units, convert to grams where possible
- If a value is not visible or available, use null
- Only return the JSON object, no additional text.`

// VisionExtractor reads labels through an OpenAI-compatible vision model.
type VisionExtractor struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *logrus.Logger
}

// NewVisionExtractor returns an extractor for cfg. An API key is required.
func NewVisionExtractor(cfg Config, logger *logrus.Logger) (*VisionExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vision extractor: API key is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &VisionExtractor{
		client:    openai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Extract sends the image as a data URL with the label prompt and parses
// the reply.
func (v *VisionExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*Extraction, error) {
	if len(image) == 0 {
		return nil, ErrNoImage
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	log := v.logger.WithFields(logrus.Fields{
		"operation":   "extract",
		"model":       v.model,
		"mime_type":   mimeType,
		"image_bytes": len(image),
	})
	log.Debug("Invoking vision model")

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     v.model,
		MaxTokens: v.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
					{
						Type: openai.ChatMessagePartTypeText,
						Text: labelPrompt,
					},
				},
			},
		},
	})
	if err != nil {
		log.WithError(err).Error("Vision model request failed")
		return nil, fmt.Errorf("vision model request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	extraction, err := ParseReply(resp.Choices[0].Message.Content)
	if err != nil {
		log.WithError(err).Warn("Vision model reply could not be parsed")
		return nil, err
	}
	log.WithField("product", extraction.Record.Name()).Info("Nutrition data extracted")
	return extraction, nil
}
