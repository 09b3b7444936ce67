// Package vision turns cropped region images into structured text by calling
// a vision-capable language model. Failures never propagate: every error path
// collapses into a fixed, recognizable sentinel string so a single bad region
// cannot abort document extraction.
package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

// Environment variable names for the vision backend.
const (
	EnvVLMAPIURL      = "DOCUVISION_VLM_API_URL"     // e.g. "https://api.openai.com/v1"
	EnvVLMModel       = "DOCUVISION_VLM_MODEL"       // e.g. "gpt-4o"
	EnvVLMAPIKey      = "DOCUVISION_VLM_API_KEY"     // API key for the provider
	EnvVLMMaxTokens   = "DOCUVISION_VLM_MAX_TOKENS"  // Maximum generated tokens (default: 3000)
	EnvVLMTemperature = "DOCUVISION_VLM_TEMPERATURE" // Sampling temperature (default: 0.3)
	EnvVLMTimeout     = "DOCUVISION_VLM_TIMEOUT"     // Request timeout in seconds (default: 120)
)

// Default call parameters. Low temperature favors reproducible descriptions
// over creative ones; the token cap bounds worst-case latency and cost.
const (
	DefaultMaxTokens   = 3000
	DefaultTemperature = 0.3
	DefaultTimeout     = 120
)

// Describer produces a structured textual description of a region image.
// Implementations must never return an error: failures are absorbed into the
// sentinel strings below.
type Describer interface {
	Describe(ctx context.Context, imagePath string, kind Kind) string
}

// ProcessingFailedSentinel is the content substituted when the model call
// fails; EncodingFailedSentinel when the artifact cannot be read or encoded.
// Consumers detect failed regions by scanning for these substrings.
func ProcessingFailedSentinel(kind Kind) string {
	return fmt.Sprintf("%s description: [Processing failed]", kind)
}

func EncodingFailedSentinel(kind Kind) string {
	return fmt.Sprintf("%s description: [Encoding failed]", kind)
}

// ExtractionFailedSentinel is the content substituted by the pipeline when no
// region artifact could be produced for an element at all.
func ExtractionFailedSentinel(kind Kind) string {
	return fmt.Sprintf("%s description: [Extraction failed]", kind)
}

// Client is the production Describer, backed by an OpenAI-compatible chat
// completions endpoint with image input support.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *logrus.Logger
}

// NewClient builds a vision client from the environment. Model and API key
// are required; the base URL is optional and defaults to the OpenAI API.
func NewClient(logger *logrus.Logger) (*Client, error) {
	model := os.Getenv(EnvVLMModel)
	apiKey := os.Getenv(EnvVLMAPIKey)
	if model == "" || apiKey == "" {
		return nil, fmt.Errorf("vision backend not configured: %s and %s are required", EnvVLMModel, EnvVLMAPIKey)
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := os.Getenv(EnvVLMAPIURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &Client{
		client:      &client,
		model:       model,
		maxTokens:   getEnvInt(EnvVLMMaxTokens, DefaultMaxTokens),
		temperature: getEnvFloat(EnvVLMTemperature, DefaultTemperature),
		timeout:     time.Duration(getEnvInt(EnvVLMTimeout, DefaultTimeout)) * time.Second,
		logger:      logger,
	}, nil
}

// Describe sends the region image with the kind-specific prompt and returns
// the model's text. On any failure it returns the matching sentinel.
func (c *Client) Describe(ctx context.Context, imagePath string, kind Kind) string {
	dataURL, err := encodeImageDataURL(imagePath)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"image": imagePath,
			"error": err,
		}).Error("Failed to encode region image")
		return EncodingFailedSentinel(kind)
	}

	userPrompt, systemPrompt := promptFor(kind)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	response, err := c.client.Chat.Completions.New(callCtx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(userPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		MaxTokens:   openai.Int(int64(c.maxTokens)),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"kind":  kind,
			"image": imagePath,
			"error": err,
		}).Error("Vision model call failed")
		return ProcessingFailedSentinel(kind)
	}

	if len(response.Choices) == 0 {
		c.logger.WithField("kind", kind).Error("Vision model returned no choices")
		return ProcessingFailedSentinel(kind)
	}
	return response.Choices[0].Message.Content
}

// encodeImageDataURL reads the artifact and wraps it in a base64 PNG data URL
// for inline transmission.
func encodeImageDataURL(imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

func getEnvInt(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(envVar string, defaultValue float64) float64 {
	if value := os.Getenv(envVar); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
