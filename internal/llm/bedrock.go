package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/maraichr/slidepilot/internal/config"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// BedrockClient completes prompts with an Anthropic model hosted on AWS Bedrock.
type BedrockClient struct {
	bedrock *bedrockruntime.Client
	modelID string
}

// NewBedrockClient loads the default AWS credential chain for the configured region.
func NewBedrockClient(ctx context.Context, cfg config.BedrockConfig) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &BedrockClient{bedrock: bedrockruntime.NewFromConfig(awsCfg), modelID: cfg.ModelID}, nil
}

type bedrockMessagesRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
}

type bedrockMessagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *BedrockClient) Complete(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)
	body, err := json.Marshal(bedrockMessagesRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        defaultMaxTokens,
		System:           system,
		Messages:         rest,
		Temperature:      defaultTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	contentType := "application/json"
	resp, err := c.bedrock.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &c.modelID,
		ContentType: &contentType,
		Accept:      &contentType,
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoke model: %w", err)
	}

	var result bedrockMessagesResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("bedrock returned no text content")
	}
	return strings.TrimSpace(sb.String()), nil
}

func (c *BedrockClient) Model() string {
	return c.modelID
}
