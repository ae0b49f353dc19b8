package transcription

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"edu-crm/internal/telephony"

	"github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	SummaryModel       string
}

// OpenAIClient transcribes with Whisper and summarizes with a chat model in
// JSON mode.
type OpenAIClient struct {
	client             *openai.Client
	transcriptionModel string
	summaryModel       string
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = openai.Whisper1
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = openai.GPT4oMini
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return &OpenAIClient{
		client:             openai.NewClientWithConfig(config),
		transcriptionModel: cfg.TranscriptionModel,
		summaryModel:       cfg.SummaryModel,
	}, nil
}

func (c *OpenAIClient) Transcribe(ctx context.Context, audio telephony.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", errors.New("audio is empty")
	}
	name := audio.Filename
	if name == "" {
		name = "recording.mp3"
	}
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.transcriptionModel,
		FilePath: name,
		Reader:   bytes.NewReader(audio.Data),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (c *OpenAIClient) Complete(ctx context.Context, msgs []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.summaryModel,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
