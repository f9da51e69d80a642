// Package tts provides a client for OpenAI-compatible text-to-speech endpoints.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sales-voice-go/internal/config"
	"sales-voice-go/pkg/log"
	"strings"
	"unicode/utf8"
)

// ErrEmptyText is returned when there is nothing to speak.
var ErrEmptyText = errors.New("text to synthesize is empty")

// Client defines the interface for a speech synthesis client.
type Client interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Format() string
}

type openAICompatibleClient struct {
	cfg    config.SpeechConfig
	client *http.Client
}

// NewClient creates a new speech client from config.
func NewClient(cfg config.SpeechConfig) Client {
	if cfg.Format == "" {
		cfg.Format = "mp3"
	}
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

func (c *openAICompatibleClient) Format() string { return c.cfg.Format }

// Synthesize 调用 /audio/speech 接口，返回音频字节。超过 MaxChars 的文本会被截断。
func (c *openAICompatibleClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = truncate(strings.TrimSpace(text), c.cfg.MaxChars)
	if text == "" {
		return nil, ErrEmptyText
	}
	log.Infof("[TTSClient] 开始调用语音合成 API, model: %s, voice: %s, input_len: %d", c.cfg.Model, c.cfg.Voice, len(text))

	reqBytes, err := json.Marshal(speechRequest{
		Model:          c.cfg.Model,
		Input:          text,
		Voice:          c.cfg.Voice,
		ResponseFormat: c.cfg.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/audio/speech", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call speech api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("speech api returned non-200 status: %s, body: %s", resp.Status, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech response: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("speech api returned empty audio")
	}
	log.Infof("[TTSClient] 语音合成成功, 音频大小: %d 字节", len(audio))
	return audio, nil
}

// truncate 按字符数截断，避免切断多字节字符。max<=0 表示不限制。
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
