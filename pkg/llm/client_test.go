package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sales-voice-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	chunks []string
}

func (w *recordingWriter) WriteMessage(_ int, data []byte) error {
	w.chunks = append(w.chunks, string(data))
	return nil
}

func sseServer(t *testing.T, chunks []string, seen *chatRequest) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]interface{}{
				"choices": []map[string]interface{}{{"delta": map[string]string{"content": c}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestStreamChatMessages(t *testing.T) {
	var seen chatRequest
	srv := sseServer(t, []string{"Sales ", "grew."}, &seen)
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "secret", BaseURL: srv.URL + "/", Model: "gpt-4", Generation: config.LLMGenerationConfig{Temperature: 0.2}})
	w := &recordingWriter{}
	err := c.StreamChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, w)
	require.NoError(t, err)

	assert.Equal(t, []string{"Sales ", "grew."}, w.chunks)
	assert.Equal(t, "gpt-4", seen.Model)
	assert.True(t, seen.Stream)
	require.NotNil(t, seen.Temperature)
	assert.InDelta(t, 0.2, *seen.Temperature, 1e-9)
	assert.Nil(t, seen.MaxTokens)
}

func TestComplete(t *testing.T) {
	var seen chatRequest
	srv := sseServer(t, []string{"  Answer", "\n```chart\n{}\n```  "}, &seen)
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "secret", BaseURL: srv.URL})
	out, err := c.Complete(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, "Answer\n```chart\n{}\n```", out)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, Message{Role: "user", Content: "question"}, seen.Messages[0])
}

func TestNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(config.LLMConfig{APIKey: "secret", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestCancelledContext(t *testing.T) {
	srv := sseServer(t, []string{"x"}, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(config.LLMConfig{APIKey: "secret", BaseURL: srv.URL})
	_, err := c.Complete(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
}
