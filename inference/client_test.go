package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompletionServer answers any chat completion request with the given
// content.
func fakeCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestPoolClientIdempotent(t *testing.T) {
	p := NewPool(Config{BaseURL: "http://localhost:9", APIKey: "k", Model: "m"})

	first := p.Client()
	require.NotNil(t, first)

	// Same instance must be returned across concurrent callers.
	var wg sync.WaitGroup
	clients := make([]*openai.Client, 16)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i] = p.Client()
		}(i)
	}
	wg.Wait()

	for _, c := range clients {
		assert.Same(t, first, c)
	}
}

func TestChatStripsReasoning(t *testing.T) {
	srv := fakeCompletionServer(t, "<think>internal monologue</think>The answer is 42.")
	defer srv.Close()

	p := NewPool(Config{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m"})
	out, err := p.Chat(context.Background(), "system", "question")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", out)
}

func TestExtractPage(t *testing.T) {
	srv := fakeCompletionServer(t, "# Page 1\n\nExtracted markdown.")
	defer srv.Close()

	p := NewPool(Config{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m", VisionModel: "vision"})
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: "extract this page"},
	}
	out, err := p.ExtractPage(context.Background(), "digitize", parts)
	require.NoError(t, err)
	assert.Contains(t, out, "Extracted markdown.")
}

func TestStripReasoning(t *testing.T) {
	assert.Equal(t, "clean", StripReasoning("<thought>x</thought>clean"))
	assert.Equal(t, "no tags", StripReasoning("no tags"))
	assert.Equal(t, "before after", StripReasoning("before <think>multi\nline</think>after"))
}

func TestParseJSONBlock(t *testing.T) {
	assert.Equal(t, `["a","b"]`, ParseJSONBlock("```json\n[\"a\",\"b\"]\n```"))
	assert.Equal(t, `["a"]`, ParseJSONBlock(`["a"]`))
	assert.Equal(t, `{"k":1}`, ParseJSONBlock("prefix ```\n{\"k\":1}\n``` suffix"))
}
