package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquiro/inquiro/inference"
	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/search"
	"github.com/inquiro/inquiro/store"
)

type echoLLM struct {
	reply      string
	lastSystem string
	lastUser   string
}

func (l *echoLLM) Chat(_ context.Context, system, user string, _ ...inference.ChatOption) (string, error) {
	l.lastSystem = system
	l.lastUser = user
	return l.reply, nil
}

type fixedMemory struct {
	records []store.Record
	err     error
}

func (m *fixedMemory) QueryBySession(_ context.Context, _ string) ([]store.Record, error) {
	return m.records, m.err
}

type fixedResearcher struct {
	answer *Answer
	err    error
}

func (r *fixedResearcher) Research(_ context.Context, q Query) (*Answer, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := *r.answer
	out.Query = q.Text
	return &out, nil
}

func memoryRecords(n int) []store.Record {
	out := make([]store.Record, n)
	for i := range out {
		out[i] = store.NewRecord(store.KindVector, "chunk", "https://example.com", "remembered fact", "doc.pdf", "")
	}
	return out
}

func newTestChat(llm LLM, memory MemoryReader, researcher WebResearcher) *Chat {
	return NewChat(llm, memory, researcher, WithChatLogger(log.NopLogger{}))
}

func TestChatStartsWithGreeting(t *testing.T) {
	c := newTestChat(&echoLLM{}, &fixedMemory{}, nil)

	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, RoleAssistant, history[0].Role)
	assert.Equal(t, chatGreeting, history[0].Content)
}

func TestChatMessageIdentity(t *testing.T) {
	c := newTestChat(&echoLLM{reply: "ok"}, &fixedMemory{}, nil)

	before := time.Now().UTC()
	msg, err := c.Respond(context.Background(), "hello", false)
	require.NoError(t, err)

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.Before(before))

	// Every turn carries a distinct ID and a timestamp.
	history := c.History()
	require.Len(t, history, 3)
	seen := make(map[string]bool)
	for _, m := range history {
		assert.NotEmpty(t, m.ID)
		assert.False(t, seen[m.ID])
		seen[m.ID] = true
		assert.False(t, m.Timestamp.IsZero())
	}
}

func TestChatMemoryMode(t *testing.T) {
	llm := &echoLLM{reply: "grounded reply"}
	c := newTestChat(llm, &fixedMemory{records: memoryRecords(3)}, nil)

	msg, err := c.Respond(context.Background(), "what do you remember", false)
	require.NoError(t, err)

	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, "grounded reply", msg.Content)
	assert.Equal(t, 3, msg.SourcesUsed)

	// Retrieved records reach the model via the system prompt.
	assert.Contains(t, llm.lastSystem, "Knowledge Base Context")
	assert.Contains(t, llm.lastSystem, "remembered fact")

	history := c.History()
	require.Len(t, history, 3)
	assert.Equal(t, RoleUser, history[1].Role)
	assert.Equal(t, "what do you remember", history[1].Content)
}

func TestChatMemoryModeNoRecords(t *testing.T) {
	llm := &echoLLM{reply: "general reply"}
	c := newTestChat(llm, &fixedMemory{}, nil)

	msg, err := c.Respond(context.Background(), "hi there", false)
	require.NoError(t, err)
	assert.Equal(t, 0, msg.SourcesUsed)
	assert.NotContains(t, llm.lastSystem, "Knowledge Base Context")
}

func TestChatMemoryRetrievalFailureDegrades(t *testing.T) {
	llm := &echoLLM{reply: "still answers"}
	c := newTestChat(llm, &fixedMemory{err: errors.New("store down")}, nil)

	msg, err := c.Respond(context.Background(), "hello", false)
	require.NoError(t, err)
	assert.Equal(t, 0, msg.SourcesUsed)
	assert.Equal(t, "still answers", msg.Content)
}

func TestChatWebMode(t *testing.T) {
	sources := []search.Result{
		{ID: 1, URL: "https://a", Title: "a", Snippet: "s"},
		{ID: 2, URL: "https://b", Title: "b", Snippet: "s"},
		{ID: 3, URL: "https://c", Title: "c", Snippet: "s"},
		{ID: 4, URL: "https://d", Title: "d", Snippet: "s"},
	}
	researcher := &fixedResearcher{answer: &Answer{Text: "web answer", Sources: sources}}
	c := newTestChat(&echoLLM{}, &fixedMemory{}, researcher)

	msg, err := c.Respond(context.Background(), "latest news", true)
	require.NoError(t, err)
	assert.Equal(t, "web answer", msg.Content)
	assert.Len(t, msg.Sources, 3)
	assert.Equal(t, 3, msg.SourcesUsed)
}

func TestChatWebModeWithoutResearcher(t *testing.T) {
	llm := &echoLLM{reply: "memory fallback"}
	c := newTestChat(llm, &fixedMemory{}, nil)

	msg, err := c.Respond(context.Background(), "anything", true)
	require.NoError(t, err)
	assert.Equal(t, "memory fallback", msg.Content)
}

func TestChatWebModeError(t *testing.T) {
	researcher := &fixedResearcher{err: errors.New("no providers")}
	c := newTestChat(&echoLLM{}, &fixedMemory{}, researcher)

	_, err := c.Respond(context.Background(), "anything", true)
	assert.Error(t, err)

	// A failed turn leaves no trace in history.
	assert.Len(t, c.History(), 1)
}

func TestChatHistoryWindow(t *testing.T) {
	llm := &echoLLM{reply: "ok"}
	c := newTestChat(llm, &fixedMemory{}, nil)

	for i := 0; i < 12; i++ {
		_, err := c.Respond(context.Background(), "turn", false)
		require.NoError(t, err)
	}

	_, err := c.Respond(context.Background(), "marker question", false)
	require.NoError(t, err)

	// Only the trailing window plus the new message reaches the model.
	lines := strings.Count(llm.lastUser, "\n") + 1
	assert.Equal(t, historyWindow+1, lines)
	assert.Contains(t, llm.lastUser, "marker question")
	assert.NotContains(t, llm.lastUser, chatGreeting)
}

func TestContextBlockTruncationKeepsValidUTF8(t *testing.T) {
	rec := store.NewRecord(store.KindVector, "chunk", "",
		strings.Repeat("é", maxContextChars+100), "doc.pdf", "")

	block := contextBlock([]store.Record{rec})
	assert.True(t, utf8.ValidString(block))
	assert.NotContains(t, block, "�")
}

func TestChatClear(t *testing.T) {
	c := newTestChat(&echoLLM{reply: "ok"}, &fixedMemory{records: memoryRecords(1)}, nil)

	_, err := c.Respond(context.Background(), "first", false)
	require.NoError(t, err)
	require.Greater(t, len(c.History()), 1)

	c.Clear()

	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, RoleAssistant, history[0].Role)
	assert.Equal(t, chatGreeting, history[0].Content)
}

func TestChatEmptyMessage(t *testing.T) {
	c := newTestChat(&echoLLM{}, &fixedMemory{}, nil)
	_, err := c.Respond(context.Background(), "  ", false)
	assert.Error(t, err)
}

func TestMessageHTML(t *testing.T) {
	m := Message{Content: "**bold** text"}
	assert.Contains(t, m.HTML(), "<strong>bold</strong>")
}
