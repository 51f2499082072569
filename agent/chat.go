package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/search"
	"github.com/inquiro/inquiro/store"
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser marks messages from the user.
	RoleUser Role = "user"
	// RoleAssistant marks messages from the model.
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	ID          string          `json:"id"`
	Role        Role            `json:"role"`
	Content     string          `json:"content"`
	SourcesUsed int             `json:"sources_used"`
	Sources     []search.Result `json:"sources,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// newMessage stamps a turn with a fresh ID and the current time.
func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// MemoryReader retrieves vector records relevant to a message.
// *store.Facade satisfies it.
type MemoryReader interface {
	QueryBySession(ctx context.Context, queryText string) ([]store.Record, error)
}

// WebResearcher runs a single-pass web search for chat web mode.
type WebResearcher interface {
	Research(ctx context.Context, q Query) (*Answer, error)
}

const chatGreeting = "Hello! I'm your research assistant. Ask me anything, or upload documents for me to remember."

const chatSystemPrompt = `You are a helpful AI assistant with access to a knowledge base.
When answering questions, use the provided context from the knowledge base when relevant.
If the context doesn't contain relevant information, you may use your general knowledge but indicate this.
Be concise and helpful. Format responses in Markdown when appropriate.`

const (
	// historyWindow is how many trailing turns reach the model.
	historyWindow = 10
	// maxContextChars bounds each retrieved record in the prompt.
	maxContextChars = 500
	// webModeSources caps sources attached to a web mode reply.
	webModeSources = 3
)

// Chat is the memory-grounded conversational agent. Safe for concurrent use;
// history is process-wide shared state.
type Chat struct {
	llm        LLM
	memory     MemoryReader
	researcher WebResearcher
	logger     log.Logger

	mu      sync.Mutex
	history []Message
}

// ChatOption configures the Chat agent.
type ChatOption func(*Chat)

// WithChatLogger sets the logger.
func WithChatLogger(logger log.Logger) ChatOption {
	return func(c *Chat) {
		c.logger = logger
	}
}

// NewChat creates a chat agent. researcher may be nil, in which case web
// mode degrades to memory mode.
func NewChat(llm LLM, memory MemoryReader, researcher WebResearcher, opts ...ChatOption) *Chat {
	c := &Chat{
		llm:        llm,
		memory:     memory,
		researcher: researcher,
		logger:     log.Default(),
		history:    []Message{newMessage(RoleAssistant, chatGreeting)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Respond processes one user message. With webSearch set, the reply comes
// from a single-iteration research run; otherwise it is grounded in records
// retrieved from the knowledge store.
func (c *Chat) Respond(ctx context.Context, message string, webSearch bool) (Message, error) {
	if strings.TrimSpace(message) == "" {
		return Message{}, fmt.Errorf("empty message")
	}

	if webSearch && c.researcher != nil {
		return c.respondWeb(ctx, message)
	}
	return c.respondMemory(ctx, message)
}

func (c *Chat) respondMemory(ctx context.Context, message string) (Message, error) {
	records, err := c.memory.QueryBySession(ctx, message)
	if err != nil {
		c.logger.Warn("memory retrieval failed, answering without context: %v", err)
		records = nil
	}

	system := chatSystemPrompt + contextBlock(records)
	prompt := c.promptWithHistory(message)

	content, err := c.llm.Chat(ctx, system, prompt)
	if err != nil {
		return Message{}, fmt.Errorf("chat completion: %w", err)
	}

	reply := newMessage(RoleAssistant, strings.TrimSpace(content))
	reply.SourcesUsed = len(records)
	c.appendTurn(message, reply)
	return reply, nil
}

func (c *Chat) respondWeb(ctx context.Context, message string) (Message, error) {
	answer, err := c.researcher.Research(ctx, Query{Text: message, MaxIterations: 1})
	if err != nil {
		return Message{}, fmt.Errorf("web search: %w", err)
	}

	sources := answer.Sources
	if len(sources) > webModeSources {
		sources = sources[:webModeSources]
	}
	reply := newMessage(RoleAssistant, answer.Text)
	reply.SourcesUsed = len(sources)
	reply.Sources = sources
	c.appendTurn(message, reply)
	return reply, nil
}

// promptWithHistory renders the trailing conversation window plus the new
// user message as a single prompt.
func (c *Chat) promptWithHistory(message string) string {
	c.mu.Lock()
	window := c.history
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	var b strings.Builder
	for _, msg := range window {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	c.mu.Unlock()

	fmt.Fprintf(&b, "%s: %s", RoleUser, message)
	return b.String()
}

func (c *Chat) appendTurn(userMessage string, reply Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, newMessage(RoleUser, userMessage), reply)
}

// History returns a copy of the conversation so far.
func (c *Chat) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Clear resets the conversation to a single greeting. Persisted knowledge
// records are untouched.
func (c *Chat) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = []Message{newMessage(RoleAssistant, chatGreeting)}
}

// contextBlock renders retrieved records for the system prompt.
func contextBlock(records []store.Record) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n---\n**Knowledge Base Context:**\n")
	for i, rec := range records {
		content := truncateRunes(rec.Content, maxContextChars)
		fmt.Fprintf(&b, "\n[%d] %s", i+1, content)
		if rec.URL != "" {
			fmt.Fprintf(&b, "\n   Source: %s", rec.URL)
		}
	}
	b.WriteString("\n---\n")
	return b.String()
}
