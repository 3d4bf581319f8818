package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/irislabs/iris/internal/models"
)

const (
	defaultModel = openai.ChatModelGPT4oMini
	// maxContextTurns bounds how much per-user history is replayed into the
	// classification prompt.
	maxContextTurns = 6
)

const systemPromptTemplate = `You are an intent classifier for a travel agency assistant.
Classify the user's message into exactly one label from this list:

%s

Chained labels like "manage_booking.flight.cancel - no - yes" mean the user
answered a follow-up question; pick them only when the conversation history
supports the chain. If no label fits, answer exactly:
Default Fallback Intent

Answer with the label only, nothing else.`

// completionsClient is the slice of the OpenAI client the classifier uses.
type completionsClient interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds the OpenAI classifier's configurable fields.
type Opts struct {
	APIKey string
	Model  string
	Client completionsClient
}

// Option configures the OpenAI classifier.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithCompletionsClient injects a completions client, used by tests.
func WithCompletionsClient(c completionsClient) Option {
	return func(o *Opts) { o.Client = c }
}

type turn struct {
	userText string
	intent   models.Intent
}

// OpenAIClassifier resolves intents with a chat-completion model constrained
// to the closed intent set. Per-user recent turns are replayed as context so
// chained yes/no branches classify correctly.
type OpenAIClassifier struct {
	client completionsClient
	model  string
	known  map[models.Intent]struct{}
	prompt string

	mu      sync.Mutex
	history map[string][]turn
}

// NewOpenAIClassifier creates a classifier backed by the OpenAI API.
func NewOpenAIClassifier(opts ...Option) (*OpenAIClassifier, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Client == nil {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not set")
		}
		client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
		cfg.Client = &client.Chat.Completions
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	intents := models.KnownIntents()
	known := make(map[models.Intent]struct{}, len(intents))
	labels := make([]string, 0, len(intents))
	for _, in := range intents {
		known[in] = struct{}{}
		labels = append(labels, string(in))
	}

	return &OpenAIClassifier{
		client:  cfg.Client,
		model:   cfg.Model,
		known:   known,
		prompt:  fmt.Sprintf(systemPromptTemplate, strings.Join(labels, "\n")),
		history: make(map[string][]turn),
	}, nil
}

// DetectIntent classifies text for the user. Unknown labels from the model
// degrade to the fallback intent rather than erroring.
func (c *OpenAIClassifier) DetectIntent(ctx context.Context, userKey, text string, lang models.Language) (models.Intent, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(c.prompt),
	}
	c.mu.Lock()
	for _, t := range c.history[userKey] {
		messages = append(messages,
			openai.UserMessage(t.userText),
			openai.AssistantMessage(string(t.intent)),
		)
	}
	c.mu.Unlock()
	messages = append(messages, openai.UserMessage(fmt.Sprintf("[lang=%s] %s", lang, text)))

	resp, err := c.client.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return models.IntentFallback, fmt.Errorf("intent completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.IntentFallback, fmt.Errorf("intent completion returned no choices")
	}

	label := models.Intent(strings.TrimSpace(resp.Choices[0].Message.Content))
	if _, ok := c.known[label]; !ok && label != models.IntentFallback {
		slog.Debug("Classifier produced unknown label, using fallback", "label", label, "userKey", userKey)
		label = models.IntentFallback
	}

	c.mu.Lock()
	h := append(c.history[userKey], turn{userText: text, intent: label})
	if len(h) > maxContextTurns {
		h = h[len(h)-maxContextTurns:]
	}
	c.history[userKey] = h
	c.mu.Unlock()

	return label, nil
}

// ClearContext drops the user's replayed classification history.
func (c *OpenAIClassifier) ClearContext(ctx context.Context, userKey string) error {
	c.mu.Lock()
	delete(c.history, userKey)
	c.mu.Unlock()
	return nil
}
