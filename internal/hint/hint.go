// Package hint generates next-utterance suggestions for a learner in a live
// conversation session.
//
// Given the recent transcript and optional scenario framing, the generator
// asks a chat model for three candidate responses at varying difficulty and
// returns them as plain strings.
package hint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/malangee/ai-engine/internal/bridge"
	"github.com/malangee/ai-engine/internal/resilience"
)

// maxHints caps the number of suggestions returned per request.
const maxHints = 3

const systemPrompt = `You are an English conversation tutor helping a Korean learner practice English.

Based on the conversation context, suggest 3 natural English responses the learner could say next.

Guidelines:
- Suggestions should be appropriate for the conversation flow
- Vary the difficulty: 1 simple, 1 intermediate, 1 advanced
- Keep responses concise (1-2 sentences each)
- Make them sound natural, not textbook-like

%s

Output format (JSON array only, no explanation):
["response 1", "response 2", "response 3"]`

// ErrUnavailable is returned by Generate while the generator's circuit
// breaker is open after repeated upstream failures.
var ErrUnavailable = resilience.ErrOpen

// Generator produces hints through the OpenAI chat completions API. Calls go
// through a circuit breaker so a dead upstream rejects fast instead of
// stacking timeouts.
type Generator struct {
	client  oai.Client
	model   string
	breaker *resilience.Breaker
}

// config holds optional configuration for the generator.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Generator.
type Option func(*config)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a Generator.
func New(apiKey, model string, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("hint: apiKey must not be empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Generator{
		client: oai.NewClient(reqOpts...),
		model:  model,
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Name:         "hint-llm",
			MaxFailures:  3,
			ResetTimeout: 15 * time.Second,
		}),
	}, nil
}

// Generate returns up to three suggested responses for the learner given the
// recent transcript. An empty transcript yields no hints and no API call.
// A response the model formats incorrectly yields an error, not partial
// hints. While the breaker is open, Generate fails immediately with
// ErrUnavailable.
func (g *Generator) Generate(ctx context.Context, messages []bridge.Message, scenario bridge.Scenario) ([]string, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(fmt.Sprintf(systemPrompt, scenarioContext(scenario))),
			oai.UserMessage(userPrompt(messages)),
		},
		Temperature: param.NewOpt(0.7),
	}

	var resp *oai.ChatCompletion
	err := g.breaker.Do(func() error {
		var callErr error
		resp, callErr = g.client.Chat.Completions.New(ctx, params)
		return callErr
	})
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			return nil, fmt.Errorf("hint: %w", ErrUnavailable)
		}
		return nil, fmt.Errorf("hint: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("hint: empty choices in response")
	}

	hints, err := parseHints(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return hints, nil
}

// userPrompt renders the transcript as "Learner:"/"Tutor:" lines followed by
// the suggestion request.
func userPrompt(messages []bridge.Message) string {
	var b strings.Builder
	b.WriteString("Recent conversation:\n")
	for _, m := range messages {
		role := "Tutor"
		if m.Role == bridge.RoleUser {
			role = "Learner"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteByte('\n')
	}
	b.WriteString("\nSuggest 3 possible responses for the learner:")
	return b.String()
}

// scenarioContext renders the scenario framing for the system prompt, or the
// empty string when the session has none.
func scenarioContext(s bridge.Scenario) string {
	var parts []string
	if s.Title != "" {
		parts = append(parts, "Topic: "+s.Title)
	}
	if s.Place != "" {
		parts = append(parts, "Place: "+s.Place)
	}
	if s.Partner != "" {
		parts = append(parts, "Speaking with: "+s.Partner)
	}
	if s.Goal != "" {
		parts = append(parts, "Goal: "+s.Goal)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Scenario context:\n" + strings.Join(parts, "\n")
}

// parseHints decodes the model output as a JSON string array. Fenced code
// blocks around the array are tolerated; anything else is an error.
func parseHints(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var hints []string
	if err := json.Unmarshal([]byte(content), &hints); err != nil {
		return nil, fmt.Errorf("hint: parse model output: %w", err)
	}
	if len(hints) > maxHints {
		hints = hints[:maxHints]
	}
	return hints, nil
}
