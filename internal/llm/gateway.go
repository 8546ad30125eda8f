package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"queryflow/internal/httpx"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

	defaultOpenAIBaseURL = "https://api.openai.com"

	anthropicMaxTokens = 1024
)

// outputTextPaths is the ordered list of known locations for generated
// text in a completion response. The upstream response shape is not
// guaranteed stable; supporting a new shape is one more entry here.
var outputTextPaths = []string{
	"choices.0.message.content",
	"output.0.content.0.text.value",
	"output.0.content.0.text",
	"output_text.0",
	"output_text",
}

// GatewayConfig carries the credentials and model identity for one
// provider. It is injected explicitly so tests can point the gateway at a
// fake server with fake credentials.
type GatewayConfig struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the OpenAI endpoint; empty means the public API.
	BaseURL string
}

// Gateway sends prompts to the configured model provider and returns raw
// generated text. It is the only pipeline stage that blocks on network
// I/O, and it never retries.
type Gateway struct {
	cfg    GatewayConfig
	client *http.Client
	logger *logrus.Logger
}

func NewGateway(cfg GatewayConfig, logger *logrus.Logger) *Gateway {
	if cfg.Model == "" {
		switch cfg.Provider {
		case ProviderAnthropic:
			cfg.Model = DefaultAnthropicModel
		default:
			cfg.Model = DefaultOpenAIModel
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	return &Gateway{cfg: cfg, client: httpx.ExternalHTTPClient(), logger: logger}
}

func (g *Gateway) Model() string { return g.cfg.Model }

// Invoke sends one instruction+input pair and returns the raw text reply.
// Failures are *GatewayError (transport/auth/non-2xx) or *EmptyOutputError
// (success response with no usable text).
func (g *Gateway) Invoke(ctx context.Context, prompt Prompt, temperature float64) (string, error) {
	switch g.cfg.Provider {
	case ProviderAnthropic:
		return g.invokeAnthropic(ctx, prompt, temperature)
	default:
		return g.invokeOpenAI(ctx, prompt, temperature)
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (g *Gateway) invokeOpenAI(ctx context.Context, prompt Prompt, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       g.cfg.Model,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.Instructions},
			{Role: "user", Content: prompt.Input},
		},
	})
	if err != nil {
		return "", &GatewayError{Provider: ProviderOpenAI, Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &GatewayError{Provider: ProviderOpenAI, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.WithError(err).Error("openai request failed")
		return "", &GatewayError{Provider: ProviderOpenAI, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GatewayError{Provider: ProviderOpenAI, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := gjson.GetBytes(respBody, "error.message").String()
		if detail == "" {
			detail = string(respBody)
		}
		return "", &GatewayError{
			Provider:   ProviderOpenAI,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", detail),
		}
	}

	text := probeOutputText(respBody)
	if text == "" {
		g.logger.WithField("body_bytes", len(respBody)).Error("openai response contained no output text")
		return "", &EmptyOutputError{Provider: ProviderOpenAI}
	}

	g.logger.WithFields(logrus.Fields{
		"provider":   ProviderOpenAI,
		"model":      g.cfg.Model,
		"size":       len(text),
		"tokens_in":  gjson.GetBytes(respBody, "usage.prompt_tokens").Int(),
		"tokens_out": gjson.GetBytes(respBody, "usage.completion_tokens").Int(),
	}).Debug("model response received")
	return text, nil
}

// probeOutputText tries each known output shape in order and returns the
// first non-empty string match. Only actual JSON strings count; a number
// or object at a probed path is not generated text.
func probeOutputText(body []byte) string {
	for _, path := range outputTextPaths {
		if v := gjson.GetBytes(body, path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func (g *Gateway) invokeAnthropic(ctx context.Context, prompt Prompt, temperature float64) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(g.cfg.APIKey))

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.cfg.Model),
		MaxTokens:   anthropicMaxTokens,
		Temperature: anthropic.Float(temperature),
		System: []anthropic.TextBlockParam{
			{Text: prompt.Instructions},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.Input)),
		},
	})
	if err != nil {
		g.logger.WithError(err).Error("anthropic request failed")
		return "", &GatewayError{Provider: ProviderAnthropic, Err: err}
	}

	for _, block := range message.Content {
		if block.Type == "text" && block.Text != "" {
			g.logger.WithFields(logrus.Fields{
				"provider":   ProviderAnthropic,
				"model":      g.cfg.Model,
				"size":       len(block.Text),
				"tokens_in":  message.Usage.InputTokens,
				"tokens_out": message.Usage.OutputTokens,
			}).Debug("model response received")
			return block.Text, nil
		}
	}
	return "", &EmptyOutputError{Provider: ProviderAnthropic}
}
