package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGateway(GatewayConfig{
		Provider: ProviderOpenAI,
		APIKey:   "sk-test",
		BaseURL:  srv.URL,
	}, testLogger())
}

func TestGatewayInvokeOpenAI(t *testing.T) {
	var gotAuth, gotPath string
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"department\":\"Billing\"}"}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`))
	})

	text, err := g.Invoke(context.Background(), Prompt{Instructions: "sys", Input: "in"}, 0.2)
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if text != `{"department":"Billing"}` {
		t.Fatalf("unexpected text: %q", text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotPath != "/v1/chat/completions" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
}

func TestGatewayDefaultsModelPerProvider(t *testing.T) {
	g := NewGateway(GatewayConfig{Provider: ProviderOpenAI, APIKey: "k"}, testLogger())
	if g.Model() != DefaultOpenAIModel {
		t.Fatalf("unexpected openai default model: %q", g.Model())
	}
	g = NewGateway(GatewayConfig{Provider: ProviderAnthropic, APIKey: "k"}, testLogger())
	if g.Model() != DefaultAnthropicModel {
		t.Fatalf("unexpected anthropic default model: %q", g.Model())
	}
}

func TestGatewayNon2xxIsGatewayError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	})

	_, err := g.Invoke(context.Background(), Prompt{}, 0.2)
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gatewayErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("unexpected status code: %d", gatewayErr.StatusCode)
	}
}

func TestGatewayEmptyOutput(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := g.Invoke(context.Background(), Prompt{}, 0.2)
	var emptyErr *EmptyOutputError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyOutputError, got %v", err)
	}
}

func TestProbeOutputTextShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"chat completions", `{"choices":[{"message":{"content":"hello"}}]}`, "hello"},
		{"responses api value", `{"output":[{"content":[{"text":{"value":"hi"}}]}]}`, "hi"},
		{"responses api plain text", `{"output":[{"content":[{"text":"hey"}]}]}`, "hey"},
		{"output_text array", `{"output_text":["yo"]}`, "yo"},
		{"output_text scalar", `{"output_text":"sup"}`, "sup"},
		{"non-string at probed path", `{"choices":[{"message":{"content":42}}]}`, ""},
		{"nothing usable", `{"id":"resp_1"}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := probeOutputText([]byte(tc.body)); got != tc.want {
				t.Fatalf("probeOutputText = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProbeOutputTextPrefersEarlierShape(t *testing.T) {
	body := `{"choices":[{"message":{"content":"first"}}],"output_text":"second"}`
	if got := probeOutputText([]byte(body)); got != "first" {
		t.Fatalf("probe order violated, got %q", got)
	}
}
