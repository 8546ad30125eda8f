package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"queryflow/internal/domain"
)

func chatReply(t *testing.T, content string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, _ *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
		w.Write(body)
	}
}

func TestClassifyEndToEnd(t *testing.T) {
	reply := "```json\n" + `{
		"department": "Billing",
		"sentiment": "negative",
		"urgency": 7,
		"summary": "Customer requests a refund for a duplicate charge.",
		"tags": ["Billing", "duplicate", " "],
		"auto_response": "Sorry about that, we are looking into the duplicate charge now."
	}` + "\n```"
	g := newTestGateway(t, chatReply(t, reply))
	client := NewClient(g, testLogger(), 0, 0)

	result, err := client.Classify(context.Background(), domain.Message{
		UserID:  "user-001",
		Channel: domain.ChannelEmail,
		Body:    "I was charged twice for my subscription, please refund me.",
		Subject: "Refund request",
	})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Department != "Billing" {
		t.Fatalf("unexpected department: %q", result.Department)
	}
	if result.Urgency != 5 {
		t.Fatalf("urgency must clamp to 5, got %d", result.Urgency)
	}
	if len(result.Tags) != 2 || result.Tags[0] != "billing" || result.Tags[1] != "duplicate" {
		t.Fatalf("unexpected tags: %v", result.Tags)
	}
}

func TestClassifyFirstDocumentWins(t *testing.T) {
	g := newTestGateway(t, chatReply(t, `{"department":"Billing"}{"department":"Logistics"}`))
	client := NewClient(g, testLogger(), 0, 0)

	result, err := client.Classify(context.Background(), domain.Message{Channel: domain.ChannelWeb, Body: "hi"})
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if result.Department != "Billing" {
		t.Fatalf("first document must win, got %q", result.Department)
	}
}

func TestClassifyProseReplyIsMalformed(t *testing.T) {
	g := newTestGateway(t, chatReply(t, "I am unable to classify this message."))
	client := NewClient(g, testLogger(), 0, 0)

	_, err := client.Classify(context.Background(), domain.Message{Channel: domain.ChannelWeb, Body: "hi"})
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestClassifyPropagatesGatewayError(t *testing.T) {
	g := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client := NewClient(g, testLogger(), 0, 0)

	_, err := client.Classify(context.Background(), domain.Message{Channel: domain.ChannelWeb, Body: "hi"})
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
}

func TestGenerateDemoBatch(t *testing.T) {
	reply := `[
		{"userId":"user-001","channel":"twitter","message":"My dashboard is down!","source_handle":"@angry_dev"},
		{"channel":"EMAIL","message":"Invoice question","subject":"Billing"},
		{"channel":"carrier-pigeon","message":"ignored"},
		{"channel":"web","message":""}
	]`
	g := newTestGateway(t, chatReply(t, reply))
	client := NewClient(g, testLogger(), 0, 0)

	batch, err := client.GenerateDemoBatch(context.Background())
	if err != nil {
		t.Fatalf("GenerateDemoBatch returned error: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 usable messages, got %d", len(batch))
	}
	if batch[0].Channel != domain.ChannelTwitter || batch[0].SourceHandle != "@angry_dev" {
		t.Fatalf("unexpected first message: %+v", batch[0])
	}
	if batch[1].Channel != domain.ChannelEmail {
		t.Fatalf("channel must be lowercased, got %q", batch[1].Channel)
	}
	if batch[1].UserID == "" {
		t.Fatal("missing userId must be defaulted")
	}
}

func TestGenerateDemoBatchMalformedItemAborts(t *testing.T) {
	g := newTestGateway(t, chatReply(t, `{"channel":"web","message":"ok"}{"channel": broken}`))
	client := NewClient(g, testLogger(), 0, 0)

	_, err := client.GenerateDemoBatch(context.Background())
	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
}

func TestNewClientDefaultsTemperatures(t *testing.T) {
	g := NewGateway(GatewayConfig{Provider: ProviderOpenAI, APIKey: "k"}, testLogger())
	client := NewClient(g, testLogger(), 0, 0)
	if client.classifyTemp != DefaultClassifyTemperature {
		t.Fatalf("unexpected classify temperature: %f", client.classifyTemp)
	}
	if client.demoTemp != DefaultDemoTemperature {
		t.Fatalf("unexpected demo temperature: %f", client.demoTemp)
	}
}
