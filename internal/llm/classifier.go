// Package llm implements the classification-response pipeline: prompt
// construction, the model gateway, JSON recovery from free-form model
// output, and normalization into the fixed classification schema.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"queryflow/internal/domain"
)

const (
	// DefaultClassifyTemperature leans deterministic; demo generation
	// runs hot so batches stay varied.
	DefaultClassifyTemperature = 0.2
	DefaultDemoTemperature     = 0.9
)

// Client runs the full pipeline against one configured gateway.
type Client struct {
	gateway      *Gateway
	logger       *logrus.Logger
	classifyTemp float64
	demoTemp     float64
}

func NewClient(gateway *Gateway, logger *logrus.Logger, classifyTemp, demoTemp float64) *Client {
	if classifyTemp == 0 {
		classifyTemp = DefaultClassifyTemperature
	}
	if demoTemp == 0 {
		demoTemp = DefaultDemoTemperature
	}
	return &Client{gateway: gateway, logger: logger, classifyTemp: classifyTemp, demoTemp: demoTemp}
}

// Classify asks the model to categorize one message and normalizes the
// reply. The first recovered JSON document wins; soft contract violations
// are logged, never surfaced as failures.
func (c *Client) Classify(ctx context.Context, msg domain.Message) (domain.ClassificationResult, error) {
	raw, err := c.gateway.Invoke(ctx, BuildClassificationPrompt(msg), c.classifyTemp)
	if err != nil {
		return domain.ClassificationResult{}, err
	}

	docs := ExtractJSONDocuments(raw)
	result, warnings, err := Normalize(docs[0])
	if err != nil {
		return domain.ClassificationResult{}, err
	}
	for _, w := range warnings {
		c.logger.WithFields(logrus.Fields{
			"channel": msg.Channel,
			"model":   c.gateway.Model(),
		}).Warnf("classification soft violation: %s", w)
	}
	return result, nil
}

type demoMessage struct {
	UserID       string `json:"userId"`
	Channel      string `json:"channel"`
	Message      string `json:"message"`
	Subject      string `json:"subject"`
	SourceHandle string `json:"source_handle"`
}

// GenerateDemoBatch asks the model for a small batch of synthetic inbound
// messages. Every recovered document is parsed; the first chunk that fails
// aborts the batch so valid siblings are never silently swallowed.
func (c *Client) GenerateDemoBatch(ctx context.Context) ([]domain.Message, error) {
	seed := fmt.Sprintf("%d-%06x", time.Now().UnixMilli(), rand.Intn(1<<24))
	raw, err := c.gateway.Invoke(ctx, BuildDemoPrompt(seed), c.demoTemp)
	if err != nil {
		return nil, err
	}

	var batch []domain.Message
	for _, doc := range ExtractJSONDocuments(raw) {
		var dm demoMessage
		if err := json.Unmarshal([]byte(doc), &dm); err != nil {
			return nil, &MalformedResponseError{Chunk: doc, Err: err}
		}
		channel := domain.Channel(strings.ToLower(strings.TrimSpace(dm.Channel)))
		if dm.Message == "" || !channel.Valid() {
			c.logger.WithField("channel", dm.Channel).Warn("dropping generated item with unusable channel or empty message")
			continue
		}
		if dm.UserID == "" {
			dm.UserID = fmt.Sprintf("user-%03d", rand.Intn(1000))
		}
		batch = append(batch, domain.Message{
			UserID:       dm.UserID,
			Channel:      channel,
			Body:         dm.Message,
			Subject:      dm.Subject,
			SourceHandle: dm.SourceHandle,
		})
	}
	return batch, nil
}
