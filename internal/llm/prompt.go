package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"queryflow/internal/domain"
)

// Prompt is one instruction+input pair for a single model invocation.
type Prompt struct {
	Instructions string
	Input        string
}

const classificationContract = `You are an AI assistant that categorizes customer support queries.
Given the JSON payload describing the user's channel, subject (optional) and message body, respond with a JSON object:
{
  "department": one of [%s],
  "sentiment": one of [%s],
  "urgency": integer from 1 (low) to 5 (critical),
  "summary": single sentence summary of the issue,
  "tags": array of 1-4 lowercase keywords,
  "auto_response": short reassuring response (<= 180 characters)
}
Return ONLY valid JSON (no Markdown code fences).`

const demoContract = `You are simulating customer support traffic across multiple teams.
Return ONLY JSON shaped like an array of 2 to 3 items, each item:
{
  "userId": "user-00#",
  "channel": "<whatsapp|twitter|email|web>",
  "message": "...",
  "subject": "<optional>",
  "source_handle": "<optional social handle>"
}
Guidelines:
- Randomly select a channel each time; do NOT repeat the same channel twice in a row.
- Vary topics: cycle between billing, shipping/logistics, access/security incidents, HR/internal issues, product feedback, outages, maintenance requests, general inquiries.
- Keep each message short (under 220 chars) with a distinct voice and concrete context (region, team size, subscription tier).
- When channel is "twitter", include "source_handle".
- When channel is "email", include "subject".
- For whatsapp/web, omit subject and handle.
- Alternate urgency implicitly via wording (panicked vs casual).
- Return raw JSON (no Markdown code fences).`

type classificationPayload struct {
	Channel      string `json:"channel"`
	Message      string `json:"message"`
	Subject      string `json:"subject,omitempty"`
	SourceHandle string `json:"source_handle,omitempty"`
}

// BuildClassificationPrompt renders the fixed output contract plus the
// message payload as JSON. Pure transform, no side effects.
func BuildClassificationPrompt(msg domain.Message) Prompt {
	input, _ := json.Marshal(classificationPayload{
		Channel:      string(msg.Channel),
		Message:      msg.Body,
		Subject:      msg.Subject,
		SourceHandle: msg.SourceHandle,
	})
	return Prompt{
		Instructions: fmt.Sprintf(classificationContract, quotedList(domain.Departments), quotedList(domain.Sentiments)),
		Input:        string(input),
	}
}

// BuildDemoPrompt embeds the seed in the input so repeated generations are
// not served an identical cached completion.
func BuildDemoPrompt(seed string) Prompt {
	input, _ := json.Marshal(map[string]string{"seed": seed})
	return Prompt{Instructions: demoContract, Input: string(input)}
}

func quotedList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ",")
}
