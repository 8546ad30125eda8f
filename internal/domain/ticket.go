// Package domain holds the core data model for the QueryFlow routing
// engine: inbound messages, classification results produced by the model,
// and the client-visible tickets that tie the two together.
package domain

import "time"

// Channel is the originating medium of a customer message.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelTwitter  Channel = "twitter"
	ChannelEmail    Channel = "email"
	ChannelWeb      Channel = "web"
)

var Channels = []Channel{ChannelWhatsApp, ChannelTwitter, ChannelEmail, ChannelWeb}

func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// Departments lists the routing targets the classification prompt offers.
// The model remains the source of truth for ad hoc future categories, so
// an out-of-list value is a soft violation, never a rejection.
var Departments = []string{
	"Technical Support",
	"Billing",
	"Feedback/Feature Request",
	"HR / Internal",
	"Logistics",
	"Maintenance",
	"General Inquiry",
}

var Sentiments = []string{"positive", "neutral", "negative"}

func KnownDepartment(s string) bool {
	for _, d := range Departments {
		if s == d {
			return true
		}
	}
	return false
}

func KnownSentiment(s string) bool {
	for _, v := range Sentiments {
		if s == v {
			return true
		}
	}
	return false
}

// Message is one inbound customer message. Immutable once submitted.
// Subject is set for email only, SourceHandle for social channels only.
type Message struct {
	UserID       string  `json:"userId"`
	Channel      Channel `json:"channel"`
	Body         string  `json:"message"`
	Subject      string  `json:"subject,omitempty"`
	SourceHandle string  `json:"sourceHandle,omitempty"`
}

// ClassificationResult is the tuple the model produces for one message.
type ClassificationResult struct {
	Department   string   `json:"department"`
	Sentiment    string   `json:"sentiment"`
	Urgency      int      `json:"urgency"`
	Summary      string   `json:"summary"`
	Tags         []string `json:"tags"`
	AutoResponse string   `json:"autoResponse"`
}

// TicketStatus is the lifecycle state of a ticket. Pending and error are
// produced by the pipeline; new, in-progress and resolved are owned by
// operators through the persistence layer.
type TicketStatus string

const (
	StatusPending    TicketStatus = "pending"
	StatusNew        TicketStatus = "new"
	StatusInProgress TicketStatus = "in-progress"
	StatusResolved   TicketStatus = "resolved"
	StatusError      TicketStatus = "error"
)

// OperatorStatuses are the states an operator may move a ticket into.
var OperatorStatuses = []TicketStatus{StatusNew, StatusInProgress, StatusResolved}

func (s TicketStatus) OperatorAssignable() bool {
	for _, known := range OperatorStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Ticket is the client-visible record for one submission. Classification
// stays nil while the pipeline is in flight or after it failed;
// FailureReason is set on error tickets only.
type Ticket struct {
	ID string `json:"id"`
	Message
	Classification *ClassificationResult `json:"classification,omitempty"`
	Status         TicketStatus          `json:"status"`
	AssignedTo     string                `json:"assignedTo,omitempty"`
	FailureReason  string                `json:"failureReason,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// TicketUpdate carries the operator-owned mutations applied through the
// persistence collaborator.
type TicketUpdate struct {
	Status     *TicketStatus `json:"status,omitempty"`
	AssignedTo *string       `json:"assignedTo,omitempty"`
}
