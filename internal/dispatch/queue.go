// Package dispatch moves inbound chat messages from the webhook to the flow
// engine through a queue, preserving per-user arrival order: each transition
// depends on the previous state, so a user's messages must never be
// reordered or processed concurrently.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/swandust/clinic-concierge/internal/gateway"
)

type queueClient interface {
	Send(ctx context.Context, groupID, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type messageKind string

const (
	kindText        messageKind = "text"
	kindListReply   messageKind = "list_reply"
	kindButtonReply messageKind = "button_reply"
)

type queuePayload struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Kind        messageKind `json:"kind"`
	Body        string      `json:"body,omitempty"`
	ChoiceID    string      `json:"choice_id,omitempty"`
	ChoiceTitle string      `json:"choice_title,omitempty"`
}

func encodePayload(p queuePayload) (queuePayload, string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	body, err := json.Marshal(p)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("dispatch: encode payload: %w", err)
	}
	return p, string(body), nil
}

func payloadFor(userID string, msg gateway.Inbound) (queuePayload, error) {
	switch m := msg.(type) {
	case gateway.Text:
		return queuePayload{UserID: userID, Kind: kindText, Body: m.Body}, nil
	case gateway.ListReply:
		return queuePayload{UserID: userID, Kind: kindListReply, ChoiceID: m.ID, ChoiceTitle: m.Title}, nil
	case gateway.ButtonReply:
		return queuePayload{UserID: userID, Kind: kindButtonReply, ChoiceID: m.ID, ChoiceTitle: m.Title}, nil
	default:
		return queuePayload{}, fmt.Errorf("dispatch: unsupported inbound kind %T", msg)
	}
}

func (p queuePayload) inbound() (gateway.Inbound, error) {
	switch p.Kind {
	case kindText:
		return gateway.Text{Body: p.Body}, nil
	case kindListReply:
		return gateway.ListReply{ID: p.ChoiceID, Title: p.ChoiceTitle}, nil
	case kindButtonReply:
		return gateway.ButtonReply{ID: p.ChoiceID, Title: p.ChoiceTitle}, nil
	default:
		return nil, fmt.Errorf("dispatch: unknown message kind %q", p.Kind)
	}
}

// Publisher enqueues inbound messages for processing.
type Publisher struct {
	queue queueClient
}

// NewPublisher creates a publisher over the given queue.
func NewPublisher(queue queueClient) *Publisher {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	return &Publisher{queue: queue}
}

// PublishInbound enqueues one inbound message. The user id doubles as the
// ordering group so a FIFO backend keeps that user's messages in sequence.
func (p *Publisher) PublishInbound(ctx context.Context, userID string, msg gateway.Inbound) error {
	payload, err := payloadFor(userID, msg)
	if err != nil {
		return err
	}
	_, body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, userID, body); err != nil {
		return fmt.Errorf("dispatch: send: %w", err)
	}
	return nil
}
