package dispatch

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/swandust/clinic-concierge/internal/flow"
	"github.com/swandust/clinic-concierge/internal/gateway"
	"github.com/swandust/clinic-concierge/pkg/logging"
)

// orderRecorder records the per-user sequence of handled messages.
type orderRecorder struct {
	mu     sync.Mutex
	byUser map[string][]string
	inUse  map[string]bool
	racy   bool
}

func newOrderRecorder() *orderRecorder {
	return &orderRecorder{byUser: map[string][]string{}, inUse: map[string]bool{}}
}

func (r *orderRecorder) HandleMessage(_ context.Context, userID string, msg gateway.Inbound) (flow.Result, error) {
	r.mu.Lock()
	if r.inUse[userID] {
		r.racy = true
	}
	r.inUse[userID] = true
	r.mu.Unlock()

	time.Sleep(time.Millisecond) // widen the race window

	body := ""
	if t, ok := msg.(gateway.Text); ok {
		body = t.Body
	}

	r.mu.Lock()
	r.byUser[userID] = append(r.byUser[userID], body)
	r.inUse[userID] = false
	r.mu.Unlock()
	return flow.Result{Handled: true}, nil
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter("error", io.Discard)
}

func TestPublishRoundTrip(t *testing.T) {
	queue := NewMemoryQueue(8)
	pub := NewPublisher(queue)

	if err := pub.PublishInbound(context.Background(), "u1", gateway.ListReply{ID: "doctor:3", Title: "Dr. Amara"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := queue.Receive(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	assert.Contains(t, msgs[0].Body, `"list_reply"`)
	assert.Contains(t, msgs[0].Body, `"doctor:3"`)
	assert.Contains(t, msgs[0].Body, `"u1"`)
}

func TestWorkerPreservesSingleUserOrder(t *testing.T) {
	queue := NewMemoryQueue(64)
	pub := NewPublisher(queue)
	rec := newOrderRecorder()

	const n = 20
	for i := 0; i < n; i++ {
		if err := pub.PublishInbound(context.Background(), "u1", gateway.Text{Body: fmt.Sprintf("msg-%02d", i)}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(rec, queue, testLogger(), WithWorkerCount(1), WithReceiveWaitSeconds(0))
	w.Start(ctx)

	deadline := time.After(5 * time.Second)
	for {
		rec.mu.Lock()
		done := len(rec.byUser["u1"]) == n
		rec.mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for messages")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	w.Wait()

	for i, body := range rec.byUser["u1"] {
		assert.Equal(t, fmt.Sprintf("msg-%02d", i), body, "message %d out of order", i)
	}
}

func TestWorkerSerializesPerUser(t *testing.T) {
	queue := NewMemoryQueue(128)
	pub := NewPublisher(queue)
	rec := newOrderRecorder()

	users := []string{"u1", "u2", "u3"}
	const perUser = 10
	for i := 0; i < perUser; i++ {
		for _, u := range users {
			if err := pub.PublishInbound(context.Background(), u, gateway.Text{Body: fmt.Sprintf("m%d", i)}); err != nil {
				t.Fatalf("publish: %v", err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(rec, queue, testLogger(), WithWorkerCount(4), WithReceiveWaitSeconds(0), WithReceiveBatchSize(1))
	w.Start(ctx)

	deadline := time.After(5 * time.Second)
	for {
		rec.mu.Lock()
		total := 0
		for _, msgs := range rec.byUser {
			total += len(msgs)
		}
		done := total == perUser*len(users)
		rec.mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for messages")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	w.Wait()

	assert.False(t, rec.racy, "two messages for one user handled concurrently")
}

func TestWorkerDropsUndecodableMessages(t *testing.T) {
	queue := NewMemoryQueue(8)
	if err := queue.Send(context.Background(), "u1", "{not json"); err != nil {
		t.Fatalf("send: %v", err)
	}
	rec := newOrderRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(rec, queue, testLogger(), WithWorkerCount(1), WithReceiveWaitSeconds(0))
	w.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	w.Wait()

	assert.Empty(t, rec.byUser, "undecodable message must not reach the handler")
}

func TestPayloadRoundTrip(t *testing.T) {
	for _, msg := range []gateway.Inbound{
		gateway.Text{Body: "2pm tomorrow"},
		gateway.ListReply{ID: "date:today", Title: "Today"},
		gateway.ButtonReply{ID: "confirm", Title: "Confirm"},
	} {
		payload, err := payloadFor("u9", msg)
		if err != nil {
			t.Fatalf("payload for %T: %v", msg, err)
		}
		back, err := payload.inbound()
		if err != nil {
			t.Fatalf("decode %T: %v", msg, err)
		}
		assert.Equal(t, msg, back)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	p := queuePayload{UserID: "u1", Kind: "carrier_pigeon"}
	_, err := p.inbound()
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
