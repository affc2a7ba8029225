package worker

import (
	"context"
	"testing"

	"kalori/internal/amqp"
)

type stubInvalidator struct {
	users []string
}

func (s *stubInvalidator) Invalidate(userID string) {
	s.users = append(s.users, userID)
}

// stubConsumer replays canned messages through the handler.
type stubConsumer struct {
	msgs []*amqp.LedgerChangedMessage
}

func (s *stubConsumer) ConsumeLedgerChanged(ctx context.Context, handler func(*amqp.LedgerChangedMessage) error) error {
	for _, msg := range s.msgs {
		if err := handler(msg); err != nil {
			return err
		}
	}
	return nil
}

func TestRunInvalidatesUsersFromMessages(t *testing.T) {
	consumer := &stubConsumer{msgs: []*amqp.LedgerChangedMessage{
		amqp.NewLedgerChangedMessage("u1", 3, "other-proc"),
		amqp.NewLedgerChangedMessage("u2", 1, "other-proc"),
	}}
	inv := &stubInvalidator{}

	w := NewInvalidationWorker(consumer, inv)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(inv.users) != 2 || inv.users[0] != "u1" || inv.users[1] != "u2" {
		t.Fatalf("unexpected invalidations: %v", inv.users)
	}
}
