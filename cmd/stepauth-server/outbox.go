package main

import (
	"context"
	"sync"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"go.uber.org/zap"
)

// outboxMessage is what a mail relay would send.
type outboxMessage struct {
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Secret  string `json:"secret"`
	Expires string `json:"expires_at"`
}

// outbox is a development Notifier. It keeps the most recent messages in
// memory so they can be read back from /dev/outbox, and logs only the
// recipient and kind.
type outbox struct {
	mu       sync.Mutex
	messages []outboxMessage
	max      int
	logger   *zap.Logger
}

func newOutbox(logger *zap.Logger, max int) *outbox {
	return &outbox{max: max, logger: logger.Named("outbox")}
}

func (o *outbox) SendVerificationToken(_ context.Context, email string, tok stepAuth.VerificationToken) error {
	o.push(outboxMessage{To: email, Kind: string(tok.Purpose), Secret: tok.Value, Expires: tok.ExpiresAt.UTC().Format(time.RFC3339)})
	return nil
}

func (o *outbox) SendOneTimeCode(_ context.Context, email string, c stepAuth.OneTimeCode) error {
	o.push(outboxMessage{To: email, Kind: "one_time_code", Secret: c.Code, Expires: c.ExpiresAt.UTC().Format(time.RFC3339)})
	return nil
}

func (o *outbox) push(m outboxMessage) {
	o.mu.Lock()
	o.messages = append(o.messages, m)
	if len(o.messages) > o.max {
		o.messages = o.messages[len(o.messages)-o.max:]
	}
	o.mu.Unlock()
	o.logger.Info("message queued", zap.String("to", m.To), zap.String("kind", m.Kind))
}

func (o *outbox) list() []outboxMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]outboxMessage(nil), o.messages...)
}
