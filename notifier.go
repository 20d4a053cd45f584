package stepAuth

import "context"

// Notifier delivers verification tokens and one-time codes to the account
// holder, typically by email. Delivery failures are logged by the engine and
// do not fail the calling operation.
type Notifier interface {
	SendVerificationToken(ctx context.Context, email string, token VerificationToken) error
	SendOneTimeCode(ctx context.Context, email string, code OneTimeCode) error
}

// NopNotifier discards every message.
type NopNotifier struct{}

func (NopNotifier) SendVerificationToken(context.Context, string, VerificationToken) error {
	return nil
}

func (NopNotifier) SendOneTimeCode(context.Context, string, OneTimeCode) error { return nil }
