package testutil

import (
	"context"
	"fmt"
	"sync"
)

// FakeEmailRenderer and FakeEmailSender are controllable doubles for
// email.Renderer/email.Sender. FakeEmailSender records every send so
// tests can assert on what the outbox worker dispatched.
type FakeEmailRenderer struct{}

func NewFakeEmailRenderer() *FakeEmailRenderer {
	return &FakeEmailRenderer{}
}

func (f *FakeEmailRenderer) Render(template string, payload map[string]any) (subject, body string, err error) {
	return fmt.Sprintf("[%s]", template), fmt.Sprintf("%v", payload), nil
}

type SentEmail struct {
	To      string
	Subject string
	Body    string
}

type FakeEmailSender struct {
	mu   sync.Mutex
	Sent []SentEmail

	// FailNext, when set, is returned by the next Send call and cleared.
	FailNext error
}

func NewFakeEmailSender() *FakeEmailSender {
	return &FakeEmailSender{}
}

func (f *FakeEmailSender) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext != nil {
		err := f.FailNext
		f.FailNext = nil
		return err
	}
	f.Sent = append(f.Sent, SentEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *FakeEmailSender) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = nil
}
