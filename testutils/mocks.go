package testutils

import (
	"regexp"
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendMessage(to, subject, message string) error {
	args := m.Called(to, subject, message)
	return args.Error(0)
}

type Message struct {
	To      string
	Subject string
	Body    string
}

// RecordingNotifier captures queued messages instead of delivering them.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (n *RecordingNotifier) Send(to, subject, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.messages = append(n.messages, Message{To: to, Subject: subject, Body: message})
	return nil
}

func (n *RecordingNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.messages...)
}

func (n *RecordingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = nil
}

var codePattern = regexp.MustCompile(`\b[0-9]{6}\b`)

// LastCode returns the most recent six digit code sent to the address.
func (n *RecordingNotifier) LastCode(to string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.messages) - 1; i >= 0; i-- {
		if n.messages[i].To != to {
			continue
		}
		if code := codePattern.FindString(n.messages[i].Body); code != "" {
			return code
		}
	}
	return ""
}
