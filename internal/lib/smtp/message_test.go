package smtp

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDialer struct {
	mock.Mock
}

func (m *MockDialer) Dial() (Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Client), args.Error(1)
}

func (m *MockDialer) Envelope() string {
	return m.Called().String(0)
}

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Mail(from string) error { return m.Called(from).Error(0) }
func (m *MockClient) Rcpt(to string) error   { return m.Called(to).Error(0) }
func (m *MockClient) Quit() error            { return m.Called().Error(0) }
func (m *MockClient) Close() error           { return m.Called().Error(0) }
func (m *MockClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func TestMessage_Bytes(t *testing.T) {
	msg := Message{
		From:    "MemorySphere <noreply@memorysphere.app>",
		To:      []string{"user@example.com"},
		Subject: "Your data will be deleted in 3 days",
		HTML:    "<p>" + strings.Repeat("x", 200) + "</p>",
	}

	raw := string(msg.Bytes(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	assert.Contains(t, raw, "From: MemorySphere <noreply@memorysphere.app>\r\n")
	assert.Contains(t, raw, "To: user@example.com\r\n")
	assert.Contains(t, raw, "Content-Type: text/html")

	parts := strings.SplitN(raw, "\r\n\r\n", 2)
	require.Len(t, parts, 2)
	for _, line := range strings.Split(strings.TrimSpace(parts[1]), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(strings.TrimSpace(parts[1]), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, msg.HTML, string(decoded))
}

func TestSend(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := Message{From: "noreply@memorysphere.app", To: []string{"user@example.com"}, Subject: "hi", HTML: "<p>hi</p>"}

	t.Run("success", func(t *testing.T) {
		transport := new(MockDialer)
		client := new(MockClient)
		w := &bufferCloser{}

		transport.On("Dial").Return(client, nil).Once()
		transport.On("Envelope").Return("noreply@memorysphere.app")
		client.On("Mail", "noreply@memorysphere.app").Return(nil).Once()
		client.On("Rcpt", "user@example.com").Return(nil).Once()
		client.On("Data").Return(w, nil).Once()
		client.On("Quit").Return(nil).Once()
		client.On("Close").Return(nil).Once()

		err := Send(transport, msg, now)
		require.NoError(t, err)
		assert.True(t, w.closed)
		assert.Contains(t, w.String(), "Subject: hi")
		transport.AssertExpectations(t)
		client.AssertExpectations(t)
	})

	t.Run("connect error", func(t *testing.T) {
		transport := new(MockDialer)
		transport.On("Dial").Return(nil, errors.New("dial failed")).Once()

		err := Send(transport, msg, now)
		assert.ErrorContains(t, err, "dial failed")
	})

	t.Run("rcpt rejected", func(t *testing.T) {
		transport := new(MockDialer)
		client := new(MockClient)

		transport.On("Dial").Return(client, nil).Once()
		transport.On("Envelope").Return("noreply@memorysphere.app")
		client.On("Mail", "noreply@memorysphere.app").Return(nil).Once()
		client.On("Rcpt", "user@example.com").Return(errors.New("550 mailbox unavailable")).Once()
		client.On("Close").Return(nil).Once()

		err := Send(transport, msg, now)
		assert.ErrorContains(t, err, "550")
		client.AssertNotCalled(t, "Data")
	})
}
