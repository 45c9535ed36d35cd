package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrFileNotFound is returned when a file_id cannot be fetched.
var ErrFileNotFound = errors.New("telegram file not found")

// Client is the subset of the bot API the pipeline uses.
type Client interface {
	// GetFileBytes downloads the file behind a webhook document's file_id.
	GetFileBytes(ctx context.Context, fileID string) ([]byte, error)

	// SendResultNotification delivers a feedback message for a submission
	// and returns the external message ID. Must be idempotent by
	// submission: a redelivery after reclaim sends at most one message.
	SendResultNotification(ctx context.Context, submissionID, message string) (string, error)
}

// StubClient is an in-process Client for offline runs and tests.
type StubClient struct {
	mu            sync.Mutex
	files         map[string][]byte
	notifications map[string]string

	// SendErr, when set, is returned from every SendResultNotification call.
	SendErr error
}

// NewStubClient returns an empty stub.
func NewStubClient() *StubClient {
	return &StubClient{
		files:         make(map[string][]byte),
		notifications: make(map[string]string),
	}
}

// AddFile registers a downloadable file.
func (s *StubClient) AddFile(fileID string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fileID] = payload
}

// Notifications returns a copy of all messages sent so far, by submission.
func (s *StubClient) Notifications() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.notifications))
	for k, v := range s.notifications {
		out[k] = v
	}
	return out
}

// GetFileBytes implements Client.
func (s *StubClient) GetFileBytes(_ context.Context, fileID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.files[fileID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	return payload, nil
}

// SendResultNotification implements Client. Idempotent by submission ID.
func (s *StubClient) SendResultNotification(_ context.Context, submissionID, message string) (string, error) {
	if s.SendErr != nil {
		return "", s.SendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, sent := s.notifications[submissionID]; !sent {
		s.notifications[submissionID] = message
	}
	return "msg:" + submissionID, nil
}
