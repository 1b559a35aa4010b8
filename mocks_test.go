package accounts_test

import (
	"context"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockStatusStore implements accounts.StatusStore
type MockStatusStore struct {
	mock.Mock
}

func (m *MockStatusStore) UpdateStatus(ctx context.Context, id uuid.UUID, status accounts.AccountStatus, opts ...accounts.StatusUpdateOption) (*accounts.Account, error) {
	args := m.Called(ctx, id, status, opts)
	if acc, ok := args.Get(0).(*accounts.Account); ok {
		return acc, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockActivitySink implements accounts.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// recordingSink keeps every event it receives
type recordingSink struct {
	events []accounts.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) ofType(t accounts.ActivityEventType) []accounts.ActivityEvent {
	var out []accounts.ActivityEvent
	for _, e := range s.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}
