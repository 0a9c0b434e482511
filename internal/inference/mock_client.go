package inference

import (
	"context"
	"sync"
	"time"
)

// MockClient is a scripted Client for tests
type MockClient struct {
	mu       sync.Mutex
	Requests []ChatRequest

	// Deltas are emitted in order, Delay apart
	Deltas []string
	Delay  time.Duration
	// StreamErr ends the stream with an error after all deltas
	StreamErr error
	// OpenErr fails StreamChat itself
	OpenErr error
	// Hang keeps the stream open after the deltas until the context ends
	Hang    bool
	PingErr error

	// Started receives the stream context once StreamChat succeeds
	Started chan context.Context
}

func (m *MockClient) StreamChat(ctx context.Context, req ChatRequest) (TokenStream, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	if m.Started != nil {
		select {
		case m.Started <- ctx:
		default:
		}
	}
	return &mockStream{ctx: ctx, m: m}, nil
}

func (m *MockClient) Ping(context.Context) error {
	return m.PingErr
}

func (m *MockClient) Model() string {
	return "mock-model"
}

// LastRequest returns the most recent request or nil
func (m *MockClient) LastRequest() *ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil
	}
	r := m.Requests[len(m.Requests)-1]
	return &r
}

type mockStream struct {
	ctx   context.Context
	m     *MockClient
	i     int
	delta string
	err   error
}

func (s *mockStream) Next() bool {
	if s.err != nil {
		return false
	}
	if s.i < len(s.m.Deltas) {
		if s.m.Delay > 0 {
			select {
			case <-time.After(s.m.Delay):
			case <-s.ctx.Done():
				s.err = s.ctx.Err()
				return false
			}
		}
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return false
		}
		s.delta = s.m.Deltas[s.i]
		s.i++
		return true
	}
	if s.m.Hang {
		<-s.ctx.Done()
		s.err = s.ctx.Err()
		return false
	}
	s.err = s.m.StreamErr
	return false
}

func (s *mockStream) Delta() string { return s.delta }
func (s *mockStream) Err() error    { return s.err }
func (s *mockStream) Close() error  { return nil }
