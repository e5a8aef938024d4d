// request_store.go implements a thread-safe, in-memory request store.
//
// All MCP tool handlers, worker goroutines, and the janitor access requests
// through this store. The mutex ensures safe concurrent access. State is
// ephemeral — it lives only for the duration of the server process.
package main

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestStore holds all tracked requests in memory, protected by a mutex.
// It is the single source of truth for request state: workers and handlers
// never hold a request pointer across a blocking call, they go through the
// store's methods instead. Critical sections are O(1) and never perform I/O.
type RequestStore struct {
	mu       sync.Mutex
	requests map[string]*Request
	logger   *slog.Logger
}

// NewRequestStore creates an empty request store.
func NewRequestStore(logger *slog.Logger) *RequestStore {
	return &RequestStore{
		requests: make(map[string]*Request),
		logger:   logger,
	}
}

// Create inserts a new pending request with a fresh ID and returns the ID.
// IDs are UUIDs; an ID is never reused, even after the record is swept.
func (s *RequestStore) Create(query, format string, include3D bool) string {
	now := time.Now()
	req := &Request{
		ID:        uuid.New().String(),
		Query:     query,
		Format:    format,
		Include3D: include3D,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return req.ID
}

// Get returns a snapshot copy of the request, or false if the ID is unknown.
// Returning a copy means callers can never observe a torn write and never
// race with a worker goroutine mutating the record.
func (s *RequestStore) Get(id string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return Request{}, false
	}
	return *req, true
}

// SetProcessing marks a request as processing. Returns false if the request
// doesn't exist (it may already have been swept) or isn't pending. Called by
// a worker goroutine when it picks the request off the queue.
func (s *RequestStore) SetProcessing(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		s.logger.Warn("request not found in store", "request_id", id)
		return false
	}
	if req.Status != StatusPending {
		return false
	}
	req.Status = StatusProcessing
	req.UpdatedAt = time.Now()
	return true
}

// SetCompleted marks a request as completed and stores the rendered result.
// Only transitions from processing; a terminal request is never overwritten.
// An unknown ID is not a caller error (the janitor may have swept the
// record while the worker was busy), so it is only logged.
func (s *RequestStore) SetCompleted(id string, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		s.logger.Warn("request not found in store after processing", "request_id", id)
		return
	}
	if req.Status != StatusProcessing {
		return
	}
	req.Status = StatusCompleted
	req.Result = result
	req.UpdatedAt = time.Now()
}

// SetFailed marks a request as failed and stores the error message.
// Same transition and unknown-ID rules as SetCompleted.
func (s *RequestStore) SetFailed(id string, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		s.logger.Warn("request not found in store after error", "request_id", id)
		return
	}
	if req.Status != StatusProcessing {
		return
	}
	req.Status = StatusFailed
	req.Error = errMsg
	req.UpdatedAt = time.Now()
}

// SweepExpired removes every request whose last transition is older than the
// retention window and returns the number removed. Eviction is anchored to
// UpdatedAt, but a request stuck in pending is also evicted once its
// CreatedAt exceeds the window, so a stalled queue can't grow memory forever.
func (s *RequestStore) SweepExpired(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, req := range s.requests {
		expired := req.UpdatedAt.Before(cutoff)
		if req.Status == StatusPending && req.CreatedAt.Before(cutoff) {
			expired = true
		}
		if expired {
			s.logger.Info("cleaning up old request", "request_id", id, "status", req.Status)
			delete(s.requests, id)
			removed++
		}
	}
	return removed
}

// Len reports how many requests are currently tracked.
func (s *RequestStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
