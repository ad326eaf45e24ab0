package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemorySubmissionStore keeps submissions in process memory. Fingerprint
// uniqueness is enforced under the store mutex, which makes it a valid store
// for single-process deployments and tests.
type MemorySubmissionStore struct {
	mu            sync.RWMutex
	byID          map[string]Submission
	byFingerprint map[string]string
}

func NewMemorySubmissionStore() *MemorySubmissionStore {
	return &MemorySubmissionStore{
		byID:          map[string]Submission{},
		byFingerprint: map[string]string{},
	}
}

func (s *MemorySubmissionStore) Insert(_ context.Context, record Submission) (Submission, error) {
	if s == nil {
		return Submission{}, fmt.Errorf("core: memory submission store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byFingerprint[record.Fingerprint]; exists {
		return Submission{}, ErrFingerprintConflict
	}
	record.Attribution = cloneAttribution(record.Attribution)
	s.byID[record.ID] = record
	s.byFingerprint[record.Fingerprint] = record.ID
	return record, nil
}

func (s *MemorySubmissionStore) GetByFingerprint(_ context.Context, fingerprint string) (Submission, error) {
	if s == nil {
		return Submission{}, ErrSubmissionNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byFingerprint[fingerprint]
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	return s.byID[id], nil
}

func (s *MemorySubmissionStore) GetByID(_ context.Context, id string) (Submission, error) {
	if s == nil {
		return Submission{}, ErrSubmissionNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byID[strings.TrimSpace(id)]
	if !ok {
		return Submission{}, ErrSubmissionNotFound
	}
	return record, nil
}

func (s *MemorySubmissionStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// StaticScopeDirectory serves scopes from a fixed in-memory table.
type StaticScopeDirectory struct {
	mu     sync.RWMutex
	scopes map[string]Scope
}

func NewStaticScopeDirectory(scopes ...Scope) *StaticScopeDirectory {
	directory := &StaticScopeDirectory{scopes: map[string]Scope{}}
	for _, scope := range scopes {
		directory.Put(scope)
	}
	return directory
}

func (d *StaticScopeDirectory) Put(scope Scope) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	scope.ID = strings.TrimSpace(scope.ID)
	scope.Targets = append([]DeliveryTarget(nil), scope.Targets...)
	d.scopes[scope.ID] = scope
}

func (d *StaticScopeDirectory) GetScope(_ context.Context, scopeID string) (Scope, error) {
	if d == nil {
		return Scope{}, ErrScopeNotFound
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	scope, ok := d.scopes[strings.TrimSpace(scopeID)]
	if !ok {
		return Scope{}, ErrScopeNotFound
	}
	scope.Targets = append([]DeliveryTarget(nil), scope.Targets...)
	return scope, nil
}

var (
	_ SubmissionStore = (*MemorySubmissionStore)(nil)
	_ ScopeDirectory  = (*StaticScopeDirectory)(nil)
)
