package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/courtside/refexchange/internal/domain"
)

// assignmentTTL bounds how stale the own-assignments snapshot may get before
// the next gap check refetches it. Assignments change rarely.
const assignmentTTL = 10 * time.Minute

// AssignmentService serves the user's own confirmed assignments for the
// minimum-gap filter, with a short-lived in-memory snapshot so browsing does
// not refetch them on every recomputation.
type AssignmentService struct {
	source domain.AssignmentSource
	logger *slog.Logger

	mu        sync.Mutex
	snapshot  []domain.Assignment
	fetchedAt time.Time
}

// NewAssignmentService creates an AssignmentService.
func NewAssignmentService(source domain.AssignmentSource, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{
		source: source,
		logger: logger.With(slog.String("component", "assignment_service")),
	}
}

// Assignments returns the user's confirmed assignments. A fetch failure falls
// back to the last snapshot; with no snapshot at all it returns nil, which
// callers treat as "not loaded" and skip the gap check rather than guessing.
func (s *AssignmentService) Assignments(ctx context.Context) []domain.Assignment {
	s.mu.Lock()
	if s.snapshot != nil && time.Since(s.fetchedAt) < assignmentTTL {
		snapshot := s.snapshot
		s.mu.Unlock()
		return snapshot
	}
	s.mu.Unlock()

	assignments, err := s.source.ListAssignments(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "assignment fetch failed",
			slog.String("error", err.Error()),
		)
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.snapshot
	}
	if assignments == nil {
		// Loaded-but-empty must stay distinguishable from not-loaded.
		assignments = []domain.Assignment{}
	}

	s.mu.Lock()
	s.snapshot = assignments
	s.fetchedAt = time.Now()
	s.mu.Unlock()

	return assignments
}

// Refresh forces a refetch regardless of snapshot age.
func (s *AssignmentService) Refresh(ctx context.Context) error {
	assignments, err := s.source.ListAssignments(ctx)
	if err != nil {
		return fmt.Errorf("assignment_service: refresh: %w", err)
	}
	if assignments == nil {
		assignments = []domain.Assignment{}
	}

	s.mu.Lock()
	s.snapshot = assignments
	s.fetchedAt = time.Now()
	s.mu.Unlock()
	return nil
}
