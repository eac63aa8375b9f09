package friends

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/friendloop/backend/internal/models"
)

type pairKey struct {
	low  string
	high string
}

// NewInMemoryEdgeStore returns an EdgeStore backed by in-memory maps.
// It is used by tests and local development. Lacking a native upsert,
// it implements Upsert as the emulated two-step protocol: an insert
// attempt, then a conditional update when the insert collides with the
// pair's existing row.
func NewInMemoryEdgeStore() *InMemoryEdgeStore {
	return &InMemoryEdgeStore{
		edges:  make(map[pairKey]models.FriendEdge),
		users:  make(map[string]models.User),
		hidden: make(map[pairKey]bool),
	}
}

// InMemoryEdgeStore implements EdgeStore without external storage.
type InMemoryEdgeStore struct {
	mu     sync.RWMutex
	edges  map[pairKey]models.FriendEdge
	users  map[string]models.User
	hidden map[pairKey]bool
}

// AddUser seeds a user profile so ListFriends and SearchFriends can
// resolve the other participant.
func (s *InMemoryEdgeStore) AddUser(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// Hide marks the pair's row as invisible to conditional operations
// while still colliding on insert, mimicking row-level visibility
// rules. Useful for tests exercising the ambiguous path.
func (s *InMemoryEdgeStore) Hide(low, high string) {
	s.mu.Lock()
	s.hidden[pairKey{low: low, high: high}] = true
	s.mu.Unlock()
}

// Len reports the number of stored edges.
func (s *InMemoryEdgeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Upsert inserts the candidate, falling back to a conditional reopen of
// the existing row when the insert collides.
func (s *InMemoryEdgeStore) Upsert(_ context.Context, candidate models.FriendEdge) (models.FriendEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertLocked(candidate); err == nil {
		return candidate, nil
	}

	// Insert collided: conditionally update the existing row. The row
	// must be visible to the requester or the fallback matches nothing.
	key := pairKey{low: candidate.UserLow, high: candidate.UserHigh}
	existing, ok := s.edges[key]
	if !ok || s.hidden[key] || !existing.HasParticipant(candidate.RequestedBy) {
		return models.FriendEdge{}, ErrNotFound
	}

	existing.Status = models.EdgePending
	existing.RequestedBy = candidate.RequestedBy
	existing.AcceptedAt = nil
	existing.UpdatedAt = candidate.UpdatedAt
	s.edges[key] = existing
	return existing, nil
}

// Insert stores the edge as given, failing when the pair already has one.
func (s *InMemoryEdgeStore) Insert(_ context.Context, edge models.FriendEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(edge)
}

func (s *InMemoryEdgeStore) insertLocked(edge models.FriendEdge) error {
	key := pairKey{low: edge.UserLow, high: edge.UserHigh}
	if _, ok := s.edges[key]; ok {
		return ErrEdgeExists
	}
	s.edges[key] = edge
	return nil
}

// Accept flips a pending edge to accepted when the actor is the
// non-requesting participant.
func (s *InMemoryEdgeStore) Accept(_ context.Context, low, high, actor string, now time.Time) (models.FriendEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{low: low, high: high}
	edge, ok := s.visibleLocked(key, actor)
	if !ok || edge.Status != models.EdgePending || edge.RequestedBy == actor {
		return models.FriendEdge{}, ErrNotFound
	}

	edge.Status = models.EdgeAccepted
	acceptedAt := now
	edge.AcceptedAt = &acceptedAt
	edge.UpdatedAt = now
	s.edges[key] = edge
	return edge, nil
}

// Decline flips a pending edge to declined for either participant.
func (s *InMemoryEdgeStore) Decline(_ context.Context, low, high, actor string, now time.Time) (models.FriendEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{low: low, high: high}
	edge, ok := s.visibleLocked(key, actor)
	if !ok || edge.Status != models.EdgePending {
		return models.FriendEdge{}, ErrNotFound
	}

	edge.Status = models.EdgeDeclined
	edge.UpdatedAt = now
	s.edges[key] = edge
	return edge, nil
}

// Delete removes an accepted edge.
func (s *InMemoryEdgeStore) Delete(_ context.Context, low, high, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{low: low, high: high}
	edge, ok := s.visibleLocked(key, actor)
	if !ok || edge.Status != models.EdgeAccepted {
		return ErrNotFound
	}

	delete(s.edges, key)
	delete(s.hidden, key)
	return nil
}

// Get loads the pair's edge as seen by the viewer.
func (s *InMemoryEdgeStore) Get(_ context.Context, low, high, viewer string) (models.FriendEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.visibleLocked(pairKey{low: low, high: high}, viewer)
	if !ok {
		return models.FriendEdge{}, ErrNotFound
	}
	return edge, nil
}

// ListByStatus returns the user's edges with the given status.
func (s *InMemoryEdgeStore) ListByStatus(_ context.Context, userID string, status models.EdgeStatus) ([]models.FriendEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.FriendEdge
	for key, edge := range s.edges {
		if s.hidden[key] {
			continue
		}
		if edge.Status == status && edge.HasParticipant(userID) {
			out = append(out, edge)
		}
	}
	return out, nil
}

// ListFriends resolves accepted edges to the opposite participants.
func (s *InMemoryEdgeStore) ListFriends(ctx context.Context, userID string) ([]Friend, error) {
	edges, err := s.ListByStatus(ctx, userID, models.EdgeAccepted)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Friend
	for _, edge := range edges {
		out = append(out, Friend{User: s.users[edge.Other(userID)], Edge: edge})
	}
	return out, nil
}

// SearchFriends mirrors the lossy OR-join of the SQL store: an edge
// matches when either participant's display name contains the query,
// so results can include rows where only the subject's own name
// matched. The service layer re-filters.
func (s *InMemoryEdgeStore) SearchFriends(ctx context.Context, userID, query string) ([]Friend, error) {
	all, err := s.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	self := s.users[userID]
	s.mu.RUnlock()

	needle := strings.ToLower(query)
	var out []Friend
	for _, f := range all {
		otherMatch := strings.Contains(strings.ToLower(f.User.DisplayName), needle)
		selfMatch := strings.Contains(strings.ToLower(self.DisplayName), needle)
		if otherMatch || selfMatch {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *InMemoryEdgeStore) visibleLocked(key pairKey, viewer string) (models.FriendEdge, bool) {
	edge, ok := s.edges[key]
	if !ok || s.hidden[key] || !edge.HasParticipant(viewer) {
		return models.FriendEdge{}, false
	}
	return edge, true
}

var _ EdgeStore = (*InMemoryEdgeStore)(nil)
