package friends

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendloop/backend/internal/logging"
	"github.com/friendloop/backend/internal/models"
)

// Service implements the relationship engine: request conflict
// resolution, state transitions, and the read-side queries. It keeps no
// state of its own; the storage uniqueness constraint provides all
// synchronization, so concurrent calls from independent actors are safe
// without client-side locks.
type Service struct {
	store  EdgeStore
	mutual Intersector

	// NowFunc and NewID allow tests to pin timestamps and identifiers.
	NowFunc func() time.Time
	NewID   func() string
}

// NewService constructs the engine around an edge store and a mutual
// set intersector.
func NewService(store EdgeStore, mutual Intersector) *Service {
	if store == nil {
		panic("friends: edge store must not be nil")
	}
	return &Service{store: store, mutual: mutual}
}

// RequestOrReopen initiates a friendship request from actor to target,
// or reopens the pair's existing edge. The operation is idempotent for
// the same actor: a retry after a timeout lands on the same pending row.
func (s *Service) RequestOrReopen(ctx context.Context, actor, target string) (models.FriendEdge, error) {
	low, high, err := OrderPair(actor, target)
	if err != nil {
		return models.FriendEdge{}, err
	}

	ctx, span := logging.StartSpan(ctx, "friends.request")
	defer span.End()

	now := s.now()
	candidate := models.FriendEdge{
		ID:          s.newID(),
		UserLow:     low,
		UserHigh:    high,
		Status:      models.EdgePending,
		RequestedBy: actor,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	edge, err := s.store.Upsert(ctx, candidate)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The pair collided with a row the actor cannot see (or one
			// deleted mid-flight). The caller must re-sync.
			logging.FromContext(ctx).Warn("friend request hit invisible edge", "actor", actor)
			return models.FriendEdge{}, ErrAmbiguousRelationship
		}
		return models.FriendEdge{}, fmt.Errorf("request friendship: %w", err)
	}

	return edge, nil
}

// Accept confirms a pending request directed at the actor. Accepting
// your own outgoing request, or a pair not currently pending, fails
// with ErrNotFound.
func (s *Service) Accept(ctx context.Context, actor, target string) (models.FriendEdge, error) {
	low, high, err := OrderPair(actor, target)
	if err != nil {
		return models.FriendEdge{}, err
	}

	ctx, span := logging.StartSpan(ctx, "friends.accept")
	defer span.End()

	edge, err := s.store.Accept(ctx, low, high, actor, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.FriendEdge{}, ErrNotFound
		}
		return models.FriendEdge{}, fmt.Errorf("accept friendship: %w", err)
	}
	return edge, nil
}

// Decline rejects a pending request. Either participant may decline:
// the receiver to reject an incoming request, the requester to cancel
// their own outgoing one. The edge stays declined and can be reopened
// by a later RequestOrReopen.
func (s *Service) Decline(ctx context.Context, actor, target string) (models.FriendEdge, error) {
	low, high, err := OrderPair(actor, target)
	if err != nil {
		return models.FriendEdge{}, err
	}

	ctx, span := logging.StartSpan(ctx, "friends.decline")
	defer span.End()

	edge, err := s.store.Decline(ctx, low, high, actor, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.FriendEdge{}, ErrNotFound
		}
		return models.FriendEdge{}, fmt.Errorf("decline friendship: %w", err)
	}
	return edge, nil
}

// Unfriend deletes an accepted edge. The pair immediately becomes
// eligible for a fresh request cycle. Unfriending a pair that is not
// accepted fails with ErrNotFound; a caller retrying after a timeout
// must treat that as ambiguous success.
func (s *Service) Unfriend(ctx context.Context, actor, target string) error {
	low, high, err := OrderPair(actor, target)
	if err != nil {
		return err
	}

	ctx, span := logging.StartSpan(ctx, "friends.unfriend")
	defer span.End()

	if err := s.store.Delete(ctx, low, high, actor); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("unfriend: %w", err)
	}
	return nil
}

// Befriend creates an edge directly in the accepted state. This is the
// privileged onboarding shortcut used when a signup redeems an invite;
// it bypasses the pending cycle but still honors pair uniqueness, so an
// existing edge in any status fails with ErrEdgeExists.
func (s *Service) Befriend(ctx context.Context, actor, target string) (models.FriendEdge, error) {
	low, high, err := OrderPair(actor, target)
	if err != nil {
		return models.FriendEdge{}, err
	}

	ctx, span := logging.StartSpan(ctx, "friends.befriend")
	defer span.End()

	now := s.now()
	edge := models.FriendEdge{
		ID:          s.newID(),
		UserLow:     low,
		UserHigh:    high,
		Status:      models.EdgeAccepted,
		RequestedBy: actor,
		AcceptedAt:  &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Insert(ctx, edge); err != nil {
		if errors.Is(err, ErrEdgeExists) {
			return models.FriendEdge{}, ErrEdgeExists
		}
		return models.FriendEdge{}, fmt.Errorf("befriend: %w", err)
	}
	return edge, nil
}

// RelationshipStatus loads the pair's edge and projects it for the
// viewer. A missing or invisible edge projects as not-friends.
func (s *Service) RelationshipStatus(ctx context.Context, viewer, other string) (DisplayStatus, error) {
	low, high, err := OrderPair(viewer, other)
	if err != nil {
		return "", err
	}

	edge, err := s.store.Get(ctx, low, high, viewer)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DisplayNotFriends, nil
		}
		return "", fmt.Errorf("load relationship: %w", err)
	}
	return ProjectStatus(&edge, viewer), nil
}

// ListFriends returns the user's accepted friends with the opposite
// participant resolved.
func (s *Service) ListFriends(ctx context.Context, userID string) ([]Friend, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	list, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return list, nil
}

// ListPendingRequests returns the user's pending edges partitioned into
// incoming (requested by the other side) and outgoing (requested by the
// user).
func (s *Service) ListPendingRequests(ctx context.Context, userID string) (PendingRequests, error) {
	if userID == "" {
		return PendingRequests{}, ErrEmptyUserID
	}

	edges, err := s.store.ListByStatus(ctx, userID, models.EdgePending)
	if err != nil {
		return PendingRequests{}, fmt.Errorf("list pending requests: %w", err)
	}

	var reqs PendingRequests
	for _, edge := range edges {
		if edge.RequestedBy == userID {
			reqs.Outgoing = append(reqs.Outgoing, edge)
		} else {
			reqs.Incoming = append(reqs.Incoming, edge)
		}
	}
	return reqs, nil
}

// SearchFriends filters the user's accepted friends by display name.
// The store query matches either side of the pair, so it can return
// edges where only the subject's own name matched; those false
// positives are pruned here by re-checking the resolved other
// participant. This re-filter is a correctness requirement, not an
// optimization.
func (s *Service) SearchFriends(ctx context.Context, userID, query string) ([]Friend, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListFriends(ctx, userID)
	}

	matches, err := s.store.SearchFriends(ctx, userID, query)
	if err != nil {
		return nil, fmt.Errorf("search friends: %w", err)
	}

	needle := strings.ToLower(query)
	filtered := matches[:0]
	for _, f := range matches {
		if strings.Contains(strings.ToLower(f.User.DisplayName), needle) {
			filtered = append(filtered, f)
		}
	}
	return filtered, nil
}

// MutualFriends computes the ids friended by both users. The set
// intersection itself is delegated to the configured Intersector; this
// engine only supplies the two friend lists.
func (s *Service) MutualFriends(ctx context.Context, userID, otherID string) ([]string, error) {
	if _, _, err := OrderPair(userID, otherID); err != nil {
		return nil, err
	}
	if s.mutual == nil {
		return nil, errors.New("friends: no intersector configured")
	}

	mine, err := s.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	theirs, err := s.ListFriends(ctx, otherID)
	if err != nil {
		return nil, err
	}

	ids := func(list []Friend) []string {
		out := make([]string, 0, len(list))
		for _, f := range list {
			out = append(out, f.User.ID)
		}
		return out
	}

	mutual, err := s.mutual.Intersect(ctx, ids(mine), ids(theirs))
	if err != nil {
		return nil, fmt.Errorf("mutual friends: %w", err)
	}
	return mutual, nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
