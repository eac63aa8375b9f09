package friends

import (
	"context"
	"time"

	"github.com/friendloop/backend/internal/models"
)

// Friend pairs the resolved other participant with the edge connecting
// them to the subject user.
type Friend struct {
	User models.User
	Edge models.FriendEdge
}

// PendingRequests partitions a user's pending edges by direction.
type PendingRequests struct {
	Incoming []models.FriendEdge
	Outgoing []models.FriendEdge
}

// EdgeStore is the persistence boundary for friendship edges. The store
// enforces a uniqueness constraint on (user_low, user_high); that
// constraint is the engine's only concurrency-control primitive. Every
// conditional operation carries a party-membership predicate, so a row
// the actor cannot see behaves exactly like a missing row and surfaces
// as ErrNotFound.
type EdgeStore interface {
	// Upsert creates the pending edge, or reopens the existing edge for
	// the same pair: status back to pending, requested_by overwritten
	// with the candidate's requester, accepted_at cleared. It returns
	// the stored row. Implementations with a native atomic upsert issue
	// a single statement; others emulate it as an insert attempt with a
	// conditional-update fallback on uniqueness collision. A collision
	// with a row invisible to the requester returns ErrNotFound.
	Upsert(ctx context.Context, candidate models.FriendEdge) (models.FriendEdge, error)

	// Insert stores the edge exactly as given and fails with
	// ErrEdgeExists when any edge for the pair is present. It backs the
	// privileged onboarding path that creates edges directly accepted.
	Insert(ctx context.Context, edge models.FriendEdge) error

	// Accept flips a pending edge to accepted. The update matches only
	// when the edge is pending, the actor is a participant, and the
	// actor is not the requester. Zero matched rows is ErrNotFound.
	Accept(ctx context.Context, low, high, actor string, now time.Time) (models.FriendEdge, error)

	// Decline flips a pending edge to declined for either participant.
	Decline(ctx context.Context, low, high, actor string, now time.Time) (models.FriendEdge, error)

	// Delete removes an accepted edge entirely. Only participants may
	// delete, and only from the accepted state.
	Delete(ctx context.Context, low, high, actor string) error

	// Get loads the pair's edge as seen by the viewer.
	Get(ctx context.Context, low, high, viewer string) (models.FriendEdge, error)

	// ListByStatus returns every edge with the given status in which the
	// user participates.
	ListByStatus(ctx context.Context, userID string, status models.EdgeStatus) ([]models.FriendEdge, error)

	// ListFriends resolves the user's accepted edges to the opposite
	// participants.
	ListFriends(ctx context.Context, userID string) ([]Friend, error)

	// SearchFriends narrows accepted edges by a case-insensitive display
	// name match. The underlying query matches either side of the pair,
	// so results may include rows where only the subject's own name
	// matched; callers re-filter on the resolved other participant.
	SearchFriends(ctx context.Context, userID, query string) ([]Friend, error)
}

// Intersector computes the intersection of two friend-id sets. Mutual
// friend computation is delegated to this external capability; the
// engine only supplies the two friend lists.
type Intersector interface {
	Intersect(ctx context.Context, a, b []string) ([]string, error)
}
