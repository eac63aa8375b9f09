package handlers

import (
	"context"
	"io"
	"time"

	"github.com/friendloop/backend/internal/friends"
	"github.com/friendloop/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth and
// profile handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string, now time.Time) error
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
}

// FriendService exposes the relationship engine operations required by the
// friend handlers.
type FriendService interface {
	RequestOrReopen(ctx context.Context, actor, target string) (models.FriendEdge, error)
	Accept(ctx context.Context, actor, target string) (models.FriendEdge, error)
	Decline(ctx context.Context, actor, target string) (models.FriendEdge, error)
	Unfriend(ctx context.Context, actor, target string) error
	Befriend(ctx context.Context, actor, target string) (models.FriendEdge, error)
	RelationshipStatus(ctx context.Context, viewer, other string) (friends.DisplayStatus, error)
	ListFriends(ctx context.Context, userID string) ([]friends.Friend, error)
	ListPendingRequests(ctx context.Context, userID string) (friends.PendingRequests, error)
	SearchFriends(ctx context.Context, userID, query string) ([]friends.Friend, error)
	MutualFriends(ctx context.Context, userID, otherID string) ([]string, error)
}

// AvatarStorage persists uploaded avatar images and returns their public
// locations.
type AvatarStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}
