package models

import "time"

// User represents an account within the friendloop platform.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Password    string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EdgeStatus is the stored lifecycle state of a friendship edge.
type EdgeStatus string

const (
	EdgePending  EdgeStatus = "pending"
	EdgeAccepted EdgeStatus = "accepted"
	EdgeDeclined EdgeStatus = "declined"
)

// FriendEdge is the single persisted record for an unordered user pair.
// UserLow sorts strictly before UserHigh, so both request directions map
// onto the same row. RequestedBy is always one of the two participants
// and tracks who most recently initiated or reopened the request.
type FriendEdge struct {
	ID          string
	UserLow     string
	UserHigh    string
	Status      EdgeStatus
	RequestedBy string
	AcceptedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Other returns the participant opposite the provided user, or an empty
// string when the user is not a party to the edge.
func (e FriendEdge) Other(userID string) string {
	switch userID {
	case e.UserLow:
		return e.UserHigh
	case e.UserHigh:
		return e.UserLow
	default:
		return ""
	}
}

// HasParticipant reports whether the user is one of the edge's two parties.
func (e FriendEdge) HasParticipant(userID string) bool {
	return userID == e.UserLow || userID == e.UserHigh
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
