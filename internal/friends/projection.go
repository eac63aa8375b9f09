package friends

import "github.com/friendloop/backend/internal/models"

// DisplayStatus is the viewer-relative presentation of an edge.
type DisplayStatus string

const (
	DisplayNotFriends      DisplayStatus = "not_friends"
	DisplayPendingSent     DisplayStatus = "pending_sent"
	DisplayPendingReceived DisplayStatus = "pending_received"
	DisplayFriends         DisplayStatus = "friends"
)

// ProjectStatus maps a stored edge (or its absence, passed as nil) plus a
// viewer identity to the status the viewer should see. Declined edges
// present as not-friends. The function performs no lookups and never
// mutates the edge.
func ProjectStatus(edge *models.FriendEdge, viewer string) DisplayStatus {
	if edge == nil {
		return DisplayNotFriends
	}

	switch edge.Status {
	case models.EdgeAccepted:
		return DisplayFriends
	case models.EdgePending:
		if edge.RequestedBy == viewer {
			return DisplayPendingSent
		}
		return DisplayPendingReceived
	default:
		// declined, or an unknown status from a newer schema
		return DisplayNotFriends
	}
}
