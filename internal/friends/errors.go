package friends

import "errors"

var (
	// ErrSelfRequest indicates the actor and target are the same user.
	ErrSelfRequest = errors.New("cannot befriend yourself")
	// ErrNotFound indicates no visible edge matched the operation's
	// status precondition. Callers retrying accept/decline/unfriend
	// after a timeout must treat this as ambiguous success and re-query
	// rather than assume hard failure.
	ErrNotFound = errors.New("no matching friendship")
	// ErrEdgeExists indicates an edge for the pair already exists and the
	// operation does not reopen existing edges.
	ErrEdgeExists = errors.New("friendship already exists")
	// ErrAmbiguousRelationship indicates a request collided with an edge
	// the actor cannot see. The caller must re-sync instead of retrying
	// blindly.
	ErrAmbiguousRelationship = errors.New("relationship state is ambiguous")
)
