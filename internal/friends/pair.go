package friends

import "errors"

// ErrEmptyUserID indicates a blank identifier was supplied for one side
// of a pair.
var ErrEmptyUserID = errors.New("user id is required")

// OrderPair maps two user identifiers onto their canonical (low, high)
// storage key. The ordering is lexicographic, so OrderPair(a, b) and
// OrderPair(b, a) resolve to the same tuple for every distinct pair.
// A pair of identical identifiers is rejected with ErrSelfRequest.
func OrderPair(a, b string) (low, high string, err error) {
	if a == "" || b == "" {
		return "", "", ErrEmptyUserID
	}
	if a == b {
		return "", "", ErrSelfRequest
	}
	if a < b {
		return a, b, nil
	}
	return b, a, nil
}
