package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/friendloop/backend/internal/friends"
	"github.com/friendloop/backend/internal/models"
)

type setIntersect struct{}

func (setIntersect) Intersect(_ context.Context, a, b []string) ([]string, error) {
	seen := make(map[string]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	var out []string
	for _, id := range b {
		if _, ok := seen[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func newFriendFixture(t *testing.T) (*friends.Service, *friends.InMemoryEdgeStore) {
	t.Helper()
	store := friends.NewInMemoryEdgeStore()
	store.AddUser(models.User{ID: "user-1", DisplayName: "Morgan Reyes"})
	store.AddUser(models.User{ID: "user-2", DisplayName: "Sam Chen"})
	store.AddUser(models.User{ID: "user-3", DisplayName: "Alex Osei"})
	svc := friends.NewService(store, setIntersect{})
	svc.NowFunc = func() time.Time { return time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC) }
	return svc, store
}

type stubFriendService struct {
	err error
}

func (s *stubFriendService) RequestOrReopen(context.Context, string, string) (models.FriendEdge, error) {
	return models.FriendEdge{}, s.err
}

func (s *stubFriendService) Accept(context.Context, string, string) (models.FriendEdge, error) {
	return models.FriendEdge{}, s.err
}

func (s *stubFriendService) Decline(context.Context, string, string) (models.FriendEdge, error) {
	return models.FriendEdge{}, s.err
}

func (s *stubFriendService) Unfriend(context.Context, string, string) error {
	return s.err
}

func (s *stubFriendService) Befriend(context.Context, string, string) (models.FriendEdge, error) {
	return models.FriendEdge{}, s.err
}

func (s *stubFriendService) RelationshipStatus(context.Context, string, string) (friends.DisplayStatus, error) {
	if s.err != nil {
		return "", s.err
	}
	return friends.DisplayNotFriends, nil
}

func (s *stubFriendService) ListFriends(context.Context, string) ([]friends.Friend, error) {
	return nil, s.err
}

func (s *stubFriendService) ListPendingRequests(context.Context, string) (friends.PendingRequests, error) {
	return friends.PendingRequests{}, s.err
}

func (s *stubFriendService) SearchFriends(context.Context, string, string) ([]friends.Friend, error) {
	return nil, s.err
}

func (s *stubFriendService) MutualFriends(context.Context, string, string) ([]string, error) {
	return nil, s.err
}

func postFriendMutation(t *testing.T, handle http.HandlerFunc, path string, payload mutateFriendRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handle(rec, req)
	return rec
}

func TestFriendHandlerRequest(t *testing.T) {
	svc, _ := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	rec := postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp edgeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Status != friends.DisplayPendingSent {
		t.Fatalf("expected status %q got %q", friends.DisplayPendingSent, resp.Status)
	}
	if resp.Edge.RequestedBy != "user-1" {
		t.Fatalf("expected requestedBy user-1 got %q", resp.Edge.RequestedBy)
	}
	if resp.Edge.UserLow != "user-1" || resp.Edge.UserHigh != "user-2" {
		t.Fatalf("unexpected pair ordering: %+v", resp.Edge)
	}
}

func TestFriendHandlerRequestIsIdempotentPerActor(t *testing.T) {
	svc, store := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}
	payload := mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"}

	first := postFriendMutation(t, handler.Request, "/api/v1/friends/request", payload)
	second := postFriendMutation(t, handler.Request, "/api/v1/friends/request", payload)

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected both requests to succeed, got %d and %d", first.Code, second.Code)
	}
	if store.Len() != 1 {
		t.Fatalf("expected a single edge, got %d", store.Len())
	}
}

func TestFriendHandlerRequestFailures(t *testing.T) {
	svc, _ := newFriendFixture(t)
	body := []byte(`{"actorId":"user-1","targetId":"user-2"}`)

	cases := []struct {
		name       string
		handler    FriendHandler
		method     string
		body       []byte
		wantStatus int
	}{
		{"wrongMethod", FriendHandler{Friends: svc}, http.MethodGet, body, http.StatusMethodNotAllowed},
		{"missingService", FriendHandler{}, http.MethodPost, body, http.StatusInternalServerError},
		{"badJSON", FriendHandler{Friends: svc}, http.MethodPost, []byte("{"), http.StatusBadRequest},
		{"missingFields", FriendHandler{Friends: svc}, http.MethodPost, []byte(`{"actorId":"","targetId":""}`), http.StatusBadRequest},
		{"selfRequest", FriendHandler{Friends: svc}, http.MethodPost, []byte(`{"actorId":"same","targetId":"same"}`), http.StatusBadRequest},
		{"ambiguous", FriendHandler{Friends: &stubFriendService{err: friends.ErrAmbiguousRelationship}}, http.MethodPost, body, http.StatusConflict},
		{"internal", FriendHandler{Friends: &stubFriendService{err: errors.New("boom")}}, http.MethodPost, body, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/v1/friends/request", bytes.NewReader(tc.body))
			rec := httptest.NewRecorder()

			tc.handler.Request(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestFriendHandlerAcceptLifecycle(t *testing.T) {
	svc, _ := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	rec := postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("request failed: %d", rec.Code)
	}

	// The requester cannot confirm their own request.
	rec = postFriendMutation(t, handler.Accept, "/api/v1/friends/accept", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected accept-own-request to 404, got %d", rec.Code)
	}

	rec = postFriendMutation(t, handler.Accept, "/api/v1/friends/accept", mutateFriendRequest{ActorID: "user-2", TargetID: "user-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected accept to succeed, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp edgeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != friends.DisplayFriends {
		t.Fatalf("expected status %q got %q", friends.DisplayFriends, resp.Status)
	}
	if resp.Edge.AcceptedAt == nil {
		t.Fatalf("expected acceptedAt to be set")
	}
}

func TestFriendHandlerDeclineAndReopen(t *testing.T) {
	svc, _ := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	rec := postFriendMutation(t, handler.Decline, "/api/v1/friends/decline", mutateFriendRequest{ActorID: "user-2", TargetID: "user-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected decline to succeed, got %d", rec.Code)
	}

	// A later request from the declined side reopens the same pair.
	rec = postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-2", TargetID: "user-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected reopen to succeed, got %d", rec.Code)
	}

	var resp edgeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Edge.RequestedBy != "user-2" {
		t.Fatalf("expected reopened request to flip requestedBy, got %q", resp.Edge.RequestedBy)
	}
	if resp.Status != friends.DisplayPendingSent {
		t.Fatalf("expected status %q got %q", friends.DisplayPendingSent, resp.Status)
	}
}

func TestFriendHandlerUnfriend(t *testing.T) {
	svc, store := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	postFriendMutation(t, handler.Accept, "/api/v1/friends/accept", mutateFriendRequest{ActorID: "user-2", TargetID: "user-1"})

	rec := postFriendMutation(t, handler.Unfriend, "/api/v1/friends/unfriend", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected unfriend to succeed, got %d", rec.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("expected edge to be deleted, %d remain", store.Len())
	}

	// Retrying after the delete reports not found, which callers treat
	// as ambiguous success.
	rec = postFriendMutation(t, handler.Unfriend, "/api/v1/friends/unfriend", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected repeat unfriend to 404, got %d", rec.Code)
	}
}

func TestFriendHandlerList(t *testing.T) {
	svc, _ := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	postFriendMutation(t, handler.Accept, "/api/v1/friends/accept", mutateFriendRequest{ActorID: "user-2", TargetID: "user-1"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends?user=user-1", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp listFriendsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Friends) != 1 || resp.Friends[0].UserID != "user-2" {
		t.Fatalf("unexpected response payload: %+v", resp)
	}
	if resp.Friends[0].DisplayName != "Sam Chen" {
		t.Fatalf("expected resolved display name, got %q", resp.Friends[0].DisplayName)
	}
}

func TestFriendHandlerListFailures(t *testing.T) {
	svc, _ := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/friends", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil)
	rec = httptest.NewRecorder()
	handler.List(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends?user=user-1", nil)
	rec = httptest.NewRecorder()
	handler = FriendHandler{}
	handler.List(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}

	handler = FriendHandler{Friends: &stubFriendService{err: errors.New("db down")}}
	rec = httptest.NewRecorder()
	handler.List(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected internal error got %d", rec.Code)
	}
}

func TestFriendHandlerRequestsPartition(t *testing.T) {
	svc, _ := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-3", TargetID: "user-1"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/requests?user=user-1", nil)
	rec := httptest.NewRecorder()
	handler.Requests(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp pendingResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Outgoing) != 1 || resp.Outgoing[0].RequestedBy != "user-1" {
		t.Fatalf("unexpected outgoing set: %+v", resp.Outgoing)
	}
	if len(resp.Incoming) != 1 || resp.Incoming[0].RequestedBy != "user-3" {
		t.Fatalf("unexpected incoming set: %+v", resp.Incoming)
	}
}

func TestFriendHandlerSearchFiltersOwnNameMatches(t *testing.T) {
	svc, _ := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	postFriendMutation(t, handler.Accept, "/api/v1/friends/accept", mutateFriendRequest{ActorID: "user-2", TargetID: "user-1"})

	// "morgan" matches only the subject's own display name; the friend
	// list for user-1 must come back empty.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/search?user=user-1&q=morgan", nil)
	rec := httptest.NewRecorder()
	handler.Search(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp listFriendsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Friends) != 0 {
		t.Fatalf("expected own-name match to be filtered, got %+v", resp.Friends)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/friends/search?user=user-1&q=chen", nil)
	rec = httptest.NewRecorder()
	handler.Search(rec, req)

	resp = listFriendsResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Friends) != 1 || resp.Friends[0].UserID != "user-2" {
		t.Fatalf("expected friend-name match, got %+v", resp.Friends)
	}
}

func TestFriendHandlerMutual(t *testing.T) {
	svc, _ := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	// user-3 is friends with both user-1 and user-2.
	for _, pair := range [][2]string{{"user-1", "user-3"}, {"user-2", "user-3"}} {
		postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: pair[0], TargetID: pair[1]})
		postFriendMutation(t, handler.Accept, "/api/v1/friends/accept", mutateFriendRequest{ActorID: pair[1], TargetID: pair[0]})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/friends/mutual?user=user-1&other=user-2", nil)
	rec := httptest.NewRecorder()
	handler.Mutual(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp mutualResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Mutual) != 1 || resp.Mutual[0] != "user-3" {
		t.Fatalf("expected mutual friend user-3, got %+v", resp.Mutual)
	}
}

func TestFriendHandlerStatusPerspectives(t *testing.T) {
	svc, _ := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})

	cases := []struct {
		name string
		url  string
		want friends.DisplayStatus
	}{
		{"requester", "/api/v1/friends/status?user=user-1&other=user-2", friends.DisplayPendingSent},
		{"receiver", "/api/v1/friends/status?user=user-2&other=user-1", friends.DisplayPendingReceived},
		{"stranger", "/api/v1/friends/status?user=user-1&other=user-3", friends.DisplayNotFriends},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			rec := httptest.NewRecorder()
			handler.Status(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
			}

			var resp statusResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != tc.want {
				t.Fatalf("expected %q got %q", tc.want, resp.Status)
			}
		})
	}
}

func TestFriendHandlerRequestAmbiguousCollision(t *testing.T) {
	svc, store := newFriendFixture(t)
	handler := FriendHandler{Friends: svc}

	postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	store.Hide("user-1", "user-2")

	rec := postFriendMutation(t, handler.Request, "/api/v1/friends/request", mutateFriendRequest{ActorID: "user-1", TargetID: "user-2"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict for invisible edge, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected an error message instructing a refresh")
	}
}
