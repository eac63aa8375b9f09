package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/friendloop/backend/internal/friends"
	"github.com/friendloop/backend/internal/logging"
	"github.com/friendloop/backend/internal/models"
	"github.com/friendloop/backend/internal/repositories"
)

// FriendHandler exposes the relationship engine over HTTP.
type FriendHandler struct {
	Friends FriendService
}

// Request handles POST /api/v1/friends/request.
func (h FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	edge, err := h.Friends.RequestOrReopen(ctx, req.ActorID, req.TargetID)
	if err != nil {
		respondFriendError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, edgeResponse{
		Edge:   edge,
		Status: friends.ProjectStatus(&edge, req.ActorID),
	})
}

// Accept handles POST /api/v1/friends/accept.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	edge, err := h.Friends.Accept(ctx, req.ActorID, req.TargetID)
	if err != nil {
		respondFriendError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, edgeResponse{
		Edge:   edge,
		Status: friends.ProjectStatus(&edge, req.ActorID),
	})
}

// Decline handles POST /api/v1/friends/decline.
func (h FriendHandler) Decline(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	edge, err := h.Friends.Decline(ctx, req.ActorID, req.TargetID)
	if err != nil {
		respondFriendError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, edgeResponse{
		Edge:   edge,
		Status: friends.ProjectStatus(&edge, req.ActorID),
	})
}

// Unfriend handles POST /api/v1/friends/unfriend.
func (h FriendHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMutation(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.Friends.Unfriend(ctx, req.ActorID, req.TargetID); err != nil {
		respondFriendError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, statusResponse{Status: friends.DisplayNotFriends})
}

// List handles GET /api/v1/friends requests.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.subject(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	list, err := h.Friends.ListFriends(ctx, userID)
	if err != nil {
		respondFriendError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, listFriendsResponse{Friends: toFriendEntries(list)})
}

// Requests handles GET /api/v1/friends/requests.
func (h FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.subject(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	pending, err := h.Friends.ListPendingRequests(ctx, userID)
	if err != nil {
		respondFriendError(ctx, w, err)
		return
	}

	resp := pendingResponse{
		Incoming: pending.Incoming,
		Outgoing: pending.Outgoing,
	}
	if resp.Incoming == nil {
		resp.Incoming = []models.FriendEdge{}
	}
	if resp.Outgoing == nil {
		resp.Outgoing = []models.FriendEdge{}
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

// Search handles GET /api/v1/friends/search.
func (h FriendHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.subject(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	matches, err := h.Friends.SearchFriends(ctx, userID, query)
	if err != nil {
		respondFriendError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, listFriendsResponse{Friends: toFriendEntries(matches)})
}

// Mutual handles GET /api/v1/friends/mutual.
func (h FriendHandler) Mutual(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.subject(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	otherID := strings.TrimSpace(r.URL.Query().Get("other"))
	mutual, err := h.Friends.MutualFriends(ctx, userID, otherID)
	if err != nil {
		respondFriendError(ctx, w, err)
		return
	}

	if mutual == nil {
		mutual = []string{}
	}
	respondJSON(ctx, w, http.StatusOK, mutualResponse{Mutual: mutual})
}

// Status handles GET /api/v1/friends/status.
func (h FriendHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.subject(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	otherID := strings.TrimSpace(r.URL.Query().Get("other"))
	status, err := h.Friends.RelationshipStatus(ctx, userID, otherID)
	if err != nil {
		respondFriendError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, statusResponse{Status: status})
}

// decodeMutation validates a POST body carrying the acting and target user
// ids shared by the four mutation endpoints.
func (h FriendHandler) decodeMutation(w http.ResponseWriter, r *http.Request) (mutateFriendRequest, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return mutateFriendRequest{}, false
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Friends == nil {
		logger.Error("friend service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return mutateFriendRequest{}, false
	}

	var req mutateFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return mutateFriendRequest{}, false
	}

	req.ActorID = strings.TrimSpace(req.ActorID)
	req.TargetID = strings.TrimSpace(req.TargetID)
	if req.ActorID == "" || req.TargetID == "" {
		logger.Warn("friend mutation missing participants")
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "actorId and targetId are required"})
		return mutateFriendRequest{}, false
	}

	return req, true
}

// subject validates a GET request and extracts the subject user id.
func (h FriendHandler) subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return "", false
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Friends == nil {
		logger.Error("friend service unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend services unavailable"})
		return "", false
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		logger.Warn("friend query missing user")
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return "", false
	}

	return userID, true
}

// respondFriendError translates engine errors into HTTP statuses. The
// ambiguous-relationship case deliberately tells the client to re-query
// instead of retrying the same mutation.
func respondFriendError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logging.FromContext(ctx)

	switch {
	case errors.Is(err, friends.ErrSelfRequest), errors.Is(err, friends.ErrEmptyUserID):
		logger.Warn("rejected friend mutation", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, friends.ErrNotFound), errors.Is(err, repositories.ErrNotFound):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "no matching friendship"})
	case errors.Is(err, friends.ErrAmbiguousRelationship):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "relationship changed, refresh and retry"})
	case errors.Is(err, friends.ErrEdgeExists), errors.Is(err, repositories.ErrConflict):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "friendship already exists"})
	default:
		logger.Error("friend operation failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "friend operation failed"})
	}
}

type mutateFriendRequest struct {
	ActorID  string `json:"actorId"`
	TargetID string `json:"targetId"`
}

type edgeResponse struct {
	Edge   models.FriendEdge     `json:"edge"`
	Status friends.DisplayStatus `json:"status"`
}

type friendEntry struct {
	UserID      string            `json:"userId"`
	DisplayName string            `json:"displayName"`
	AvatarURL   string            `json:"avatarUrl,omitempty"`
	Edge        models.FriendEdge `json:"edge"`
}

func toFriendEntries(list []friends.Friend) []friendEntry {
	out := make([]friendEntry, 0, len(list))
	for _, f := range list {
		out = append(out, friendEntry{
			UserID:      f.User.ID,
			DisplayName: f.User.DisplayName,
			AvatarURL:   f.User.AvatarURL,
			Edge:        f.Edge,
		})
	}
	return out
}

type listFriendsResponse struct {
	Friends []friendEntry `json:"friends"`
}

type pendingResponse struct {
	Incoming []models.FriendEdge `json:"incoming"`
	Outgoing []models.FriendEdge `json:"outgoing"`
}

type mutualResponse struct {
	Mutual []string `json:"mutual"`
}

type statusResponse struct {
	Status friends.DisplayStatus `json:"status"`
}
