package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Friends: deps.Friends, Limiter: deps.AuthLimiter}
	friends := FriendHandler{Friends: deps.Friends}
	users := UserHandler{Users: deps.Users, Avatars: deps.Avatars}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/password-reset", auth.RequestPasswordReset)
	mux.HandleFunc("/api/v1/friends", friends.List)
	mux.HandleFunc("/api/v1/friends/request", friends.Request)
	mux.HandleFunc("/api/v1/friends/accept", friends.Accept)
	mux.HandleFunc("/api/v1/friends/decline", friends.Decline)
	mux.HandleFunc("/api/v1/friends/unfriend", friends.Unfriend)
	mux.HandleFunc("/api/v1/friends/requests", friends.Requests)
	mux.HandleFunc("/api/v1/friends/search", friends.Search)
	mux.HandleFunc("/api/v1/friends/mutual", friends.Mutual)
	mux.HandleFunc("/api/v1/friends/status", friends.Status)
	mux.HandleFunc("/api/v1/users/avatar", users.UploadAvatar)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Sessions    SessionManager
	Friends     FriendService
	Avatars     AvatarStorage
	AuthLimiter RateLimiter
}
