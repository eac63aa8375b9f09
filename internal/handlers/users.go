package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/friendloop/backend/internal/logging"
	"github.com/friendloop/backend/internal/repositories"
)

// maxAvatarBytes caps avatar uploads at 5 MiB.
const maxAvatarBytes = 5 << 20

var allowedAvatarExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// UserHandler implements profile endpoints.
type UserHandler struct {
	Users   UserStore
	Avatars AvatarStorage
	NowFunc func() time.Time
}

// UploadAvatar handles PUT /api/v1/users/avatar requests. The image is
// uploaded to object storage and the user's profile is pointed at the
// resulting public URL.
func (h UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Avatars == nil {
		logger.Error("profile dependencies unavailable", "hasUsers", h.Users != nil, "hasAvatars", h.Avatars != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "profile services unavailable"})
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		logger.Warn("avatar upload missing user")
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "user query parameter is required"})
		return
	}

	if _, err := h.Users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("avatar upload for unknown user", "userId", userID)
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("avatar upload user lookup failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to load user"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		logger.Warn("invalid avatar upload", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		logger.Warn("avatar upload missing file", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "avatar file is required"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(path.Ext(header.Filename))
	if _, ok := allowedAvatarExtensions[ext]; !ok {
		logger.Warn("avatar upload unsupported type", "filename", header.Filename, "userId", userID)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "unsupported image type"})
		return
	}

	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.NewString(), ext)
	location, err := h.Avatars.Save(ctx, key, file)
	if err != nil {
		logger.Error("avatar upload failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to store avatar"})
		return
	}

	if err := h.Users.UpdateAvatar(ctx, userID, location, h.now()); err != nil {
		logger.Error("avatar profile update failed", "error", err, "userId", userID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update profile"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, avatarResponse{AvatarURL: location})
}

type avatarResponse struct {
	AvatarURL string `json:"avatarUrl"`
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
