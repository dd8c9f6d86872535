package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/reelgrid/reelgrid/internal/httputil"
	"github.com/reelgrid/reelgrid/internal/validate"
)

// AvatarStorage is the slice of object storage the profile endpoints need.
type AvatarStorage interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string, contentLength int64, expiry time.Duration) (string, error)
	GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	HeadObject(ctx context.Context, key string) (int64, string, error)
	DeleteObject(ctx context.Context, key string) error
}

type profileResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (h *Handler) SetAvatarStorage(s AvatarStorage) {
	h.avatarStorage = s
}

func (h *Handler) fetchProfile(ctx context.Context, userID string) (*profileResponse, error) {
	var p profileResponse
	var avatarKey *string
	var createdAt, updatedAt time.Time
	err := h.db.QueryRow(ctx,
		"SELECT id, username, avatar_key, created_at, updated_at FROM profiles WHERE id = $1",
		userID,
	).Scan(&p.ID, &p.Username, &avatarKey, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = createdAt.Format(time.RFC3339)
	p.UpdatedAt = updatedAt.Format(time.RFC3339)
	if avatarKey != nil && h.avatarStorage != nil {
		if url, err := h.avatarStorage.GenerateDownloadURL(ctx, *avatarKey, time.Hour); err == nil {
			p.AvatarURL = url
		}
	}
	return &p, nil
}

// ensureProfile creates a profile row if the user does not have one yet.
// Federated sign-ins land here on their first visit.
func (h *Handler) ensureProfile(ctx context.Context, userID, username string) error {
	_, err := h.db.Exec(ctx,
		"INSERT INTO profiles (id, username) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING",
		userID, username,
	)
	return err
}

type updateProfileRequest struct {
	Username  *string `json:"username"`
	AvatarKey *string `json:"avatarKey"`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == nil && req.AvatarKey == nil {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		if msg := validate.Username(trimmed); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		req.Username = &trimmed
	}

	if req.AvatarKey != nil && !strings.HasPrefix(*req.AvatarKey, "avatars/"+userID+"/") {
		httputil.WriteError(w, http.StatusBadRequest, "avatarKey does not belong to this user")
		return
	}

	// An avatarKey is only recorded once the object actually exists in
	// the bucket; the previous object is removed after a successful swap.
	var previousAvatarKey *string
	if req.AvatarKey != nil && h.avatarStorage != nil {
		if _, _, err := h.avatarStorage.HeadObject(r.Context(), *req.AvatarKey); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "avatar has not been uploaded")
			return
		}
		err := h.db.QueryRow(r.Context(),
			"SELECT avatar_key FROM profiles WHERE id = $1", userID,
		).Scan(&previousAvatarKey)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to load profile")
			return
		}
	}

	setClauses := []string{}
	args := []any{}
	paramIdx := 1

	if req.Username != nil {
		setClauses = append(setClauses, fmt.Sprintf("username = $%d", paramIdx))
		args = append(args, *req.Username)
		paramIdx++
	}
	if req.AvatarKey != nil {
		setClauses = append(setClauses, fmt.Sprintf("avatar_key = $%d", paramIdx))
		args = append(args, *req.AvatarKey)
		paramIdx++
	}

	query := fmt.Sprintf("UPDATE profiles SET %s, updated_at = now() WHERE id = $%d",
		strings.Join(setClauses, ", "), paramIdx)
	args = append(args, userID)

	result, err := h.db.Exec(r.Context(), query, args...)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	if result.RowsAffected() == 0 {
		// Lazy creation path: federated accounts may not have a profile yet.
		if req.Username == nil {
			httputil.WriteError(w, http.StatusNotFound, "profile not found")
			return
		}
		if err := h.ensureProfile(r.Context(), userID, *req.Username); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to create profile")
			return
		}
	}

	if previousAvatarKey != nil && *previousAvatarKey != *req.AvatarKey {
		if err := h.avatarStorage.DeleteObject(r.Context(), *previousAvatarKey); err != nil {
			slog.Warn("failed to delete replaced avatar", "key", *previousAvatarKey, "error", err)
		}
	}

	profile, err := h.fetchProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "profile not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, profile)
}

type avatarUploadRequest struct {
	ContentType string `json:"contentType"`
	FileSize    int64  `json:"fileSize"`
}

type avatarUploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	AvatarKey string `json:"avatarKey"`
}

func extensionForAvatarType(ct string) string {
	switch ct {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func (h *Handler) AvatarUploadURL(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	if h.avatarStorage == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "avatar uploads are not enabled")
		return
	}

	var req avatarUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ContentType != "image/jpeg" && req.ContentType != "image/png" && req.ContentType != "image/webp" {
		httputil.WriteError(w, http.StatusBadRequest, "only image/jpeg, image/png, and image/webp avatars are supported")
		return
	}

	if req.FileSize <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "fileSize must be positive")
		return
	}

	key := fmt.Sprintf("avatars/%s/avatar%s", userID, extensionForAvatarType(req.ContentType))
	uploadURL, err := h.avatarStorage.GenerateUploadURL(r.Context(), key, req.ContentType, req.FileSize, 15*time.Minute)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate upload URL")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, avatarUploadResponse{UploadURL: uploadURL, AvatarKey: key})
}
