package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/reelgrid/reelgrid/internal/auth"
	"github.com/reelgrid/reelgrid/internal/httputil"
	"github.com/reelgrid/reelgrid/internal/validate"
)

// Video is one catalog record as served over the API.
type Video struct {
	ID          string              `json:"id"`
	UserID      string              `json:"userId"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	YouTubeID   string              `json:"youtubeId"`
	Category    string              `json:"category"`
	Tags        map[string][]string `json:"tags"`
	IsPublic    bool                `json:"isPublic"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// normalizeTags guarantees the stored shape: a non-nil mapping whose
// values are non-nil string slices. Group keys with a nil value become
// empty slices rather than being dropped.
func normalizeTags(tags map[string][]string) map[string][]string {
	if tags == nil {
		return map[string][]string{}
	}
	for group, list := range tags {
		if list == nil {
			tags[group] = []string{}
		}
	}
	return tags
}

func scanVideoRow(row pgx.Row) (*Video, error) {
	var v Video
	var rawTags []byte
	err := row.Scan(&v.ID, &v.UserID, &v.Title, &v.Description, &v.YouTubeID,
		&v.Category, &rawTags, &v.IsPublic, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawTags, &v.Tags); err != nil {
		v.Tags = map[string][]string{}
	}
	v.Tags = normalizeTags(v.Tags)
	return &v, nil
}

const videoColumns = "id, user_id, title, description, youtube_id, category, tags, is_public, created_at, updated_at"

// ListByCategory returns a category's videos, newest first. Anonymous
// callers get only public records; signed-in callers additionally get
// their own private ones. The visibility cut happens after the fetch so
// both callers see the same ordering of the shared records.
func (h *Handler) ListByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	userID := auth.UserIDFromContext(r.Context())

	videos, err := h.CategoryVideos(r.Context(), category)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load videos")
		return
	}

	visible := make([]Video, 0, len(videos))
	for _, v := range videos {
		if v.IsPublic || v.UserID == userID {
			visible = append(visible, v)
		}
	}

	httputil.WriteJSON(w, http.StatusOK, visible)
}

// CategoryVideos loads every video in a category, newest first, with
// no visibility cut applied.
func (h *Handler) CategoryVideos(ctx context.Context, category string) ([]Video, error) {
	rows, err := h.db.Query(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE category = $1 ORDER BY created_at DESC",
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	videos := []Video{}
	for rows.Next() {
		v, err := scanVideoRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// Get returns one video. Private videos are visible only to their
// owner; everyone else gets the same not-found answer as a missing row.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	userID := auth.UserIDFromContext(r.Context())

	v, err := h.VideoByID(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "video not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load video")
		return
	}

	if !v.IsPublic && v.UserID != userID {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, v)
}

// VideoByID fetches one video row without a visibility check.
func (h *Handler) VideoByID(ctx context.Context, videoID string) (*Video, error) {
	row := h.db.QueryRow(ctx,
		"SELECT "+videoColumns+" FROM videos WHERE id = $1", videoID)
	return scanVideoRow(row)
}

type createVideoRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	YouTubeID   string              `json:"youtubeId"`
	Category    string              `json:"category"`
	Tags        map[string][]string `json:"tags"`
	IsPublic    *bool               `json:"isPublic"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		httputil.WriteError(w, http.StatusBadRequest, "title is required")
		return
	}
	if msg := validate.Title(req.Title); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Description(req.Description); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.YouTubeID(req.YouTubeID); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Category(req.Category); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	tags := normalizeTags(req.Tags)
	rawTags, err := json.Marshal(tags)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid tags")
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	row := h.db.QueryRow(r.Context(),
		`INSERT INTO videos (user_id, title, description, youtube_id, category, tags, is_public)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+videoColumns,
		userID, req.Title, req.Description, req.YouTubeID, req.Category, rawTags, isPublic,
	)
	v, err := scanVideoRow(row)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create video")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, v)
}

type updateVideoRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	YouTubeID   *string              `json:"youtubeId"`
	Tags        *map[string][]string `json:"tags"`
	IsPublic    *bool                `json:"isPublic"`
}

// Update applies a partial edit to a video the caller owns.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	userID := auth.UserIDFromContext(r.Context())

	var req updateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	setClauses := []string{}
	args := []any{}
	paramIdx := 1

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			httputil.WriteError(w, http.StatusBadRequest, "title cannot be empty")
			return
		}
		if msg := validate.Title(title); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("title = $%d", paramIdx))
		args = append(args, title)
		paramIdx++
	}
	if req.Description != nil {
		if msg := validate.Description(*req.Description); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("description = $%d", paramIdx))
		args = append(args, *req.Description)
		paramIdx++
	}
	if req.YouTubeID != nil {
		if msg := validate.YouTubeID(*req.YouTubeID); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("youtube_id = $%d", paramIdx))
		args = append(args, *req.YouTubeID)
		paramIdx++
	}
	if req.Tags != nil {
		rawTags, err := json.Marshal(normalizeTags(*req.Tags))
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid tags")
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("tags = $%d", paramIdx))
		args = append(args, rawTags)
		paramIdx++
	}
	if req.IsPublic != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_public = $%d", paramIdx))
		args = append(args, *req.IsPublic)
		paramIdx++
	}

	if len(setClauses) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	query := fmt.Sprintf("UPDATE videos SET %s, updated_at = now() WHERE id = $%d AND user_id = $%d",
		strings.Join(setClauses, ", "), paramIdx, paramIdx+1)
	args = append(args, videoID, userID)

	result, err := h.db.Exec(r.Context(), query, args...)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update video")
		return
	}
	if result.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	v, err := h.VideoByID(r.Context(), videoID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load video")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoID")
	userID := auth.UserIDFromContext(r.Context())

	result, err := h.db.Exec(r.Context(),
		"DELETE FROM videos WHERE id = $1 AND user_id = $2", videoID, userID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete video")
		return
	}
	if result.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
