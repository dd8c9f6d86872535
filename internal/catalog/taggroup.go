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

// TagGroup is one taxonomy group for a category. Tags keep their
// insertion order; duplicates are not prevented.
type TagGroup struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const tagGroupColumns = "id, user_id, name, tags, category, created_at, updated_at"

func scanTagGroupRow(row pgx.Row) (*TagGroup, error) {
	var g TagGroup
	var rawTags []byte
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &rawTags, &g.Category, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawTags, &g.Tags); err != nil || g.Tags == nil {
		g.Tags = []string{}
	}
	return &g, nil
}

// CategoryTagGroups loads a category's tag groups in creation order.
func (h *Handler) CategoryTagGroups(ctx context.Context, category string) ([]TagGroup, error) {
	rows, err := h.db.Query(ctx,
		"SELECT "+tagGroupColumns+" FROM tag_groups WHERE category = $1 ORDER BY created_at",
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("list tag groups: %w", err)
	}
	defer rows.Close()

	groups := []TagGroup{}
	for rows.Next() {
		g, err := scanTagGroupRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag group: %w", err)
		}
		groups = append(groups, *g)
	}
	return groups, rows.Err()
}

// ListTagGroups returns a category's tag groups in creation order.
func (h *Handler) ListTagGroups(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")

	groups, err := h.CategoryTagGroups(r.Context(), category)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load tag groups")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, groups)
}

type createTagGroupRequest struct {
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

func (h *Handler) CreateTagGroup(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createTagGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if msg := validate.TagGroupName(req.Name); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Category(req.Category); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	for _, tag := range req.Tags {
		if msg := validate.TagName(tag); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}

	if req.Tags == nil {
		req.Tags = []string{}
	}
	rawTags, err := json.Marshal(req.Tags)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid tags")
		return
	}

	row := h.db.QueryRow(r.Context(),
		`INSERT INTO tag_groups (user_id, name, tags, category)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+tagGroupColumns,
		userID, req.Name, rawTags, req.Category,
	)
	g, err := scanTagGroupRow(row)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create tag group")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, g)
}

type updateTagGroupRequest struct {
	Name *string   `json:"name"`
	Tags *[]string `json:"tags"`
}

func (h *Handler) UpdateTagGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	userID := auth.UserIDFromContext(r.Context())

	var req updateTagGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	setClauses := []string{}
	args := []any{}
	paramIdx := 1

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			httputil.WriteError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		if msg := validate.TagGroupName(name); msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", paramIdx))
		args = append(args, name)
		paramIdx++
	}
	if req.Tags != nil {
		for _, tag := range *req.Tags {
			if msg := validate.TagName(tag); msg != "" {
				httputil.WriteError(w, http.StatusBadRequest, msg)
				return
			}
		}
		tags := *req.Tags
		if tags == nil {
			tags = []string{}
		}
		rawTags, err := json.Marshal(tags)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid tags")
			return
		}
		setClauses = append(setClauses, fmt.Sprintf("tags = $%d", paramIdx))
		args = append(args, rawTags)
		paramIdx++
	}

	if len(setClauses) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	query := fmt.Sprintf("UPDATE tag_groups SET %s, updated_at = now() WHERE id = $%d AND user_id = $%d",
		strings.Join(setClauses, ", "), paramIdx, paramIdx+1)
	args = append(args, groupID, userID)

	result, err := h.db.Exec(r.Context(), query, args...)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to update tag group")
		return
	}
	if result.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "tag group not found")
		return
	}

	row := h.db.QueryRow(r.Context(),
		"SELECT "+tagGroupColumns+" FROM tag_groups WHERE id = $1", groupID)
	g, err := scanTagGroupRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "tag group not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load tag group")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

func (h *Handler) DeleteTagGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	userID := auth.UserIDFromContext(r.Context())

	result, err := h.db.Exec(r.Context(),
		"DELETE FROM tag_groups WHERE id = $1 AND user_id = $2", groupID, userID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to delete tag group")
		return
	}
	if result.RowsAffected() == 0 {
		httputil.WriteError(w, http.StatusNotFound, "tag group not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
