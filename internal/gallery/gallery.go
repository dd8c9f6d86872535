// Package gallery manages the gallery directory: each gallery claims a
// unique category slug under which its videos live.
package gallery

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reelgrid/reelgrid/internal/auth"
	"github.com/reelgrid/reelgrid/internal/database"
	"github.com/reelgrid/reelgrid/internal/httputil"
	"github.com/reelgrid/reelgrid/internal/validate"
)

// Icons a gallery can display in the directory.
var icons = []string{
	"video", "music", "image", "education", "programming", "gaming",
	"art", "photography", "movies", "science", "travel", "health",
	"sports", "fitness", "ideas",
}

type Handler struct {
	db       database.DBTX
	validate *validator.Validate
}

func NewHandler(db database.DBTX) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Slug shape is owned by the validate package; videos and galleries
	// must agree on what a category looks like.
	_ = v.RegisterValidation("categoryslug", func(fl validator.FieldLevel) bool {
		return validate.Category(fl.Field().String()) == ""
	})
	return &Handler{db: db, validate: v}
}

// Gallery is one directory entry as served over the API.
type Gallery struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	IsPublic    bool      `json:"isPublic"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const galleryColumns = "id, user_id, name, description, category, is_public, icon, created_at, updated_at"

func scanGalleryRow(row pgx.Row) (*Gallery, error) {
	var g Gallery
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.Description, &g.Category,
		&g.IsPublic, &g.Icon, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (h *Handler) listGalleries(w http.ResponseWriter, r *http.Request, where string, args ...any) {
	rows, err := h.db.Query(r.Context(),
		"SELECT "+galleryColumns+" FROM galleries "+where+" ORDER BY created_at DESC", args...)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load galleries")
		return
	}
	defer rows.Close()

	galleries := []Gallery{}
	for rows.Next() {
		g, err := scanGalleryRow(rows)
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to load galleries")
			return
		}
		galleries = append(galleries, *g)
	}
	if rows.Err() != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load galleries")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, galleries)
}

// ListMine returns the signed-in user's galleries, newest first.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	h.listGalleries(w, r, "WHERE user_id = $1", userID)
}

// ListPublic returns the public gallery directory.
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	h.listGalleries(w, r, "WHERE is_public = true")
}

// GetByCategory resolves one gallery by its category slug.
func (h *Handler) GetByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	row := h.db.QueryRow(r.Context(),
		"SELECT "+galleryColumns+" FROM galleries WHERE category = $1", category)
	g, err := scanGalleryRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httputil.WriteError(w, http.StatusNotFound, "gallery not found")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load gallery")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

type createGalleryRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"max=500"`
	Category    string `json:"category" validate:"required,min=3,max=50,categoryslug"`
	IsPublic    *bool  `json:"isPublic"`
	Icon        string `json:"icon"`
}

// validationMessage translates the first failed rule into the message
// the forms display inline.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Name":
		return "gallery name must be at least 3 characters long"
	case "Category":
		if fe.Tag() == "categoryslug" {
			return "category may only contain lowercase letters, numbers, and hyphens"
		}
		return "category must be at least 3 characters long"
	case "Description":
		return "description is too long"
	}
	return "invalid request"
}

func validIcon(icon string) bool {
	for _, i := range icons {
		if icon == i {
			return true
		}
	}
	return false
}

// Create claims a category slug for a new gallery. The slug is unique
// across all users; a collision surfaces as a conflict, not a generic
// failure, so the form can tell the visitor to pick another.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createGalleryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if err := h.validate.Struct(req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	icon := req.Icon
	if icon == "" {
		icon = "video"
	}
	if !validIcon(icon) {
		httputil.WriteError(w, http.StatusBadRequest, "unknown icon")
		return
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	row := h.db.QueryRow(r.Context(),
		`INSERT INTO galleries (user_id, name, description, category, is_public, icon)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+galleryColumns,
		userID, req.Name, req.Description, req.Category, isPublic, icon,
	)
	g, err := scanGalleryRow(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			httputil.WriteError(w, http.StatusConflict, "a gallery with this category already exists")
			return
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create gallery")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, g)
}
