// Package catalog serves the video and tag-group JSON API.
package catalog

import (
	"github.com/reelgrid/reelgrid/internal/database"
)

type Handler struct {
	db database.DBTX
}

func NewHandler(db database.DBTX) *Handler {
	return &Handler{db: db}
}
