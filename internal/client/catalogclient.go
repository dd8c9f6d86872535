package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/reelgrid/reelgrid/internal/catalog"
	"github.com/reelgrid/reelgrid/internal/gallery"
)

// ListVideos returns a category's videos, newest first.
func (c *Client) ListVideos(ctx context.Context, category string) ([]catalog.Video, error) {
	var videos []catalog.Video
	err := c.do(ctx, http.MethodGet,
		"/api/categories/"+url.PathEscape(category)+"/videos", nil, &videos)
	return videos, err
}

// GetVideo fetches one video by id.
func (c *Client) GetVideo(ctx context.Context, id string) (*catalog.Video, error) {
	var v catalog.Video
	if err := c.do(ctx, http.MethodGet, "/api/videos/"+url.PathEscape(id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// VideoFields are the writable fields of a video record; nil fields are
// left untouched on update.
type VideoFields struct {
	Title       *string              `json:"title,omitempty"`
	Description *string              `json:"description,omitempty"`
	YouTubeID   *string              `json:"youtubeId,omitempty"`
	Category    *string              `json:"category,omitempty"`
	Tags        *map[string][]string `json:"tags,omitempty"`
	IsPublic    *bool                `json:"isPublic,omitempty"`
}

type createVideoRequest struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	YouTubeID   string              `json:"youtubeId"`
	Category    string              `json:"category"`
	Tags        map[string][]string `json:"tags"`
	IsPublic    *bool               `json:"isPublic,omitempty"`
}

// CreateVideo uploads a new video record.
func (c *Client) CreateVideo(ctx context.Context, title, description, youtubeID, category string, tags map[string][]string, isPublic *bool) (*catalog.Video, error) {
	var v catalog.Video
	err := c.do(ctx, http.MethodPost, "/api/videos", createVideoRequest{
		Title:       title,
		Description: description,
		YouTubeID:   youtubeID,
		Category:    category,
		Tags:        tags,
		IsPublic:    isPublic,
	}, &v)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpdateVideo applies a partial edit to a video the caller owns.
func (c *Client) UpdateVideo(ctx context.Context, id string, fields VideoFields) (*catalog.Video, error) {
	var v catalog.Video
	if err := c.do(ctx, http.MethodPatch, "/api/videos/"+url.PathEscape(id), fields, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// DeleteVideo removes a video the caller owns.
func (c *Client) DeleteVideo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/videos/"+url.PathEscape(id), nil, nil)
}

// ListTagGroups returns a category's tag groups in creation order.
func (c *Client) ListTagGroups(ctx context.Context, category string) ([]catalog.TagGroup, error) {
	var groups []catalog.TagGroup
	err := c.do(ctx, http.MethodGet,
		"/api/categories/"+url.PathEscape(category)+"/tag-groups", nil, &groups)
	return groups, err
}

type createTagGroupRequest struct {
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

// CreateTagGroup adds a taxonomy group to a category.
func (c *Client) CreateTagGroup(ctx context.Context, category, name string, tags []string) (*catalog.TagGroup, error) {
	var g catalog.TagGroup
	err := c.do(ctx, http.MethodPost, "/api/tag-groups",
		createTagGroupRequest{Name: name, Tags: tags, Category: category}, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// TagGroupFields are the writable fields of a tag group.
type TagGroupFields struct {
	Name *string   `json:"name,omitempty"`
	Tags *[]string `json:"tags,omitempty"`
}

// UpdateTagGroup applies a partial edit to a tag group the caller owns.
func (c *Client) UpdateTagGroup(ctx context.Context, id string, fields TagGroupFields) (*catalog.TagGroup, error) {
	var g catalog.TagGroup
	if err := c.do(ctx, http.MethodPatch, "/api/tag-groups/"+url.PathEscape(id), fields, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteTagGroup removes a tag group the caller owns.
func (c *Client) DeleteTagGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tag-groups/"+url.PathEscape(id), nil, nil)
}

// ListGalleries returns the public gallery directory.
func (c *Client) ListGalleries(ctx context.Context) ([]gallery.Gallery, error) {
	var galleries []gallery.Gallery
	err := c.do(ctx, http.MethodGet, "/api/galleries", nil, &galleries)
	return galleries, err
}

// GetGallery resolves one gallery by its category slug.
func (c *Client) GetGallery(ctx context.Context, category string) (*gallery.Gallery, error) {
	var g gallery.Gallery
	err := c.do(ctx, http.MethodGet, "/api/galleries/"+url.PathEscape(category), nil, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListMyGalleries returns the signed-in user's galleries.
func (c *Client) ListMyGalleries(ctx context.Context) ([]gallery.Gallery, error) {
	var galleries []gallery.Gallery
	err := c.do(ctx, http.MethodGet, "/api/galleries/mine", nil, &galleries)
	return galleries, err
}

type createGalleryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsPublic    *bool  `json:"isPublic,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// CreateGallery claims a category slug for a new gallery. A duplicate
// category comes back as the server's conflict message.
func (c *Client) CreateGallery(ctx context.Context, name, description, category, icon string, isPublic *bool) (*gallery.Gallery, error) {
	var g gallery.Gallery
	err := c.do(ctx, http.MethodPost, "/api/galleries", createGalleryRequest{
		Name:        name,
		Description: description,
		Category:    category,
		Icon:        icon,
		IsPublic:    isPublic,
	}, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
