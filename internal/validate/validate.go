package validate

import (
	"fmt"
	"regexp"
)

// Text field length limits, shared between API validation and error messages.
const (
	MaxTitleLength              = 200
	MaxDescriptionLength        = 2000
	MaxTagGroupNameLength       = 50
	MaxTagNameLength            = 50
	MaxGalleryNameLength        = 100
	MaxGalleryDescriptionLength = 500
	MaxCategoryLength           = 50
	MaxUsernameLength           = 30

	MinUsernameLength    = 3
	MinGalleryNameLength = 3
	MinCategoryLength    = 3
)

// categoryRegex matches URL-safe gallery slugs: lowercase letters, digits,
// and hyphens only.
var categoryRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

// youtubeIDRegex matches the 11-character video identifiers YouTube issues.
var youtubeIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string       { return checkLen(s, MaxTitleLength, "title") }
func Description(s string) string { return checkLen(s, MaxDescriptionLength, "description") }
func TagGroupName(s string) string {
	return checkLen(s, MaxTagGroupNameLength, "tag group name")
}
func TagName(s string) string { return checkLen(s, MaxTagNameLength, "tag name") }
func GalleryDescription(s string) string {
	return checkLen(s, MaxGalleryDescriptionLength, "gallery description")
}

func Username(s string) string {
	if len(s) < MinUsernameLength {
		return fmt.Sprintf("username must be at least %d characters", MinUsernameLength)
	}
	return checkLen(s, MaxUsernameLength, "username")
}

func GalleryName(s string) string {
	if len(s) < MinGalleryNameLength {
		return fmt.Sprintf("gallery name must be at least %d characters long", MinGalleryNameLength)
	}
	return checkLen(s, MaxGalleryNameLength, "gallery name")
}

func Category(s string) string {
	if len(s) < MinCategoryLength {
		return fmt.Sprintf("category must be at least %d characters long", MinCategoryLength)
	}
	if msg := checkLen(s, MaxCategoryLength, "category"); msg != "" {
		return msg
	}
	if !categoryRegex.MatchString(s) {
		return "category can only contain lowercase letters, numbers, and hyphens"
	}
	return ""
}

func YouTubeID(s string) string {
	if !youtubeIDRegex.MatchString(s) {
		return "youtubeId must be a valid 11-character YouTube video id"
	}
	return ""
}

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"title":              MaxTitleLength,
		"description":        MaxDescriptionLength,
		"tagGroupName":       MaxTagGroupNameLength,
		"tagName":            MaxTagNameLength,
		"galleryName":        MaxGalleryNameLength,
		"galleryDescription": MaxGalleryDescriptionLength,
		"category":           MaxCategoryLength,
		"username":           MaxUsernameLength,
	}
}
