// Package view implements the gallery browsing engine: tag and title
// filtering, page slicing, and query-string state for shareable views.
package view

import "strings"

// Video is the slice of a catalog record the browsing engine needs.
// Tags maps a group name to the tags the video carries in that group;
// a missing group key means the video has no tags in that group.
type Video struct {
	ID     string
	Title  string
	Tags   map[string][]string
	Public bool
}

// Filter returns the videos matching both the search term and the
// selected tags, preserving input order. Selection is conjunctive: a
// video matches only when, for every group with at least one selected
// tag, its tag list for that group contains every selected tag. A video
// with no entry for such a group does not match. The search term is a
// case-insensitive substring match against the title; an empty term
// matches everything.
func Filter(videos []Video, search string, selected map[string][]string) []Video {
	term := strings.ToLower(strings.TrimSpace(search))

	out := make([]Video, 0, len(videos))
	for _, v := range videos {
		if term != "" && !strings.Contains(strings.ToLower(v.Title), term) {
			continue
		}
		if !matchesTags(v.Tags, selected) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func matchesTags(have map[string][]string, selected map[string][]string) bool {
	for group, wanted := range selected {
		if len(wanted) == 0 {
			continue
		}
		tags, ok := have[group]
		if !ok {
			return false
		}
		for _, w := range wanted {
			if !containsTag(tags, w) {
				return false
			}
		}
	}
	return true
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
