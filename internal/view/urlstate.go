package view

import (
	"encoding/json"
	"net/url"
)

// State is the transient browsing state for one gallery view. It is not
// persisted anywhere except the query string, and is rebuilt from the
// query string on view entry.
type State struct {
	Search   string
	Tags     map[string][]string
	Page     int
	PageSize int
}

// NewState returns the state a visitor lands on with a bare URL.
func NewState() State {
	return State{
		Tags:     map[string][]string{},
		Page:     1,
		PageSize: DefaultPageSize,
	}
}

// ParseQuery rebuilds browsing state from query parameters. The tags
// parameter is a JSON object mapping group name to selected tags; a
// value that does not decode degrades to no selection rather than
// surfacing an error to the visitor.
func ParseQuery(q url.Values) State {
	s := NewState()
	s.Search = q.Get("search")

	if raw := q.Get("tags"); raw != "" {
		var tags map[string][]string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil && tags != nil {
			s.Tags = tags
		}
	}
	return s
}

// Query serializes the shareable part of the state. Empty search terms
// and empty tag selections are omitted entirely so a default view keeps
// a clean URL.
func (s State) Query() url.Values {
	q := url.Values{}
	if s.Search != "" {
		q.Set("search", s.Search)
	}
	if s.hasSelections() {
		encoded, err := json.Marshal(s.Tags)
		if err == nil {
			q.Set("tags", string(encoded))
		}
	}
	return q
}

func (s State) hasSelections() bool {
	for _, tags := range s.Tags {
		if len(tags) > 0 {
			return true
		}
	}
	return false
}

// SetSearch replaces the search term and returns to the first page.
func (s *State) SetSearch(term string) {
	s.Search = term
	s.Page = 1
}

// ToggleTag adds the tag to the group's selection if absent, removes it
// if present, and returns to the first page. A group whose last tag is
// removed is dropped from the mapping so it no longer constrains
// matching or appears in the URL.
func (s *State) ToggleTag(group, tag string) {
	if s.Tags == nil {
		s.Tags = map[string][]string{}
	}

	current := s.Tags[group]
	for i, t := range current {
		if t == tag {
			current = append(current[:i], current[i+1:]...)
			if len(current) == 0 {
				delete(s.Tags, group)
			} else {
				s.Tags[group] = current
			}
			s.Page = 1
			return
		}
	}
	s.Tags[group] = append(current, tag)
	s.Page = 1
}

// SetPageSize switches to a permitted page size and returns to the
// first page.
func (s *State) SetPageSize(size int) {
	s.PageSize = NormalizePageSize(size)
	s.Page = 1
}

// SetPage moves to the requested page without touching filters.
func (s *State) SetPage(number int) {
	if number < 1 {
		number = 1
	}
	s.Page = number
}
