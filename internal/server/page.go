package server

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/reelgrid/reelgrid/internal/catalog"
	"github.com/reelgrid/reelgrid/internal/httputil"
	"github.com/reelgrid/reelgrid/internal/view"
)

var galleryPageTemplate = template.Must(template.New("gallery").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Category}}</title>
    <style nonce="{{.Nonce}}">
        body { margin: 0; font-family: system-ui, sans-serif; background: #0f1014; color: #e8e8ea; }
        header { padding: 1.5rem 2rem; border-bottom: 1px solid #26272e; }
        h1 { margin: 0; font-size: 1.4rem; text-transform: capitalize; }
        main { padding: 1.5rem 2rem; max-width: 1100px; margin: 0 auto; }
        form.search { margin-bottom: 1rem; }
        form.search input { padding: 0.5rem 0.75rem; width: 280px; background: #1a1b21; color: inherit; border: 1px solid #33343c; border-radius: 6px; }
        .groups { margin-bottom: 1.5rem; }
        .group { margin-bottom: 0.5rem; }
        .group span.name { color: #9a9aa4; margin-right: 0.5rem; font-size: 0.85rem; }
        .group a { display: inline-block; margin: 0 0.35rem 0.35rem 0; padding: 0.25rem 0.7rem; border-radius: 999px; border: 1px solid #33343c; color: inherit; text-decoration: none; font-size: 0.85rem; }
        .group a.on { background: #2d4a8a; border-color: #2d4a8a; }
        .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(240px, 1fr)); gap: 1rem; }
        .card { background: #1a1b21; border-radius: 8px; overflow: hidden; text-decoration: none; color: inherit; }
        .card img { width: 100%; aspect-ratio: 16/9; object-fit: cover; display: block; background: #000; }
        .card p { margin: 0; padding: 0.6rem 0.8rem; font-size: 0.9rem; }
        .empty { color: #9a9aa4; padding: 2rem 0; }
        nav.pages { display: flex; align-items: center; gap: 1rem; margin-top: 1.5rem; }
        nav.pages a, nav.pages span.off { padding: 0.4rem 0.9rem; border: 1px solid #33343c; border-radius: 6px; color: inherit; text-decoration: none; }
        nav.pages span.off { opacity: 0.35; }
        .sizes a { margin-left: 0.5rem; color: #9a9aa4; text-decoration: none; }
        .sizes a.on { color: #e8e8ea; text-decoration: underline; }
    </style>
</head>
<body>
    <header><h1>{{.Category}}</h1></header>
    <main>
        <form class="search" method="get" action="/{{.Category}}">
            <input type="search" name="search" value="{{.Search}}" placeholder="Search titles">
            {{if .TagsParam}}<input type="hidden" name="tags" value="{{.TagsParam}}">{{end}}
        </form>
        <div class="groups">
        {{range .Groups}}
            <div class="group"><span class="name">{{.Name}}</span>
            {{range .Tags}}<a href="{{.URL}}"{{if .Selected}} class="on"{{end}}>{{.Name}}</a>{{end}}
            </div>
        {{end}}
        </div>
        {{if .Page.Items}}
        <div class="grid">
        {{range .Videos}}
            <a class="card" href="{{.URL}}"><img src="{{.ThumbURL}}" alt=""><p>{{.Title}}</p></a>
        {{end}}
        </div>
        {{else}}
        <p class="empty">No videos match the current filters.</p>
        {{end}}
        <nav class="pages">
            {{if .Page.HasPrev}}<a href="{{.PrevURL}}">Previous</a>{{else}}<span class="off">Previous</span>{{end}}
            <span>Page {{.Page.Number}}{{if .Page.TotalPages}} of {{.Page.TotalPages}}{{end}}</span>
            {{if .Page.HasNext}}<a href="{{.NextURL}}">Next</a>{{else}}<span class="off">Next</span>{{end}}
            <span class="sizes">Per page:{{range .Sizes}} <a href="{{.URL}}"{{if .Active}} class="on"{{end}}>{{.Size}}</a>{{end}}</span>
        </nav>
    </main>
    <script nonce="{{.Nonce}}">
        // Keep the address bar on the canonical form of the current
        // filters without growing the history stack.
        history.replaceState(null, "", {{.CanonicalURL}});
    </script>
</body>
</html>`))

var videoPageTemplate = template.Must(template.New("video").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style nonce="{{.Nonce}}">
        body { margin: 0; font-family: system-ui, sans-serif; background: #0f1014; color: #e8e8ea; }
        main { max-width: 900px; margin: 0 auto; padding: 2rem; }
        .player { position: relative; width: 100%; aspect-ratio: 16/9; }
        .player iframe { position: absolute; inset: 0; width: 100%; height: 100%; border: 0; border-radius: 8px; }
        h1 { font-size: 1.3rem; margin: 1rem 0 0.5rem; }
        p.desc { color: #b8b8c0; line-height: 1.5; }
        a.back { color: #8ab0f0; text-decoration: none; }
    </style>
</head>
<body>
    <main>
        <a class="back" href="/{{.Category}}">&larr; {{.Category}}</a>
        <div class="player">
            <iframe src="https://www.youtube-nocookie.com/embed/{{.YouTubeID}}"
                title="{{.Title}}" allow="encrypted-media; picture-in-picture"
                allowfullscreen></iframe>
        </div>
        <h1>{{.Title}}</h1>
        {{if .Description}}<p class="desc">{{.Description}}</p>{{end}}
    </main>
</body>
</html>`))

var pageNotFoundTemplate = template.Must(template.New("page-not-found").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Not found</title>
    <style nonce="{{.Nonce}}">
        body { margin: 0; font-family: system-ui, sans-serif; background: #0f1014; color: #e8e8ea; display: flex; align-items: center; justify-content: center; min-height: 100vh; }
    </style>
</head>
<body><p>This video does not exist or is private.</p></body>
</html>`))

var pageErrorTemplate = template.Must(template.New("page-error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <title>Something went wrong</title>
    <style nonce="{{.Nonce}}">
        body { margin: 0; font-family: system-ui, sans-serif; background: #0f1014; color: #e8e8ea; display: flex; align-items: center; justify-content: center; min-height: 100vh; }
    </style>
</head>
<body><p>The gallery could not be loaded. Try again in a moment.</p></body>
</html>`))

type tagLink struct {
	Name     string
	Selected bool
	URL      string
}

type tagGroupLinks struct {
	Name string
	Tags []tagLink
}

type videoCard struct {
	Title    string
	URL      string
	ThumbURL string
}

type sizeLink struct {
	Size   int
	Active bool
	URL    string
}

type galleryPageData struct {
	Nonce        string
	Category     string
	Search       string
	TagsParam    string
	Groups       []tagGroupLinks
	Videos       []videoCard
	Page         view.Page
	PrevURL      string
	NextURL      string
	Sizes        []sizeLink
	CanonicalURL string
}

// parsePageState extends the shareable query state with the page and
// pageSize parameters.
func parsePageState(q url.Values) view.State {
	state := view.ParseQuery(q)
	if size, err := strconv.Atoi(q.Get("pageSize")); err == nil {
		state.PageSize = view.NormalizePageSize(size)
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil {
		state.SetPage(page)
	}
	return state
}

// pageURL renders the full query string for a state, including the
// non-shareable page parameters when they differ from the defaults.
func pageURL(category string, state view.State) string {
	q := state.Query()
	if state.Page > 1 {
		q.Set("page", strconv.Itoa(state.Page))
	}
	if state.PageSize != view.DefaultPageSize {
		q.Set("pageSize", strconv.Itoa(state.PageSize))
	}
	if len(q) == 0 {
		return "/" + category
	}
	return "/" + category + "?" + q.Encode()
}

// handleGalleryPage renders a category's browsing view. Videos and tag
// groups load concurrently and the page renders only if both arrive;
// a failure of either shows the error page with nothing partial.
func (s *Server) handleGalleryPage(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	nonce := httputil.NonceFromContext(r.Context())
	state := parsePageState(r.URL.Query())

	var (
		wg        sync.WaitGroup
		videos    []catalog.Video
		groups    []catalog.TagGroup
		videosErr error
		groupsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		videos, videosErr = s.catalogHandler.CategoryVideos(r.Context(), category)
	}()
	go func() {
		defer wg.Done()
		groups, groupsErr = s.catalogHandler.CategoryTagGroups(r.Context(), category)
	}()
	wg.Wait()

	if videosErr != nil || groupsErr != nil {
		slog.Error("gallery page load failed",
			"category", category, "videos_err", videosErr, "groups_err", groupsErr)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		_ = pageErrorTemplate.Execute(w, struct{ Nonce string }{nonce})
		return
	}

	// The public page shows only public records; owners manage their
	// private ones through the app shell, which calls the API with a
	// bearer token.
	listing := make([]view.Video, 0, len(videos))
	byID := make(map[string]catalog.Video, len(videos))
	for _, v := range videos {
		if !v.IsPublic {
			continue
		}
		listing = append(listing, view.Video{ID: v.ID, Title: v.Title, Tags: v.Tags, Public: true})
		byID[v.ID] = v
	}

	filtered := view.Filter(listing, state.Search, state.Tags)
	page := view.Paginate(filtered, state.Page, state.PageSize)

	data := galleryPageData{
		Nonce:        nonce,
		Category:     category,
		Search:       state.Search,
		TagsParam:    state.Query().Get("tags"),
		Page:         page,
		CanonicalURL: pageURL(category, state),
	}

	for _, g := range groups {
		gl := tagGroupLinks{Name: g.Name}
		for _, tag := range g.Tags {
			toggled := state
			toggled.Tags = cloneTags(state.Tags)
			toggled.ToggleTag(g.Name, tag)
			gl.Tags = append(gl.Tags, tagLink{
				Name:     tag,
				Selected: hasTag(state.Tags[g.Name], tag),
				URL:      pageURL(category, toggled),
			})
		}
		data.Groups = append(data.Groups, gl)
	}

	for _, item := range page.Items {
		v := byID[item.ID]
		data.Videos = append(data.Videos, videoCard{
			Title:    v.Title,
			URL:      fmt.Sprintf("/%s/video/%s", category, v.ID),
			ThumbURL: fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", v.YouTubeID),
		})
	}

	if page.HasPrev {
		prev := state
		prev.Page = page.Number - 1
		data.PrevURL = pageURL(category, prev)
	}
	if page.HasNext {
		next := state
		next.Page = page.Number + 1
		data.NextURL = pageURL(category, next)
	}
	for _, size := range view.PageSizes {
		resized := state
		resized.SetPageSize(size)
		data.Sizes = append(data.Sizes, sizeLink{
			Size:   size,
			Active: size == state.PageSize,
			URL:    pageURL(category, resized),
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := galleryPageTemplate.Execute(w, data); err != nil {
		slog.Error("render gallery page", "error", err)
	}
}

func cloneTags(tags map[string][]string) map[string][]string {
	out := make(map[string][]string, len(tags))
	for group, list := range tags {
		out[group] = append([]string(nil), list...)
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

type videoPageData struct {
	Nonce       string
	Category    string
	Title       string
	Description string
	YouTubeID   string
}

// handleVideoPage renders a single video with its embedded player.
// Private and missing videos get the same not-found page.
func (s *Server) handleVideoPage(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	videoID := chi.URLParam(r, "videoID")
	nonce := httputil.NonceFromContext(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	v, err := s.catalogHandler.VideoByID(r.Context(), videoID)
	if err != nil || !v.IsPublic || v.Category != category {
		w.WriteHeader(http.StatusNotFound)
		_ = pageNotFoundTemplate.Execute(w, struct{ Nonce string }{nonce})
		return
	}

	data := videoPageData{
		Nonce:       nonce,
		Category:    category,
		Title:       v.Title,
		Description: v.Description,
		YouTubeID:   v.YouTubeID,
	}
	if err := videoPageTemplate.Execute(w, data); err != nil {
		slog.Error("render video page", "error", err)
	}
}
