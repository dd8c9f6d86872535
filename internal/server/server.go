package server

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/reelgrid/reelgrid/internal/auth"
	"github.com/reelgrid/reelgrid/internal/catalog"
	"github.com/reelgrid/reelgrid/internal/database"
	"github.com/reelgrid/reelgrid/internal/gallery"
	"github.com/reelgrid/reelgrid/internal/httputil"
	"github.com/reelgrid/reelgrid/internal/ratelimit"
	"github.com/reelgrid/reelgrid/internal/storage"
	"github.com/reelgrid/reelgrid/internal/validate"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	DB            database.DBTX
	Pinger        Pinger
	AvatarStorage *storage.Storage
	WebFS         fs.FS
	JWTSecret     string
	BaseURL       string
	OAuth         *auth.OAuthConfig
}

type Server struct {
	router         chi.Router
	pinger         Pinger
	authHandler    *auth.Handler
	catalogHandler *catalog.Handler
	galleryHandler *gallery.Handler
	webFS          fs.FS
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{BaseURL: cfg.BaseURL}))

	s := &Server{router: r, pinger: cfg.Pinger, webFS: cfg.WebFS}

	if cfg.DB != nil {
		jwtSecret := cfg.JWTSecret
		if jwtSecret == "" {
			log.Fatal("JWT_SECRET is required; set the environment variable")
		}

		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:8080"
		}

		secureCookies := strings.HasPrefix(baseURL, "https://")
		s.authHandler = auth.NewHandler(cfg.DB, jwtSecret, secureCookies)
		if cfg.AvatarStorage != nil {
			s.authHandler.SetAvatarStorage(cfg.AvatarStorage)
		}
		if cfg.OAuth != nil {
			s.authHandler.SetOAuth(*cfg.OAuth)
		}
		s.catalogHandler = catalog.NewHandler(cfg.DB)
		s.galleryHandler = gallery.NewHandler(cfg.DB)
	}

	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/limits", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, validate.FieldLimits())
	})

	if s.authHandler != nil {
		authLimiter := ratelimit.NewLimiter(0.5, 5)
		s.router.Route("/api/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", s.authHandler.Register)
			r.Post("/login", s.authHandler.Login)
			r.Post("/refresh", s.authHandler.Refresh)
			r.Post("/logout", s.authHandler.Logout)
			r.Get("/facebook", s.authHandler.FacebookLogin)
			r.Get("/facebook/callback", s.authHandler.FacebookCallback)
			r.Group(func(r chi.Router) {
				r.Use(s.authHandler.Middleware)
				r.Get("/session", s.authHandler.Session)
				r.Patch("/profile", s.authHandler.UpdateProfile)
				r.Post("/profile/avatar-upload", s.authHandler.AvatarUploadURL)
			})
		})
	}

	if s.catalogHandler != nil {
		// Reads are open to everyone; a valid bearer token widens the
		// visible set to the caller's own private records.
		s.router.Group(func(r chi.Router) {
			r.Use(s.authHandler.OptionalMiddleware)
			r.Get("/api/categories/{category}/videos", s.catalogHandler.ListByCategory)
			r.Get("/api/categories/{category}/tag-groups", s.catalogHandler.ListTagGroups)
			r.Get("/api/videos/{videoID}", s.catalogHandler.Get)
		})

		writeLimiter := ratelimit.NewLimiter(2, 10)
		s.router.Group(func(r chi.Router) {
			r.Use(writeLimiter.Middleware)
			r.Use(s.authHandler.Middleware)
			r.Post("/api/videos", s.catalogHandler.Create)
			r.Patch("/api/videos/{videoID}", s.catalogHandler.Update)
			r.Delete("/api/videos/{videoID}", s.catalogHandler.Delete)
			r.Post("/api/tag-groups", s.catalogHandler.CreateTagGroup)
			r.Patch("/api/tag-groups/{groupID}", s.catalogHandler.UpdateTagGroup)
			r.Delete("/api/tag-groups/{groupID}", s.catalogHandler.DeleteTagGroup)
		})
	}

	if s.galleryHandler != nil {
		s.router.Get("/api/galleries", s.galleryHandler.ListPublic)
		s.router.Get("/api/galleries/{category}", s.galleryHandler.GetByCategory)
		s.router.Group(func(r chi.Router) {
			r.Use(s.authHandler.Middleware)
			r.Get("/api/galleries/mine", s.galleryHandler.ListMine)
			r.Post("/api/galleries", s.galleryHandler.Create)
		})
	}

	// Page routes. Static paths win over the {category} wildcard, so
	// the app shell keeps its routes and everything else is a gallery.
	spa := http.NotFoundHandler()
	if s.webFS != nil {
		spa = newSPAFileServer(s.webFS)
	}
	for _, path := range []string{"/", "/register", "/login", "/auth/callback"} {
		s.router.Get(path, spa.ServeHTTP)
	}
	s.router.Route("/dashboard", func(r chi.Router) {
		r.Use(requireSessionHint)
		r.Get("/", spa.ServeHTTP)
		r.Get("/galleries", spa.ServeHTTP)
		r.Get("/create", spa.ServeHTTP)
	})

	if s.catalogHandler != nil {
		s.router.Get("/{category}", s.handleGalleryPage)
		s.router.Get("/{category}/video/{videoID}", s.handleVideoPage)
	}
	s.router.Route("/{category}/upload", func(r chi.Router) {
		r.Use(requireSessionHint)
		r.Get("/", spa.ServeHTTP)
	})
	s.router.Route("/{category}/manage", func(r chi.Router) {
		r.Use(requireSessionHint)
		r.Get("/", spa.ServeHTTP)
	})
	s.router.Route("/{category}/tags", func(r chi.Router) {
		r.Use(requireSessionHint)
		r.Get("/", spa.ServeHTTP)
	})

	s.router.NotFound(spa.ServeHTTP)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"database unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
