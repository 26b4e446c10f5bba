// Package reader serves the viewer UI, its REST API and the live viewer
// websocket.
package reader

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/masskarem1/PHYS.101-Ebook/internal/aiproxy"
	"github.com/masskarem1/PHYS.101-Ebook/internal/annotate"
	"github.com/masskarem1/PHYS.101-Ebook/internal/auth"
	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/pages"
	"github.com/masskarem1/PHYS.101-Ebook/internal/search"
)

// apiTimeout bounds REST calls. AI calls retry with backoff, so it is
// generous.
const apiTimeout = 3 * time.Minute

// Deps are the reader's collaborators. Search, Helper and History may be
// nil.
type Deps struct {
	Config      *config.Config
	Assets      fs.FS
	Loader      *pages.Loader
	Persistence *annotate.Persistence
	Search      *search.Service
	Helper      *aiproxy.Helper
	History     *aiproxy.SQLRecorder
	Auth        *auth.Store
	Log         zerolog.Logger
}

// Reader provides the page-flip viewer and its API.
type Reader struct {
	cfg      *config.Config
	assets   fs.FS
	loader   *pages.Loader
	persist  *annotate.Persistence
	search   *search.Service
	helper   *aiproxy.Helper
	history  *aiproxy.SQLRecorder
	auth     *auth.Store
	settings annotate.Settings
	log      zerolog.Logger
}

// New creates a Reader. The annotation settings in the configuration must
// already be valid.
func New(d Deps) (*Reader, error) {
	settings, err := annotate.SettingsFrom(d.Config.Annotate)
	if err != nil {
		return nil, err
	}
	return &Reader{
		cfg:      d.Config,
		assets:   d.Assets,
		loader:   d.Loader,
		persist:  d.Persistence,
		search:   d.Search,
		helper:   d.Helper,
		history:  d.History,
		auth:     d.Auth,
		settings: settings,
		log:      d.Log.With().Str("component", "reader").Logger(),
	}, nil
}

// RegisterRoutes mounts the UI, assets, API and websocket onto r.
func (rd *Reader) RegisterRoutes(r chi.Router) {
	r.Get("/", rd.ServeIndex)
	if rd.assets != nil {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.FS(rd.assets))))
	}

	r.Get("/api/book", rd.handleBook)
	r.Post("/api/login", rd.handleLogin)
	r.Get("/api/login", rd.handleLoginStatus)
	r.Delete("/api/login", rd.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(rd.auth.Middleware)
		r.Get("/ws/viewer", rd.handleViewer)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(apiTimeout))
			r.Get("/api/thumbnails", rd.handleThumbnails)
			r.Get("/api/search", rd.handleSearch)
			r.Get("/api/pages/{page}/text", rd.handlePageText)
			r.Get("/api/annotations", rd.handleListAnnotations)
			r.Get("/api/annotations/{page}", rd.handleGetAnnotation)
			r.Delete("/api/annotations/{page}", rd.handleDeleteAnnotation)
			r.Post("/api/ai/ask", rd.handleAsk)
			r.Post("/api/ai/translate", rd.handleTranslate)
			r.Get("/api/ai/history", rd.handleHistory)
		})
	})
}
