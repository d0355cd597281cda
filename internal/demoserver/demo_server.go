package demoserver

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
)

// DemoServer serves deterministic fixture pages for suite runs against a
// known-good and known-broken set of visual states.
type DemoServer struct {
	cfg   Config
	pages map[string]PageDefinition
}

// NewDemoServer creates a new fixture server instance.
func NewDemoServer(cfg Config) *DemoServer {
	pageMap := make(map[string]PageDefinition)
	for _, p := range GetAllPages() {
		pageMap[p.Path] = p
	}
	return &DemoServer{cfg: cfg, pages: pageMap}
}

// Handler returns the chi router serving all fixture pages plus an index.
// Exposed separately from Start so tests can mount it on httptest.Server.
func (s *DemoServer) Handler() http.Handler {
	r := chi.NewRouter()

	for path, page := range s.pages {
		p := page
		r.Get(path, func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(p.HTML))
		})
	}

	r.Get("/", s.indexHandler)
	return r
}

// Start starts the fixture server.
func (s *DemoServer) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	fmt.Printf("Fixture server starting on http://localhost%s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *DemoServer) indexHandler(w http.ResponseWriter, r *http.Request) {
	paths := make([]string, 0, len(s.pages))
	for p := range s.pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<!DOCTYPE html>\n<html><head><title>miru fixtures</title></head><body><h1>Fixture pages</h1><ul>")
	for _, p := range paths {
		fmt.Fprintf(w, `<li><a href="%s">%s</a></li>`, p, s.pages[p].Title)
	}
	fmt.Fprint(w, "</ul></body></html>")
}
