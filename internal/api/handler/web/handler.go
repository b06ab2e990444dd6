package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"time"

	"github.com/newthinker/quantlens/internal/api/session"
	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/logger"
	"github.com/newthinker/quantlens/internal/pipeline"
	"github.com/newthinker/quantlens/internal/table"
	"go.uber.org/zap"
)

//go:embed templates/*
var templateFS embed.FS

// pages are the page templates; each is parsed together with the layout
// and the shared partials.
var pages = []string{"dashboard.html", "backtest.html"}

var shared = []string{"layout.html", "results.html"}

// Rejecter counts submissions refused before reaching a pipeline.
type Rejecter interface {
	RecordRejected(code string)
}

// Options wires a Handler to the result pipelines.
type Options struct {
	// Dashboard serves the precomputed results on the read-only page.
	Dashboard *session.Results
	// Sessions holds the interactive backtest pipelines.
	Sessions     *session.Store
	FormDefaults backtest.Parameters
	PageSize     int
	// WaitTimeout bounds how long a page waits for a submitted request
	// before rendering it as pending.
	WaitTimeout time.Duration
	Rejecter    Rejecter
	Logger      *zap.Logger
}

// Handler provides web UI handlers with template rendering
type Handler struct {
	// pageTemplates holds separate template instances for each page
	// Each instance contains layout.html + the specific page template
	pageTemplates map[string]*template.Template
	opts          Options
	logger        *zap.Logger
}

// NewHandler creates a new web handler with templates loaded from the given directory.
// If templatesDir is empty, it falls back to embedded templates.
func NewHandler(templatesDir string, opts Options) (*Handler, error) {
	if templatesDir == "" {
		return NewHandlerWithFS(TemplateFS(), opts)
	}

	pageTemplates := make(map[string]*template.Template)
	for _, page := range pages {
		files := templateFiles(page)
		for i, name := range files {
			files[i] = filepath.Join(templatesDir, name)
		}
		tmpl, err := template.ParseFiles(files...)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		pageTemplates[page] = tmpl
	}
	return newHandler(pageTemplates, opts), nil
}

// NewHandlerWithFS creates a new web handler using a custom filesystem.
// This is useful for testing or custom template sources.
func NewHandlerWithFS(fsys fs.FS, opts Options) (*Handler, error) {
	pageTemplates := make(map[string]*template.Template)
	for _, page := range pages {
		tmpl, err := template.ParseFS(fsys, templateFiles(page)...)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s from fs: %w", page, err)
		}
		pageTemplates[page] = tmpl
	}
	return newHandler(pageTemplates, opts), nil
}

func templateFiles(page string) []string {
	files := make([]string, 0, len(shared)+1)
	files = append(files, shared...)
	return append(files, page)
}

func newHandler(pageTemplates map[string]*template.Template, opts Options) *Handler {
	if opts.PageSize == 0 {
		opts.PageSize = table.DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{pageTemplates: pageTemplates, opts: opts, logger: opts.Logger}
}

// render executes the specified page template with the given data
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	tmpl, ok := h.pageTemplates[page]
	if !ok {
		http.Error(w, "template not found: "+page, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		logger.FromContext(r.Context()).Error("rendering page",
			zap.String("page", page),
			zap.Error(err),
		)
	}
}

// wait blocks until token settles or the configured wait timeout passes.
func (h *Handler) wait(ctx context.Context, p *pipeline.Pipeline, token uint64) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.WaitTimeout)
	defer cancel()
	if err := p.Wait(ctx, token); err != nil {
		logger.FromContext(ctx).Debug("rendering before result arrived",
			zap.Uint64("token", token),
			zap.Error(err),
		)
	}
}

// TemplateFS returns the embedded template filesystem for external use.
func TemplateFS() fs.FS {
	subFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		// This should never happen with valid embed directive
		return templateFS
	}
	return subFS
}
