package notebook

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/churn-insight/dashboard/internal/metrics"
	"github.com/churn-insight/dashboard/pkg/logger"
	"github.com/churn-insight/dashboard/pkg/utils"
)

type Page struct {
	Entry  Entry
	Path   string
	Markup string
	Cached bool
}

// HTML marks the converted markup as trusted for templates. It was built by
// the converter and sanitised where it came from notebook content.
func (p *Page) HTML() template.HTML {
	return template.HTML(p.Markup)
}

type Status struct {
	Entry
	Available bool `json:"available"`
	Cached    bool `json:"cached"`
}

type Service struct {
	catalog   *Catalog
	converter *Converter
	cache     *Cache
	group     singleflight.Group
	log       *zap.Logger
}

func NewService(catalog *Catalog, converter *Converter, cache *Cache) *Service {
	if cache == nil {
		cache = NewCache(nil, nil)
	}
	return &Service{
		catalog:   catalog,
		converter: converter,
		cache:     cache,
		log:       logger.Named("notebook"),
	}
}

// RenderSlug looks slug up in the catalog and renders it.
func (s *Service) RenderSlug(ctx context.Context, slug string) (*Page, error) {
	entry, err := s.catalog.Lookup(slug)
	if err != nil {
		return nil, err
	}
	return s.Render(ctx, entry)
}

// Render returns the entry's markup, converting it on first use. A missing
// file yields *NotFoundError and a bad document *ConversionError; neither
// touches the cache.
func (s *Service) Render(ctx context.Context, entry Entry) (*Page, error) {
	abs, err := filepath.Abs(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notebook path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			metrics.NotebookRenders.WithLabelValues("not_found").Inc()
			return nil, s.notFound(abs)
		}
		return nil, fmt.Errorf("failed to stat notebook: %w", err)
	}

	remoteKey := utils.HashParts(abs,
		strconv.FormatInt(info.ModTime().UnixNano(), 10),
		strconv.FormatInt(info.Size(), 10),
	)

	if markup, ok := s.cache.Get(ctx, abs, remoteKey); ok {
		metrics.NotebookRenders.WithLabelValues("cached").Inc()
		return &Page{Entry: entry, Path: abs, Markup: markup, Cached: true}, nil
	}

	v, err, _ := s.group.Do(abs, func() (interface{}, error) {
		if markup, ok := s.cache.Peek(abs); ok {
			return markup, nil
		}
		return s.convert(ctx, abs, remoteKey)
	})
	if err != nil {
		var convErr *ConversionError
		if errors.As(err, &convErr) {
			metrics.NotebookRenders.WithLabelValues("conversion_error").Inc()
		}
		return nil, err
	}

	metrics.NotebookRenders.WithLabelValues("rendered").Inc()
	return &Page{Entry: entry, Path: abs, Markup: v.(string)}, nil
}

func (s *Service) convert(ctx context.Context, abs, remoteKey string) (string, error) {
	start := time.Now()

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", s.notFound(abs)
		}
		return "", fmt.Errorf("failed to read notebook: %w", err)
	}

	markup, err := s.converter.Convert(data)
	if err == nil {
		markup, err = Postprocess(markup)
	}
	metrics.NotebookConversionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Warn("Notebook conversion failed", zap.String("path", abs), zap.Error(err))
		return "", &ConversionError{Path: abs, Err: err}
	}

	s.cache.Set(ctx, abs, remoteKey, markup)

	s.log.Info("Notebook converted",
		zap.String("path", abs),
		zap.Int("bytes", len(markup)),
		zap.Int("cached_notebooks", s.cache.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return markup, nil
}

func (s *Service) notFound(abs string) error {
	wd, err := os.Getwd()
	if err != nil {
		wd = "unknown"
	}
	return &NotFoundError{Path: abs, WorkDir: wd}
}

// Statuses reports, for each catalog entry in order, whether its file exists
// and whether it is already rendered in process.
func (s *Service) Statuses() []Status {
	entries := s.catalog.Entries()
	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		st := Status{Entry: e}
		if abs, err := filepath.Abs(e.Path); err == nil {
			if info, err := os.Stat(abs); err == nil && !info.IsDir() {
				st.Available = true
			}
			_, st.Cached = s.cache.Peek(abs)
		}
		out = append(out, st)
	}
	return out
}
