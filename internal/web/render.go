// Package web holds the server-rendered pages of both dashboards.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/churn-insight/dashboard/internal/attribution"
	"github.com/churn-insight/dashboard/internal/inference"
	"github.com/churn-insight/dashboard/internal/notebook"
	"github.com/churn-insight/dashboard/internal/schema"
)

//go:embed templates/*.html static/*
var assets embed.FS

const (
	PageHome     = "home"
	PagePredict  = "predict"
	PageNotebook = "notebook"
	PageError    = "error"
)

var pageNames = []string{PageHome, PagePredict, PageNotebook, PageError}

type NavItem struct {
	Label     string
	Href      string
	Active    bool
	Available bool
}

// Layout is the shared frame of every page.
type Layout struct {
	Title string
	Nav   []NavItem
}

type HomeData struct {
	Layout
	Notebooks        []notebook.Status
	InferenceEnabled bool
}

type ResultView struct {
	*inference.Result
	Waterfall template.HTML
	Bar       template.HTML
	Force     template.HTML
}

func NewResultView(r *inference.Result) *ResultView {
	return &ResultView{
		Result:    r,
		Waterfall: attribution.WaterfallSVG(r.Views.Waterfall),
		Bar:       attribution.BarSVG(r.Views.Bar),
		Force:     attribution.ForceSVG(r.Views.Force),
	}
}

type PredictData struct {
	Layout
	Schema  *schema.Schema
	Form    inference.Form
	Values  map[string]float64
	Result  *ResultView
	Invalid *inference.ValidationError
	Error   string
}

type NotebookData struct {
	Layout
	Page *notebook.Page
}

type ErrorData struct {
	Layout
	Heading  string
	Message  string
	NotFound *notebook.NotFoundError
}

type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"formatValue": attribution.FormatValue,
	"probability": func(p *float64) string {
		if p == nil {
			return ""
		}
		return fmt.Sprintf("%.2f", *p)
	},
	"selected": func(current float64, option int) bool {
		return current == float64(option)
	},
	"valueName": func(names []string, i int) string {
		if i < len(names) {
			return fmt.Sprintf("%d (%s)", i, names[i])
		}
		return fmt.Sprint(i)
	},
}

func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(assets,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render executes page into a buffer first so a template error never leaves a
// half-written response.
func (r *Renderer) Render(w io.Writer, page string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("failed to render %s: %w", page, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Static is the stylesheet and image directory served under /static.
func Static() fs.FS {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
