package notebook

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/x/ansi"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const supportedMajorVersion = 4

// multiline is an nbformat text field, stored either as a string or as a list
// of lines to concatenate.
type multiline string

func (m *multiline) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = multiline(s)
		return nil
	}

	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*m = multiline(strings.Join(lines, ""))
	return nil
}

type document struct {
	NBFormat      int          `json:"nbformat"`
	NBFormatMinor int          `json:"nbformat_minor"`
	Metadata      documentMeta `json:"metadata"`
	Cells         []cell       `json:"cells"`
}

type documentMeta struct {
	LanguageInfo struct {
		Name string `json:"name"`
	} `json:"language_info"`
	Kernelspec struct {
		Language string `json:"language"`
	} `json:"kernelspec"`
}

type cell struct {
	CellType       string    `json:"cell_type"`
	Source         multiline `json:"source"`
	ExecutionCount *int      `json:"execution_count"`
	Outputs        []output  `json:"outputs"`
	// Attachments are markdown-cell images by file name, each a mime bundle of
	// base64 data.
	Attachments map[string]map[string]string `json:"attachments"`
	Metadata    struct {
		Format      string `json:"format"`
		RawMimetype string `json:"raw_mimetype"`
	} `json:"metadata"`
}

type output struct {
	OutputType     string                     `json:"output_type"`
	Name           string                     `json:"name"`
	Text           multiline                  `json:"text"`
	Data           map[string]json.RawMessage `json:"data"`
	ExecutionCount *int                       `json:"execution_count"`
	EName          string                     `json:"ename"`
	EValue         string                     `json:"evalue"`
	Traceback      []string                   `json:"traceback"`
}

// mimePriority is the order rich outputs are picked in when a result offers
// several representations.
var mimePriority = []string{
	"text/html",
	"text/markdown",
	"image/svg+xml",
	"image/png",
	"image/jpeg",
	"text/plain",
}

// Converter renders nbformat v4 documents as classic-layout HTML.
type Converter struct {
	markdown  goldmark.Markdown
	formatter *chromahtml.Formatter
	style     *chroma.Style
	policy    *bluemonday.Policy
}

func NewConverter(codeStyle string) *Converter {
	policy := bluemonday.UGCPolicy()
	policy.AllowDataURIImages()
	policy.AllowAttrs("class").Globally()

	return &Converter{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		formatter: chromahtml.New(chromahtml.WithClasses(false)),
		style:     styles.Get(codeStyle),
		policy:    policy,
	}
}

// Convert returns the notebook body wrapped in a notebook-container div.
func (c *Converter) Convert(data []byte) (string, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("invalid notebook json: %w", err)
	}
	if doc.NBFormat != supportedMajorVersion {
		return "", fmt.Errorf("%w: nbformat %d", ErrUnsupportedFormat, doc.NBFormat)
	}

	language := doc.Metadata.LanguageInfo.Name
	if language == "" {
		language = doc.Metadata.Kernelspec.Language
	}
	if language == "" {
		language = "python"
	}

	var b strings.Builder
	b.WriteString(`<div class="notebook-container">`)
	for i, cl := range doc.Cells {
		var err error
		switch cl.CellType {
		case "markdown":
			err = c.writeMarkdownCell(&b, inlineAttachments(string(cl.Source), cl.Attachments))
		case "code":
			err = c.writeCodeCell(&b, language, cl)
		case "raw":
			c.writeRawCell(&b, cl)
		default:
			err = fmt.Errorf("%w: cell type %q", ErrUnsupportedFormat, cl.CellType)
		}
		if err != nil {
			return "", fmt.Errorf("cell %d: %w", i, err)
		}
	}
	b.WriteString(`</div>`)

	return b.String(), nil
}

func (c *Converter) renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := c.markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return c.policy.Sanitize(buf.String()), nil
}

func (c *Converter) writeMarkdownCell(b *strings.Builder, src string) error {
	rendered, err := c.renderMarkdown(src)
	if err != nil {
		return err
	}

	b.WriteString(`<div class="cell border-box-sizing text_cell rendered">`)
	b.WriteString(`<div class="prompt input_prompt"></div>`)
	b.WriteString(`<div class="inner_cell"><div class="text_cell_render border-box-sizing rendered_html">`)
	b.WriteString(rendered)
	b.WriteString(`</div></div></div>`)
	return nil
}

func (c *Converter) writeCodeCell(b *strings.Builder, language string, cl cell) error {
	b.WriteString(`<div class="cell border-box-sizing code_cell rendered">`)
	b.WriteString(`<div class="input">`)
	fmt.Fprintf(b, `<div class="prompt input_prompt">%s</div>`, prompt("In", cl.ExecutionCount))
	b.WriteString(`<div class="inner_cell"><div class="input_area"><div class="highlight">`)
	if err := c.highlight(b, language, string(cl.Source)); err != nil {
		return err
	}
	b.WriteString(`</div></div></div></div>`)

	if len(cl.Outputs) > 0 {
		b.WriteString(`<div class="output_wrapper"><div class="output">`)
		for _, out := range cl.Outputs {
			if err := c.writeOutput(b, out); err != nil {
				return err
			}
		}
		b.WriteString(`</div></div>`)
	}

	b.WriteString(`</div>`)
	return nil
}

// Raw cells only pass through when they declare HTML.
func (c *Converter) writeRawCell(b *strings.Builder, cl cell) {
	format := cl.Metadata.Format
	if format == "" {
		format = cl.Metadata.RawMimetype
	}
	if format != "text/html" {
		return
	}
	b.WriteString(`<div class="cell border-box-sizing raw_cell rendered">`)
	b.WriteString(c.policy.Sanitize(string(cl.Source)))
	b.WriteString(`</div>`)
}

func (c *Converter) highlight(w io.Writer, language, source string) error {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return fmt.Errorf("failed to tokenise code: %w", err)
	}
	if err := c.formatter.Format(w, c.style, iterator); err != nil {
		return fmt.Errorf("failed to highlight code: %w", err)
	}
	return nil
}

func (c *Converter) writeOutput(b *strings.Builder, out output) error {
	switch out.OutputType {
	case "stream":
		name := out.Name
		if name == "" {
			name = "stdout"
		}
		b.WriteString(`<div class="output_area"><div class="prompt"></div>`)
		fmt.Fprintf(b, `<div class="output_subarea output_stream output_%s output_text"><pre>%s</pre></div>`,
			html.EscapeString(name), escapeTerminal(string(out.Text)))
		b.WriteString(`</div>`)

	case "execute_result", "display_data":
		label := ""
		if out.OutputType == "execute_result" {
			label = prompt("Out", out.ExecutionCount)
		}
		b.WriteString(`<div class="output_area">`)
		fmt.Fprintf(b, `<div class="prompt output_prompt">%s</div>`, label)
		if err := c.writeRichData(b, out.Data); err != nil {
			return err
		}
		b.WriteString(`</div>`)

	case "error":
		trace := strings.Join(out.Traceback, "\n")
		if trace == "" {
			trace = out.EName + ": " + out.EValue
		}
		b.WriteString(`<div class="output_area"><div class="prompt"></div>`)
		fmt.Fprintf(b, `<div class="output_subarea output_text output_error"><pre>%s</pre></div>`, escapeTerminal(trace))
		b.WriteString(`</div>`)

	default:
		return fmt.Errorf("%w: output type %q", ErrUnsupportedFormat, out.OutputType)
	}
	return nil
}

func (c *Converter) writeRichData(b *strings.Builder, data map[string]json.RawMessage) error {
	for _, mime := range mimePriority {
		raw, ok := data[mime]
		if !ok {
			continue
		}

		var value multiline
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("output %s: %w", mime, err)
		}

		switch mime {
		case "text/html":
			fmt.Fprintf(b, `<div class="output_html rendered_html output_subarea">%s</div>`, c.policy.Sanitize(string(value)))
		case "text/markdown":
			rendered, err := c.renderMarkdown(string(value))
			if err != nil {
				return err
			}
			fmt.Fprintf(b, `<div class="output_markdown rendered_html output_subarea">%s</div>`, rendered)
		case "image/svg+xml":
			// Inline SVG can carry script, so it is shown through an img element.
			fmt.Fprintf(b, `<div class="output_svg output_subarea"><img src="data:image/svg+xml;base64,%s"></div>`,
				base64.StdEncoding.EncodeToString([]byte(value)))
		case "image/png", "image/jpeg":
			fmt.Fprintf(b, `<div class="output_%s output_subarea"><img src="data:%s;base64,%s"></div>`,
				strings.TrimPrefix(mime, "image/"), mime, html.EscapeString(stripSpace(string(value))))
		case "text/plain":
			fmt.Fprintf(b, `<div class="output_text output_subarea"><pre>%s</pre></div>`, escapeTerminal(string(value)))
		}
		return nil
	}

	// Nothing displayable, e.g. a widget or javascript payload.
	return nil
}

// attachmentMimes are the attachment types the sanitiser keeps as data URIs.
var attachmentMimes = []string{"image/png", "image/jpeg", "image/gif"}

// inlineAttachments rewrites attachment:<name> references in markdown source
// to data URIs. References to missing or unsupported attachments are left as is.
func inlineAttachments(src string, attachments map[string]map[string]string) string {
	if len(attachments) == 0 || !strings.Contains(src, "attachment:") {
		return src
	}

	names := make([]string, 0, len(attachments))
	for name := range attachments {
		names = append(names, name)
	}
	// Longer names first so "a.png" never shadows "a.png.bak".
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	var pairs []string
	for _, name := range names {
		bundle := attachments[name]
		for _, mime := range attachmentMimes {
			data, ok := bundle[mime]
			if !ok {
				continue
			}
			uri := "data:" + mime + ";base64," + stripSpace(data)
			pairs = append(pairs, "attachment:"+name, uri)
			if escaped := url.PathEscape(name); escaped != name {
				pairs = append(pairs, "attachment:"+escaped, uri)
			}
			break
		}
	}
	if len(pairs) == 0 {
		return src
	}
	return strings.NewReplacer(pairs...).Replace(src)
}

func prompt(kind string, count *int) string {
	if count == nil {
		return kind + "&nbsp;[&nbsp;]:"
	}
	return fmt.Sprintf("%s&nbsp;[%d]:", kind, *count)
}

func escapeTerminal(s string) string {
	return html.EscapeString(ansi.Strip(s))
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}
