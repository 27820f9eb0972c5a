package notebook

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

type Heading struct {
	Level int
	ID    string
	Text  string
}

// Postprocess gives every h1-h3 a stable unique id, marks images lazy, makes
// wide tables scroll and prepends an outline when the notebook has more than
// one heading.
func Postprocess(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	container := doc.Find("div.notebook-container").First()
	if container.Length() == 0 {
		return "", fmt.Errorf("markup has no notebook container")
	}

	headings := assignHeadingIDs(container)

	container.Find("img").Each(func(_ int, s *goquery.Selection) {
		s.SetAttr("loading", "lazy")
		if _, ok := s.Attr("alt"); !ok {
			s.SetAttr("alt", "")
		}
	})

	container.Find("table").Each(func(_ int, s *goquery.Selection) {
		if s.Parent().HasClass("table-scroll") {
			return
		}
		s.WrapHtml(`<div class="table-scroll"></div>`)
	})

	if len(headings) > 1 {
		container.PrependHtml(renderOutline(headings))
	}

	out, err := goquery.OuterHtml(container)
	if err != nil {
		return "", fmt.Errorf("failed to serialise markup: %w", err)
	}
	return out, nil
}

func assignHeadingIDs(container *goquery.Selection) []Heading {
	used := make(map[string]int)
	var headings []Heading

	container.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}

		id, ok := s.Attr("id")
		if ok && id != "" {
			used[id]++
		} else {
			id = uniqueID(slugify(text), used)
			s.SetAttr("id", id)
		}

		level := int(goquery.NodeName(s)[1] - '0')
		headings = append(headings, Heading{Level: level, ID: id, Text: text})
	})

	return headings
}

func slugify(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "section"
	}
	return slug
}

func uniqueID(base string, used map[string]int) string {
	n := used[base]
	used[base] = n + 1
	if n == 0 {
		return base
	}

	id := fmt.Sprintf("%s-%d", base, n)
	for used[id] > 0 {
		n++
		id = fmt.Sprintf("%s-%d", base, n)
	}
	used[id] = 1
	return id
}

func renderOutline(headings []Heading) string {
	var b strings.Builder
	b.WriteString(`<nav class="notebook-outline"><p class="outline-title">Contents</p><ul>`)
	for _, h := range headings {
		fmt.Fprintf(&b, `<li class="outline-h%d"><a href="#%s">%s</a></li>`,
			h.Level, html.EscapeString(h.ID), html.EscapeString(h.Text))
	}
	b.WriteString(`</ul></nav>`)
	return b.String()
}
