package notebook

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSample(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/sample.ipynb")
	require.NoError(t, err)
	return data
}

func TestConvert_Sample(t *testing.T) {
	out, err := NewConverter("monokai").Convert(loadSample(t))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, `<div class="notebook-container">`))
	assert.True(t, strings.HasSuffix(out, `</div>`))

	// markdown
	assert.Contains(t, out, "<h1>Exploratory Data Analysis</h1>")
	assert.Contains(t, out, "<strong>department</strong>")
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "alert(")

	// code input and prompts
	assert.Contains(t, out, `<div class="prompt input_prompt">In&nbsp;[1]:</div>`)
	assert.Contains(t, out, "pandas")
	assert.Contains(t, out, `Out&nbsp;[1]:`)

	// outputs
	assert.Contains(t, out, "rows: 14999")
	assert.Contains(t, out, "0.238")
	assert.Contains(t, out, `src="data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="`)
	assert.NotContains(t, out, "&lt;Figure size")
	assert.Contains(t, out, "<td>sales</td>")
	assert.NotContains(t, out, "onclick")

	// error traceback without terminal colours
	assert.Contains(t, out, "KeyError: &#39;salary_band&#39;")
	assert.NotContains(t, out, "\x1b")

	// raw cell in a non-HTML format is dropped
	assert.NotContains(t, out, "not shown")
}

func TestConvert_Deterministic(t *testing.T) {
	c := NewConverter("monokai")
	first, err := c.Convert(loadSample(t))
	require.NoError(t, err)
	second, err := c.Convert(loadSample(t))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConvert_Errors(t *testing.T) {
	c := NewConverter("monokai")

	tests := []struct {
		name        string
		input       string
		unsupported bool
	}{
		{name: "malformed json", input: `{"cells": [`},
		{name: "nbformat 3", input: `{"nbformat": 3, "worksheets": []}`, unsupported: true},
		{name: "missing version", input: `{"cells": []}`, unsupported: true},
		{name: "unknown cell type", input: `{"nbformat": 4, "cells": [{"cell_type": "widget", "source": ""}]}`, unsupported: true},
		{
			name:        "unknown output type",
			input:       `{"nbformat": 4, "cells": [{"cell_type": "code", "source": "1", "outputs": [{"output_type": "beep"}]}]}`,
			unsupported: true,
		},
		{name: "bad source field", input: `{"nbformat": 4, "cells": [{"cell_type": "code", "source": 7}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Convert([]byte(tt.input))
			require.Error(t, err)
			if tt.unsupported {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
			}
		})
	}
}

func TestConvert_EmptyNotebook(t *testing.T) {
	out, err := NewConverter("monokai").Convert([]byte(`{"nbformat": 4, "nbformat_minor": 2, "cells": [], "metadata": {}}`))
	require.NoError(t, err)
	assert.Equal(t, `<div class="notebook-container"></div>`, out)
}

func TestConvert_UnexecutedCellAndSVG(t *testing.T) {
	nb := `{"nbformat": 4, "cells": [
		{"cell_type": "code", "execution_count": null, "source": "x = 1", "outputs": [
			{"output_type": "display_data", "data": {"image/svg+xml": "<svg><script>bad()</script></svg>"}}
		]},
		{"cell_type": "raw", "metadata": {"format": "text/html"}, "source": "<b>raw</b>"}
	]}`

	out, err := NewConverter("github").Convert([]byte(nb))
	require.NoError(t, err)

	assert.Contains(t, out, "In&nbsp;[&nbsp;]:")
	assert.Contains(t, out, `src="data:image/svg+xml;base64,`)
	assert.NotContains(t, out, "<svg")
	assert.Contains(t, out, "<b>raw</b>")
}

func TestConvert_MarkdownAttachments(t *testing.T) {
	nb := `{"nbformat": 4, "cells": [
		{"cell_type": "markdown",
		 "source": ["![chart](attachment:chart.png)\n\n", "![box](attachment:box%20plot.png)\n\n", "![vec](attachment:fig.svg)"],
		 "attachments": {
			"chart.png": {"image/png": "iVBORw0KGgo=\n"},
			"box plot.png": {"image/jpeg": "/9j/4AAQ"},
			"fig.svg": {"image/svg+xml": "PHN2Zz48L3N2Zz4="}
		 }}
	]}`

	out, err := NewConverter("monokai").Convert([]byte(nb))
	require.NoError(t, err)

	assert.Contains(t, out, `src="data:image/png;base64,iVBORw0KGgo="`)
	assert.Contains(t, out, `src="data:image/jpeg;base64,/9j/4AAQ"`)
	assert.NotContains(t, out, "data:image/svg+xml")
}

func TestInlineAttachments(t *testing.T) {
	src := "![a](attachment:a.png) ![b](attachment:a.png.bak) ![c](attachment:other.png)"
	got := inlineAttachments(src, map[string]map[string]string{
		"a.png":     {"image/png": "QUFB"},
		"a.png.bak": {"image/png": "QkJC"},
	})

	assert.Equal(t, "![a](data:image/png;base64,QUFB) ![b](data:image/png;base64,QkJC) ![c](attachment:other.png)", got)
	assert.Equal(t, src, inlineAttachments(src, nil))
}

func TestMultiline(t *testing.T) {
	var fields struct {
		A multiline `json:"a"`
		B multiline `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": "one\ntwo", "b": ["one\n", "two"]}`), &fields))
	assert.Equal(t, multiline("one\ntwo"), fields.A)
	assert.Equal(t, fields.A, fields.B)
}
