package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latex-workbench/internal/types"
)

type row struct {
	Title string `json:"title" yaml:"title"`
	Line  int    `json:"line" yaml:"line"`
}

type outline []row

func (o outline) Text() string {
	var b bytes.Buffer
	for _, r := range o {
		b.WriteString(r.Title)
		b.WriteString("\n")
	}
	return b.String()
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"text", FormatText},
		{"YAML", FormatYAML},
		{"yml", FormatYAML},
		{" json ", FormatJSON},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseFormat("xml")
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestTo(t *testing.T) {
	data := outline{{Title: "问题重述", Line: 0}, {Title: "Other", Line: 2}}

	t.Run("text uses Texter", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, To(&buf, FormatText, data))
		assert.Equal(t, "问题重述\nOther\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, To(&buf, FormatJSON, data))
		assert.JSONEq(t, `[{"title":"问题重述","line":0},{"title":"Other","line":2}]`, buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, To(&buf, FormatYAML, data))
		assert.Equal(t, "- title: 问题重述\n  line: 0\n- title: Other\n  line: 2\n", buf.String())
	})

	t.Run("text strings", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, To(&buf, FormatText, []string{"a", "b"}))
		assert.Equal(t, "a\nb\n", buf.String())

		buf.Reset()
		require.NoError(t, To(&buf, FormatText, ""))
		assert.Empty(t, buf.String())
	})

	t.Run("text falls back to yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, To(&buf, FormatText, row{Title: "x", Line: 1}))
		assert.Equal(t, "title: x\nline: 1\n", buf.String())
	})

	t.Run("unknown", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, To(&buf, Format("xml"), data))
	})

	assert.True(t, FormatJSON.IsStructured())
	assert.False(t, FormatText.IsStructured())
}
