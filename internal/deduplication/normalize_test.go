package deduplication

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n  ", ""},
		{"collapses whitespace", "  Hello \n\n  World\t!  ", "hello world !"},
		{"strips markup", "# Title\n**bold** _it_ `code` [link](x)", "title bold it code link(x)"},
		{"keeps other punctuation", "Infrastructure financing models, 2020.", "infrastructure financing models, 2020."},
		{"folds full-width forms", "ＡＢＣ　ｄｅｆ", "abc def"},
		{"case folds accented text", "ÉCOLE Normale", "école normale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"## Notes on *Go*  concurrency\n\n- channels\n- `sync.Mutex`",
		"Plain text",
		"[[wiki link]] and __dunder__",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Words("a b c"))
	assert.Empty(t, Words(""))
}
