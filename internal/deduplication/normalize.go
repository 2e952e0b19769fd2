package deduplication

import (
	"strings"
	"unicode/utf8"

	"github.com/notecurator/curate/internal/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// markupStripper removes the lightweight markdown punctuation that should not
// influence duplicate detection.
var markupStripper = strings.NewReplacer(
	"#", "",
	"*", "",
	"_", "",
	"`", "",
	"[", "",
	"]", "",
)

// Normalize canonicalizes cleaned note text into its comparison form:
// NFKC, markup punctuation stripped, case folded, whitespace runs collapsed
// to single spaces, trimmed. Both the exact and near phases compare this form.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = markupStripper.Replace(text)
	text = cases.Fold().String(text)
	return strings.Join(strings.Fields(text), " ")
}

// Words splits normalized text into its words
func Words(normalized string) []string {
	return strings.Fields(normalized)
}

// entry is the engine's per-run view of one caller item
type entry struct {
	index      int
	normalized string
	length     int
	words      []string
	item       *types.CurationItem
}

func newEntry(index int, item *types.CurationItem) *entry {
	normalized := Normalize(item.Content)
	return &entry{
		index:      index,
		normalized: normalized,
		length:     utf8.RuneCountInString(normalized),
		words:      Words(normalized),
		item:       item,
	}
}
