// Package marker finds paired <-----label-----> delimiters in text and
// rewrites the content between them.
//
// Offsets are byte offsets into the scanned string. Pairs are recomputed on
// every call; nothing is cached between scans.
package marker

import (
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"

	"latex-workbench/internal/logger"
)

var (
	delimiterPattern = regexp.MustCompile(`(?s)<-----.*?----->`)
	labelPattern     = regexp.MustCompile(`(?s)<-----(.*?)----->`)
)

// Pair is one matched pair of identical delimiters.
type Pair struct {
	// Index is the pair's position among all delimiter pairs, counting pairs
	// that were dropped for mismatched labels.
	Index      int    `json:"index" yaml:"index"`
	MarkerType string `json:"marker_type" yaml:"marker_type"`
	Content    string `json:"content" yaml:"content"`
	Start      int    `json:"start" yaml:"start"`
	End        int    `json:"end" yaml:"end"`
}

// Label is the trimmed text inside the delimiter.
func (p Pair) Label() string {
	return DisplayName(p.MarkerType)
}

// Delimiter is one <-----label-----> occurrence.
type Delimiter struct {
	Text  string `json:"text" yaml:"text"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
}

// FindDelimiters returns every delimiter in text, paired or not.
func FindDelimiters(text string) []Delimiter {
	matches := delimiterPattern.FindAllStringIndex(text, -1)
	out := make([]Delimiter, len(matches))
	for i, m := range matches {
		out[i] = Delimiter{Text: text[m[0]:m[1]], Start: m[0], End: m[1]}
	}
	return out
}

// FindPairs pairs delimiters by position: the first with the second, the
// third with the fourth and so on. An odd delimiter count yields no pairs.
// A pair whose two delimiters differ is dropped without shifting the index
// of later pairs.
func FindPairs(text string) []Pair {
	delims := FindDelimiters(text)
	if len(delims)%2 != 0 {
		logger.Warn("odd number of markers, some are unpaired",
			logger.Int("markers", len(delims)))
		return []Pair{}
	}

	pairs := make([]Pair, 0, len(delims)/2)
	for i := 0; i < len(delims); i += 2 {
		opening, closing := delims[i], delims[i+1]
		if opening.Text != closing.Text {
			logger.Warn("mismatched marker pair skipped",
				logger.Int("index", i/2),
				logger.String("open", opening.Text),
				logger.String("close", closing.Text))
			continue
		}
		pairs = append(pairs, Pair{
			Index:      i / 2,
			MarkerType: opening.Text,
			Content:    text[opening.End:closing.Start],
			Start:      opening.Start,
			End:        closing.End,
		})
	}
	return pairs
}

// ReplaceContents rescans text and replaces the content of every pair whose
// index is in replacements. A replaced pair becomes
// marker + "\n" + content + "\n" + marker. Supplying a pair's current
// content leaves it untouched.
func ReplaceContents(text string, replacements map[int]string) string {
	pairs := FindPairs(text)
	if len(pairs) == 0 || len(replacements) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, p := range pairs {
		content, ok := replacements[p.Index]
		if !ok || content == p.Content {
			continue
		}
		b.WriteString(text[last:p.Start])
		b.WriteString(wrap(p.MarkerType, content))
		last = p.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func wrap(markerType, content string) string {
	return markerType + "\n" + content + "\n" + markerType
}

// DisplayName strips the delimiter hyphens and brackets from a marker and
// trims the label. Text that is not a delimiter is returned trimmed.
func DisplayName(markerType string) string {
	if m := labelPattern.FindStringSubmatch(markerType); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(markerType)
}

// DuplicateLabels returns the labels shared by more than one pair, in order
// of first appearance.
func DuplicateLabels(pairs []Pair) []string {
	dups := lo.FindDuplicatesBy(pairs, Pair.Label)
	return lo.Map(dups, func(p Pair, _ int) string { return p.Label() })
}

// IndexByLabel maps each label to the index of its first pair. Duplicate
// labels are logged; later pairs with the same label are unreachable by
// label.
func IndexByLabel(pairs []Pair) map[string]int {
	for _, label := range DuplicateLabels(pairs) {
		logger.Warn("duplicate marker label, only the first pair is addressable",
			logger.String("label", label))
	}
	index := make(map[string]int, len(pairs))
	for _, p := range pairs {
		if _, seen := index[p.Label()]; !seen {
			index[p.Label()] = p.Index
		}
	}
	return index
}

// ReplaceByLabel is ReplaceContents keyed by display label instead of
// positional index, so pending edits survive pairs being added or removed
// elsewhere in the text. Labels with no pair are ignored and returned.
func ReplaceByLabel(text string, replacements map[string]string) (string, []string) {
	index := IndexByLabel(FindPairs(text))

	byIndex := make(map[int]string, len(replacements))
	var missing []string
	for label, content := range replacements {
		i, ok := index[strings.TrimSpace(label)]
		if !ok {
			missing = append(missing, label)
			continue
		}
		byIndex[i] = content
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		logger.Warn("replacement labels not found", logger.Strings("labels", missing))
	}
	return ReplaceContents(text, byIndex), missing
}
