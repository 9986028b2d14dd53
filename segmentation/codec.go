package segmentation

import (
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-motor/algorithms/common"
)

// FormatIndices renders indices as a bracketed list: [100, 250, 9000]
func FormatIndices(indices []int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range indices {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(v))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseIndices reads a list written by FormatIndices. Brackets and newlines
// are stripped, tokens are split on whitespace, and a trailing comma on each
// token is dropped; every token must then be an integer.
func ParseIndices(text string) ([]int, error) {
	s := strings.NewReplacer("[", "", "]", "", "\n", "", "\r", "").Replace(text)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}

	tokens := strings.Fields(s)
	out := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimRight(tok, ",")
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, common.NewError(common.KindParse, "parse indices", "bad token "+strconv.Quote(tok), err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatFloats renders values as a bracketed list with full precision
func FormatFloats(values []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseBoundaries parses onset and offset list texts into typed boundaries
func ParseBoundaries(onsetText, offsetText string) (BoundaryList, error) {
	onsets, err := ParseIndices(onsetText)
	if err != nil {
		return nil, err
	}
	offsets, err := ParseIndices(offsetText)
	if err != nil {
		return nil, err
	}

	list, err := NewBoundaryList(onsets, offsets)
	if err != nil {
		return nil, common.NewError(common.KindParse, "parse boundaries", "inconsistent lists", err)
	}
	return list, nil
}
