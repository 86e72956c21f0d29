// Package markdown converts accumulated assistant text into a small tagged
// display tree. It supports the subset the relay actually emits: level-3
// headings, flat bullet lists, paragraphs, and **strong** / *emphasis* inline
// runs. Rendering the full text again after every streaming delta is cheap and
// keeps the output deterministic: a grown text renders to a tree whose
// unchanged prefix is identical to the previous render.
//
// All content is carried as literal text; nothing is ever re-interpreted as
// markup by consumers.
package markdown

import (
	"regexp"
	"strings"
)

// BlockKind discriminates the block variants.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockList
)

// SpanKind discriminates inline run styles.
type SpanKind int

const (
	SpanPlain SpanKind = iota
	SpanEm
	SpanStrong
)

// Span is a styled run of literal text.
type Span struct {
	Kind SpanKind
	Text string
}

// Block is one display block. Headings and paragraphs carry Spans; lists carry
// one span slice per item.
type Block struct {
	Kind  BlockKind
	Spans []Span
	Items [][]Span
}

// Strong pairs are matched before single-star pairs at the same position;
// matching is non-greedy and contents are opaque (no nesting).
var inlinePattern = regexp.MustCompile(`\*\*(.*?)\*\*|\*(.*?)\*`)

// ParseInline splits text into styled spans. Unmatched markers stay literal.
func ParseInline(text string) []Span {
	if text == "" {
		return nil
	}

	var spans []Span
	last := 0
	for _, m := range inlinePattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			spans = append(spans, Span{Kind: SpanPlain, Text: text[last:m[0]]})
		}
		if m[2] >= 0 {
			spans = append(spans, Span{Kind: SpanStrong, Text: text[m[2]:m[3]]})
		} else {
			spans = append(spans, Span{Kind: SpanEm, Text: text[m[4]:m[5]]})
		}
		last = m[1]
	}
	if last < len(text) {
		spans = append(spans, Span{Kind: SpanPlain, Text: text[last:]})
	}
	return spans
}

// Render builds the display tree for the full accumulated text. It is
// idempotent: equal inputs produce equal trees.
func Render(text string) []Block {
	var blocks []Block
	var paragraph []string
	listOpen := false

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(paragraph, " "))
		paragraph = paragraph[:0]
		if joined == "" {
			return
		}
		blocks = append(blocks, Block{Kind: BlockParagraph, Spans: ParseInline(joined)})
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "### "):
			flushParagraph()
			listOpen = false
			blocks = append(blocks, Block{Kind: BlockHeading, Spans: ParseInline(trimmed[4:])})

		case strings.HasPrefix(trimmed, "* ") || strings.HasPrefix(trimmed, "- "):
			flushParagraph()
			if !listOpen {
				blocks = append(blocks, Block{Kind: BlockList})
				listOpen = true
			}
			item := ParseInline(trimmed[2:])
			blocks[len(blocks)-1].Items = append(blocks[len(blocks)-1].Items, item)

		case trimmed == "":
			flushParagraph()
			listOpen = false

		default:
			// A plain text line ends any open list.
			listOpen = false
			paragraph = append(paragraph, trimmed)
		}
	}

	flushParagraph()
	return blocks
}

// Text flattens spans back to their literal content, without style markers.
func Text(spans []Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}
