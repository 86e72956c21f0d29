package markdown

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func plain(text string) []Span  { return []Span{{Kind: SpanPlain, Text: text}} }
func strong(text string) []Span { return []Span{{Kind: SpanStrong, Text: text}} }

func TestRenderBlockStructure(t *testing.T) {
	input := "### Sessions\n" +
		"We offer two sessions.\n" +
		"\n" +
		"* Session A runs in June\n" +
		"- Session B runs in July\n" +
		"\n" +
		"Sign up early.\nSpots fill fast."

	want := []Block{
		{Kind: BlockHeading, Spans: plain("Sessions")},
		{Kind: BlockParagraph, Spans: plain("We offer two sessions.")},
		{Kind: BlockList, Items: [][]Span{
			plain("Session A runs in June"),
			plain("Session B runs in July"),
		}},
		{Kind: BlockParagraph, Spans: plain("Sign up early. Spots fill fast.")},
	}

	if diff := cmp.Diff(want, Render(input)); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderPlainLineEndsList(t *testing.T) {
	input := "* first item\ncontinuation text\n* second list"
	got := Render(input)
	if len(got) != 3 {
		t.Fatalf("got %d blocks, want 3: %+v", len(got), got)
	}
	if got[0].Kind != BlockList || len(got[0].Items) != 1 {
		t.Errorf("first block = %+v, want single-item list", got[0])
	}
	if got[2].Kind != BlockList {
		t.Errorf("third block kind = %v, want BlockList", got[2].Kind)
	}
}

func TestParseInline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Span
	}{
		{
			name:  "strong then emphasis",
			input: "camp **Pinecrest** is *great*",
			want: []Span{
				{Kind: SpanPlain, Text: "camp "},
				{Kind: SpanStrong, Text: "Pinecrest"},
				{Kind: SpanPlain, Text: " is "},
				{Kind: SpanEm, Text: "great"},
			},
		},
		{
			name:  "double star wins over single",
			input: "**bold**",
			want:  strong("bold"),
		},
		{
			name:  "unmatched marker stays literal",
			input: "a * b",
			want:  plain("a * b"),
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseInline(tt.input)); diff != "" {
				t.Errorf("ParseInline(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

// Streaming re-renders the full text after each delta; completed blocks must
// not change shape as the text grows.
func TestRenderPrefixStability(t *testing.T) {
	full := "### Welcome\nHere is what you need to know.\n\n* Bring **sunscreen**\n* Bring a water bottle\n\nSee you soon."

	var prev []Block
	for i := 1; i <= len(full); i++ {
		cur := Render(full[:i])
		// Every block except the one still being accumulated must match the
		// previous render exactly.
		stable := len(cur) - 1
		if stable > len(prev) {
			stable = len(prev)
		}
		for b := 0; b < stable-1; b++ {
			if diff := cmp.Diff(prev[b], cur[b]); diff != "" {
				t.Fatalf("block %d changed between prefix %d and %d (-prev +cur):\n%s", b, i-1, i, diff)
			}
		}
		prev = cur
	}

	if diff := cmp.Diff(Render(full), prev); diff != "" {
		t.Errorf("final incremental render differs from one-shot render:\n%s", diff)
	}
}

func TestRenderIdempotent(t *testing.T) {
	input := "### Hi\n* a\n* b\ntext **bold**"
	if diff := cmp.Diff(Render(input), Render(input)); diff != "" {
		t.Errorf("Render is not deterministic:\n%s", diff)
	}
}

func TestTextFlattens(t *testing.T) {
	spans := ParseInline("a **b** *c*")
	if got := Text(spans); got != "a b c" {
		t.Errorf("Text() = %q, want %q", got, "a b c")
	}
}

func TestRenderCarriesContentLiterally(t *testing.T) {
	// Markup-looking content must come through as text, never interpreted.
	input := "<script>alert('x')</script> and [link](http://x)"
	got := Render(input)
	if len(got) != 1 || got[0].Kind != BlockParagraph {
		t.Fatalf("got %+v, want single paragraph", got)
	}
	if Text(got[0].Spans) != input {
		t.Errorf("content altered: %q", Text(got[0].Spans))
	}
}
