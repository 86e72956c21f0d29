package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkReader returns its payload in fixed-size chunks so tests can force
// lines and runes to split across reads.
type chunkReader struct {
	data  []byte
	size  int
	pos   int
	err   error // returned after the payload is exhausted; nil means EOF
	calls int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	c.calls++
	if c.pos >= len(c.data) {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	end := c.pos + c.size
	if end > len(c.data) {
		end = len(c.data)
	}
	n := copy(p, c.data[c.pos:end])
	c.pos += n
	return n, nil
}

func (c *chunkReader) Close() error { return nil }

func collect(t *testing.T, d *Decoder) []Event {
	t.Helper()
	var events []Event
	for {
		ev, ok := d.Next()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func joinText(events []Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Kind == EventTextDelta {
			sb.WriteString(ev.Text)
		}
	}
	return sb.String()
}

func TestDecodeDeltaShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "nested output_item delta",
			body: `data: {"type":"response.output_item.delta","delta":{"content":[{"type":"output_text","text":"Hello"},{"type":"output_text","text":" world"}]}}` + "\n",
			want: "Hello world",
		},
		{
			name: "flat output_text delta",
			body: `data: {"type":"response.output_text.delta","delta":"Hi there"}` + "\n",
			want: "Hi there",
		},
		{
			name: "content_block delta",
			body: `data: {"type":"content_block.delta","delta":{"text":"Greetings"}}` + "\n",
			want: "Greetings",
		},
		{
			name: "non-text content items skipped",
			body: `data: {"type":"response.output_item.delta","delta":{"content":[{"type":"refusal","text":"no"},{"type":"output_text","text":"yes"}]}}` + "\n",
			want: "yes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(io.NopCloser(strings.NewReader(tt.body)))
			events := collect(t, d)
			if got := joinText(events); got != tt.want {
				t.Errorf("decoded text = %q, want %q", got, tt.want)
			}
			if d.Failed() {
				t.Error("Failed() = true for a clean stream")
			}
		})
	}
}

func TestDoneSentinelStopsDecoding(t *testing.T) {
	body := `data: {"type":"response.output_text.delta","delta":"before"}` + "\n" +
		"data: [DONE]\n" +
		`data: {"type":"response.output_text.delta","delta":"after"}` + "\n"
	d := NewDecoder(io.NopCloser(strings.NewReader(body)))
	events := collect(t, d)
	if got := joinText(events); got != "before" {
		t.Errorf("decoded text = %q, want %q", got, "before")
	}
}

func TestMalformedAndUnknownFramesSkipped(t *testing.T) {
	body := "data: {not json\n" +
		`data: {"type":"response.created"}` + "\n" +
		": comment line\n" +
		`data: {"type":"response.output_text.delta","delta":"ok"}` + "\n" +
		"data: [DONE]\n"
	d := NewDecoder(io.NopCloser(strings.NewReader(body)))
	events := collect(t, d)
	if got := joinText(events); got != "ok" {
		t.Errorf("decoded text = %q, want %q", got, "ok")
	}
	if d.Failed() {
		t.Error("Failed() = true; malformed frames must not fail the stream")
	}
}

func TestMultiByteRuneSplitAcrossReads(t *testing.T) {
	// "día" holds a two-byte rune; chunk size 1 forces every byte boundary.
	body := `data: {"type":"response.output_text.delta","delta":"buenos días"}` + "\n"
	d := NewDecoder(&chunkReader{data: []byte(body), size: 1})
	events := collect(t, d)
	if got := joinText(events); got != "buenos días" {
		t.Errorf("decoded text = %q, want %q", got, "buenos días")
	}
}

func TestLineSplitAcrossReads(t *testing.T) {
	body := `data: {"type":"response.output_text.delta","delta":"part one"}` + "\n" +
		`data: {"type":"response.output_text.delta","delta":" and two"}` + "\n"
	d := NewDecoder(&chunkReader{data: []byte(body), size: 7})
	events := collect(t, d)
	if got := joinText(events); got != "part one and two" {
		t.Errorf("decoded text = %q, want %q", got, "part one and two")
	}
}

func TestCitationsDecoded(t *testing.T) {
	body := `data: {"type":"response.file_search_call.completed","results":[{"filename":"handbook.pdf","score":0.92,"text":"Drop-off is at 8am."}]}` + "\n" +
		"data: [DONE]\n"
	d := NewDecoder(io.NopCloser(strings.NewReader(body)))
	events := collect(t, d)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Kind != EventCitations {
		t.Fatalf("event kind = %v, want EventCitations", ev.Kind)
	}
	if len(ev.Citations) != 1 || ev.Citations[0].Source != "handbook.pdf" || ev.Citations[0].Score != 0.92 {
		t.Errorf("citations = %+v", ev.Citations)
	}
}

func TestTransportFailureYieldsSyntheticDelta(t *testing.T) {
	body := `data: {"type":"response.output_text.delta","delta":"partial"}` + "\n"
	d := NewDecoder(&chunkReader{data: []byte(body), size: 64, err: errors.New("connection reset")})
	events := collect(t, d)
	if !d.Failed() {
		t.Fatal("Failed() = false after transport error")
	}
	last := events[len(events)-1]
	if last.Kind != EventTextDelta || last.Text != ConnectionFailureText {
		t.Errorf("last event = %+v, want synthetic failure delta", last)
	}
}

func TestFailedDecoder(t *testing.T) {
	d := NewFailedDecoder()
	events := collect(t, d)
	if len(events) != 1 || events[0].Text != ConnectionFailureText {
		t.Fatalf("events = %+v, want single synthetic delta", events)
	}
	if !d.Failed() {
		t.Error("Failed() = false")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestTrailingLineWithoutNewlineProcessedAtEOF(t *testing.T) {
	body := `data: {"type":"response.output_text.delta","delta":"no newline"}`
	d := NewDecoder(io.NopCloser(strings.NewReader(body)))
	events := collect(t, d)
	if got := joinText(events); got != "no newline" {
		t.Errorf("decoded text = %q, want %q", got, "no newline")
	}
}
