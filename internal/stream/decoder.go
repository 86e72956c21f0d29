// Package stream decodes the relay's chat byte stream into typed events.
//
// The wire format is the Server-Sent-Events convention: line-delimited
// `data: <json>` frames terminated by a literal `[DONE]` sentinel. Frames are
// discriminated by a `type` field; the relay has been observed to emit three
// shapes for "text arrived" and one for retrieval citations. Anything else is
// skipped, never fatal.
package stream

import (
	"encoding/json"
	"io"
	"strings"

	"campchat/internal/logging"
)

// ConnectionFailureText is the synthetic delta yielded when the stream fails.
const ConnectionFailureText = "Sorry, I encountered an error connecting to the service. Please try again."

const doneSentinel = "[DONE]"

// EventKind discriminates decoded stream events.
type EventKind int

const (
	// EventTextDelta carries an incremental piece of assistant text.
	EventTextDelta EventKind = iota
	// EventCitations carries the retrieval results for this turn. A repeat
	// replaces any earlier set.
	EventCitations
)

// Citation is one retrieval result attached to an assistant turn.
type Citation struct {
	Source  string  `json:"filename"`
	Score   float64 `json:"score"`
	Excerpt string  `json:"text"`
}

// Event is one decoded stream event.
type Event struct {
	Kind      EventKind
	Text      string
	Citations []Citation
}

// wireFrame is the decoded `data:` payload. Delta stays raw because the relay
// sends it either as an object or as a bare string depending on event type.
type wireFrame struct {
	Type    string          `json:"type"`
	Delta   json.RawMessage `json:"delta"`
	Results []Citation      `json:"results"`
}

type deltaObject struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Text string `json:"text"`
}

// Decoder turns a chat response body into a lazy, single-pass sequence of
// events. It is not restartable and not safe for concurrent use.
type Decoder struct {
	r       io.ReadCloser
	carry   []byte // bytes after the last complete line
	readBuf []byte
	pending []Event
	done    bool
	failed  bool
}

// NewDecoder wraps a successful chat response body.
func NewDecoder(r io.ReadCloser) *Decoder {
	return &Decoder{
		r:       r,
		readBuf: make([]byte, 4096),
	}
}

// NewFailedDecoder builds a decoder for a request that never produced a
// stream (connection refused, non-2xx status). It yields the synthetic
// connection-failure delta once, then ends.
func NewFailedDecoder() *Decoder {
	return &Decoder{
		pending: []Event{{Kind: EventTextDelta, Text: ConnectionFailureText}},
		done:    true,
		failed:  true,
	}
}

// Next returns the next event, or ok=false when the sequence has ended.
func (d *Decoder) Next() (Event, bool) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, true
		}
		if d.done {
			return Event{}, false
		}

		n, err := d.r.Read(d.readBuf)
		if n > 0 {
			// Splitting only at newline bytes means multi-byte runes split
			// across reads reassemble in the carry buffer.
			d.carry = append(d.carry, d.readBuf[:n]...)
			d.drainLines()
		}
		if err != nil {
			if err == io.EOF {
				if len(d.carry) > 0 && !d.done {
					d.processLine(string(d.carry))
				}
				d.carry = nil
				d.done = true
			} else {
				d.fail(err)
			}
		}
	}
}

// Failed reports whether the stream ended with a transport failure (the last
// text delta was synthetic).
func (d *Decoder) Failed() bool {
	return d.failed
}

// Close releases the underlying stream. Safe to call more than once.
func (d *Decoder) Close() error {
	if d.r == nil {
		return nil
	}
	err := d.r.Close()
	d.r = nil
	return err
}

func (d *Decoder) fail(err error) {
	logging.StreamWarn("chat stream failed: %v", err)
	d.failed = true
	d.done = true
	d.pending = append(d.pending, Event{Kind: EventTextDelta, Text: ConnectionFailureText})
}

// drainLines processes every complete line in the carry buffer.
func (d *Decoder) drainLines() {
	for !d.done {
		idx := -1
		for i, b := range d.carry {
			if b == '\n' {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		line := string(d.carry[:idx])
		d.carry = d.carry[idx+1:]
		d.processLine(line)
	}
}

func (d *Decoder) processLine(line string) {
	line = strings.TrimSuffix(strings.TrimSpace(line), "\r")
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, "data:") {
		// Comment or event-name line; the relay doesn't use them.
		logging.StreamDebug("skipping non-data line: %.60s", line)
		return
	}

	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "" {
		return
	}
	if data == doneSentinel {
		d.done = true
		return
	}

	var frame wireFrame
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		logging.StreamWarn("skipping malformed frame: %v", err)
		return
	}

	switch frame.Type {
	case "response.output_item.delta":
		var delta deltaObject
		if err := json.Unmarshal(frame.Delta, &delta); err != nil {
			logging.StreamWarn("skipping malformed output_item delta: %v", err)
			return
		}
		for _, item := range delta.Content {
			if item.Type == "output_text" && item.Text != "" {
				d.pending = append(d.pending, Event{Kind: EventTextDelta, Text: item.Text})
			}
		}

	case "response.output_text.delta":
		var text string
		if err := json.Unmarshal(frame.Delta, &text); err != nil {
			logging.StreamWarn("skipping malformed output_text delta: %v", err)
			return
		}
		if text != "" {
			d.pending = append(d.pending, Event{Kind: EventTextDelta, Text: text})
		}

	case "content_block.delta":
		var delta deltaObject
		if err := json.Unmarshal(frame.Delta, &delta); err != nil {
			logging.StreamWarn("skipping malformed content_block delta: %v", err)
			return
		}
		if delta.Text != "" {
			d.pending = append(d.pending, Event{Kind: EventTextDelta, Text: delta.Text})
		}

	case "response.file_search_call.completed":
		d.pending = append(d.pending, Event{Kind: EventCitations, Citations: frame.Results})

	default:
		logging.StreamDebug("ignoring event type %q", frame.Type)
	}
}
