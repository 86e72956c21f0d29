// Package roster models the camper profiles a parent has configured and the
// per-camp segment schema their attributes are drawn from. It also derives the
// two natural-language strings that depend on the roster: the personalization
// context sent with every request and the welcome message shown as the first
// assistant turn.
package roster

import (
	"fmt"
	"strings"

	"campchat/internal/logging"
)

// SegmentOption is one labeled attribute with its allowed values, fetched per
// camp and replaced wholesale on camp switch.
type SegmentOption struct {
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

// Camper is one camper profile. Segments keys are labels from the active
// camp's schema.
type Camper struct {
	ID       int
	Name     string
	Segments map[string]string
}

// Roster is an ordered collection of camper profiles plus the active segment
// schema. It is not safe for concurrent use; the session engine serializes
// access.
type Roster struct {
	campers []*Camper
	schema  []SegmentOption
	nextID  int
}

// New returns a roster with a single empty camper.
func New() *Roster {
	r := &Roster{nextID: 1}
	r.Add()
	return r
}

// Add appends a new empty camper and returns it. IDs are assigned
// monotonically and never reused.
func (r *Roster) Add() *Camper {
	c := &Camper{
		ID:       r.nextID,
		Segments: make(map[string]string),
	}
	r.nextID++
	r.campers = append(r.campers, c)
	logging.RosterDebug("added camper %d (total %d)", c.ID, len(r.campers))
	return c
}

// Remove deletes the camper with the given id. The last camper cannot be
// removed.
func (r *Roster) Remove(id int) bool {
	if len(r.campers) <= 1 {
		return false
	}
	for i, c := range r.campers {
		if c.ID == id {
			r.campers = append(r.campers[:i], r.campers[i+1:]...)
			logging.RosterDebug("removed camper %d (total %d)", id, len(r.campers))
			return true
		}
	}
	return false
}

// Reset discards all campers and re-seeds a single empty one, restarting the
// id sequence.
func (r *Roster) Reset() {
	r.campers = nil
	r.nextID = 1
	r.Add()
}

// Campers returns the profiles in order. Callers must not mutate them
// directly; use the Set methods so dependent state stays consistent.
func (r *Roster) Campers() []*Camper {
	return r.campers
}

// Snapshot returns deep copies of the profiles, safe to hand across
// goroutine boundaries.
func (r *Roster) Snapshot() []Camper {
	out := make([]Camper, 0, len(r.campers))
	for _, c := range r.campers {
		cp := Camper{ID: c.ID, Name: c.Name, Segments: make(map[string]string, len(c.Segments))}
		for k, v := range c.Segments {
			cp.Segments[k] = v
		}
		out = append(out, cp)
	}
	return out
}

// Len returns the number of campers.
func (r *Roster) Len() int {
	return len(r.campers)
}

// Schema returns the active segment schema in fetch order.
func (r *Roster) Schema() []SegmentOption {
	return r.schema
}

// SetSchema replaces the schema wholesale. Per-camper selections whose label
// does not exist in the new schema are dropped so they cannot leak into a new
// camp's context.
func (r *Roster) SetSchema(schema []SegmentOption) {
	r.schema = schema

	known := make(map[string]bool, len(schema))
	for _, opt := range schema {
		known[opt.Label] = true
	}
	for _, c := range r.campers {
		for label := range c.Segments {
			if !known[label] {
				delete(c.Segments, label)
			}
		}
	}
	logging.Roster("installed segment schema with %d options", len(schema))
}

// SetName sets a camper's name. Changing identity clears the camper's segment
// selections so stale attributes never describe the new name.
func (r *Roster) SetName(id int, name string) bool {
	c := r.find(id)
	if c == nil {
		return false
	}
	c.Name = name
	c.Segments = make(map[string]string)
	return true
}

// SetSegment records a segment selection. The label must exist in the active
// schema; an empty value clears the selection.
func (r *Roster) SetSegment(id int, label, value string) bool {
	c := r.find(id)
	if c == nil {
		return false
	}
	found := false
	for _, opt := range r.schema {
		if opt.Label == label {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if value == "" {
		delete(c.Segments, label)
	} else {
		c.Segments[label] = value
	}
	return true
}

func (r *Roster) find(id int) *Camper {
	for _, c := range r.campers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// configured returns the campers with a selected name, in order.
func (r *Roster) configured() []*Camper {
	var out []*Camper
	for _, c := range r.campers {
		if c.Name != "" {
			out = append(out, c)
		}
	}
	return out
}

// FirstName returns the text preceding the first space of a full name.
func FirstName(full string) string {
	if i := strings.IndexByte(full, ' '); i >= 0 {
		return full[:i]
	}
	return full
}

// Context derives the personalization instruction string for the current
// roster, or "" when no camper has a selected name. Segment details follow
// schema order so the output is deterministic.
func (r *Roster) Context() string {
	configured := r.configured()
	if len(configured) == 0 {
		return ""
	}

	descriptions := make([]string, 0, len(configured))
	firstNames := make([]string, 0, len(configured))
	for _, c := range configured {
		first := FirstName(c.Name)
		firstNames = append(firstNames, first)

		var details []string
		for _, opt := range r.schema {
			if v := c.Segments[opt.Label]; v != "" {
				details = append(details, fmt.Sprintf("%s: %s", opt.Label, v))
			}
		}
		if len(details) > 0 {
			descriptions = append(descriptions, fmt.Sprintf("%s (%s)", first, strings.Join(details, ", ")))
		} else {
			descriptions = append(descriptions, first)
		}
	}

	plural := ""
	if len(configured) > 1 {
		plural = "s"
	}
	return fmt.Sprintf(
		"You are assisting a parent who has %d camper%s enrolled: %s. "+
			"When answering questions, use first names naturally (%s) and tailor your responses "+
			"to their specific sessions and age groups. Search the documentation for information "+
			"that is relevant to their particular enrollment details.",
		len(configured), plural,
		strings.Join(descriptions, ", "),
		strings.Join(firstNames, ", "),
	)
}

// Welcome derives the first assistant turn for the current roster.
func (r *Roster) Welcome() string {
	configured := r.configured()
	if len(configured) == 0 {
		return "Hi! I can help answer questions about your selected camp. What would you like to know?"
	}

	firstNames := make([]string, 0, len(configured))
	for _, c := range configured {
		firstNames = append(firstNames, FirstName(c.Name))
	}

	var names string
	if len(firstNames) == 1 {
		names = firstNames[0]
	} else {
		names = strings.Join(firstNames[:len(firstNames)-1], ", ") + " and " + firstNames[len(firstNames)-1]
	}

	return fmt.Sprintf(
		"Hi! I see you have %s registered. I can help answer questions specific to their camp experience. What would you like to know?",
		names,
	)
}
