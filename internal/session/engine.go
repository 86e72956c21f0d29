// Package session owns the conversation state machine for the camp chat
// widget. The Engine mediates between a Collaborator (the relay backend) and
// a presentation layer that consumes its event channel; it knows nothing
// about terminals or rendering beyond producing markdown block trees.
package session

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"campchat/internal/instructions"
	"campchat/internal/logging"
	"campchat/internal/markdown"
	"campchat/internal/relay"
	"campchat/internal/roster"
	"campchat/internal/stream"
	"campchat/internal/suggest"

	"github.com/google/uuid"
)

// basePrompt is the non-negotiable system prompt sent with every chat
// request. Operator overrides are appended by the relay, never substituted.
const basePrompt = "You are a helpful AI assistant for a summer camp. Your role is to help parents find answers to their questions about the camp by searching through the camp's documentation. Be friendly, informative, and concise. Focus on providing accurate information from the documentation. If a question cannot be answered from the available documents, politely let the parent know. Respond only to the question asked and do not offer any follow up actions."

const selectCampNotice = "Please select a camp from the dropdown in the registration area first."

const genericFailureText = "Sorry, I encountered an error. Please try again."

var thinkingPhrases = []string{
	"Pondering deeply...", "Consulting archives...", "Diving in...",
	"Retrieving wisdom...", "Thinking thoughts...", "Scanning memory...",
	"Processing vibes...", "Brain crunching...", "Summoning knowledge...",
	"Connecting dots...", "Mining data...", "Cooking up answer...",
	"Searching scrolls...", "Computing magic...", "Assembling thoughts...",
	"Fetching intel...", "Reading libraries...", "Brewing response...",
	"Gathering context...", "Synthesizing ideas...",
}

// State is the conversation lifecycle state.
type State int

const (
	// Uninitialized means Initialize has not been called yet.
	Uninitialized State = iota
	// Initializing means the camp listing is being fetched.
	Initializing
	// NoCampSelected means no camp is active; submissions are refused.
	NoCampSelected
	// Idle means a camp is active and input is accepted.
	Idle
	// AwaitingResponse means a submission is in flight.
	AwaitingResponse
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case NoCampSelected:
		return "no-camp-selected"
	case Idle:
		return "idle"
	case AwaitingResponse:
		return "awaiting-response"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Turn is one committed conversation turn. Only completed exchanges enter
// history, so at rest the turn count is always even.
type Turn struct {
	Role string
	Text string
}

// Collaborator is the backend surface the engine depends on. *relay.Client
// satisfies it.
type Collaborator interface {
	ListCamps(ctx context.Context) ([]relay.Camp, error)
	ExtractSegments(ctx context.Context, campID string) ([]roster.SegmentOption, error)
	StreamChat(ctx context.Context, req relay.ChatRequest) *stream.Decoder
	TransformQuery(ctx context.Context, question string, history []string) (string, error)
	suggest.Fetcher
	instructions.Store
}

// Options tunes engine behavior. Zero values fall back to sane defaults.
type Options struct {
	HistoryWindow    int
	ThinkingInterval time.Duration
	SuggestionLimit  int
}

func (o *Options) fill() {
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = 6
	}
	if o.ThinkingInterval <= 0 {
		o.ThinkingInterval = 3 * time.Second
	}
	if o.SuggestionLimit <= 0 {
		o.SuggestionLimit = 3
	}
}

// Engine is the conversation session engine. All exported methods are safe
// for concurrent use; long-running operations (Initialize, Submit) block and
// are expected to run on their own goroutines.
type Engine struct {
	mu     sync.Mutex
	id     string // stable per-session identifier, threaded through logs
	collab Collaborator
	opts   Options
	events chan Event
	rng    *rand.Rand

	state   State
	camps   []relay.Camp
	active  *relay.Camp
	history []Turn

	roster      *roster.Roster
	cache       *instructions.Cache
	suggestions *suggest.Controller

	// suggestionsMuted is set on the first submission of a session and
	// cleared on reset or camp switch; late fetch results are dropped while
	// it holds.
	suggestionsMuted bool
}

// NewEngine creates an engine in the Uninitialized state.
func NewEngine(collab Collaborator, opts Options) *Engine {
	opts.fill()
	e := &Engine{
		id:     uuid.NewString(),
		collab: collab,
		opts:   opts,
		events: make(chan Event, 256),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		state:  Uninitialized,
		roster: roster.New(),
		cache:  instructions.NewCache(collab),
	}
	e.suggestions = suggest.NewController(collab, opts.SuggestionLimit, e.deliverSuggestions)
	logging.Session("engine %s created", e.id)
	return e
}

// ID returns the engine's per-session identifier.
func (e *Engine) ID() string { return e.id }

// Events returns the engine's event stream. The channel is never closed; the
// consumer stops reading when it shuts down.
func (e *Engine) Events() <-chan Event { return e.events }

func (e *Engine) emit(ev Event) { e.events <- ev }

func (e *Engine) setState(to State) {
	if e.state == to {
		return
	}
	from := e.state
	e.state = to
	logging.Session("state %s -> %s", from, to)
	e.emit(StateChanged{From: from, To: to})
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ActiveCamp returns the active camp, or false when none is selected.
func (e *Engine) ActiveCamp() (relay.Camp, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return relay.Camp{}, false
	}
	return *e.active, true
}

// History returns a copy of the committed conversation history.
func (e *Engine) History() []Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Turn, len(e.history))
	copy(out, e.history)
	return out
}

// ===== LIFECYCLE =====

// Initialize fetches the camp listing and auto-selects the first camp. Safe
// to call once; repeat calls are ignored.
func (e *Engine) Initialize(ctx context.Context) {
	e.mu.Lock()
	if e.state != Uninitialized {
		e.mu.Unlock()
		return
	}
	e.setState(Initializing)
	e.mu.Unlock()

	camps, err := e.collab.ListCamps(ctx)
	if err != nil {
		logging.SessionError("camp listing failed: %v", err)
		e.mu.Lock()
		e.setState(NoCampSelected)
		e.mu.Unlock()
		e.emit(CampsLoaded{})
		e.emit(Notice{Text: "No camps available"})
		return
	}

	e.mu.Lock()
	e.camps = camps
	e.mu.Unlock()
	e.emit(CampsLoaded{Camps: camps})

	if len(camps) == 0 {
		e.mu.Lock()
		e.setState(NoCampSelected)
		e.mu.Unlock()
		e.emit(Notice{Text: "No camps available"})
		return
	}
	e.SwitchCamp(ctx, camps[0].ID)
}

// SwitchCamp activates the camp with the given id, clearing the transcript
// and reloading camp-scoped state (segment schema, instruction override,
// suggestions). Unknown ids are ignored with a log line.
func (e *Engine) SwitchCamp(ctx context.Context, campID string) {
	e.mu.Lock()
	if e.state == AwaitingResponse {
		e.mu.Unlock()
		logging.SessionDebug("camp switch ignored while a response is in flight")
		return
	}
	var camp *relay.Camp
	for i := range e.camps {
		if e.camps[i].ID == campID {
			camp = &e.camps[i]
			break
		}
	}
	if camp == nil {
		e.mu.Unlock()
		logging.SessionError("switch to unknown camp %q ignored", campID)
		return
	}
	e.active = camp
	e.history = nil
	e.suggestionsMuted = false
	// Camper cards describe children enrolled at the previous camp; the new
	// camp starts from a single blank card.
	e.roster.Reset()
	e.setState(Idle)
	welcome := e.roster.Welcome()
	active := *camp
	e.mu.Unlock()

	logging.Session("switched to camp %s (%s)", active.Name, active.ID)
	e.emit(CampSwitched{Camp: active, Title: active.Title()})
	e.emit(TranscriptCleared{})
	e.emit(WelcomeChanged{Text: welcome})

	schema, err := e.collab.ExtractSegments(ctx, active.ID)
	if err != nil {
		logging.SessionError("segment extraction failed for %s: %v", active.ID, err)
		schema = nil
	}
	e.mu.Lock()
	e.roster.SetSchema(schema)
	snapshot := e.roster.Snapshot()
	e.mu.Unlock()
	e.emit(SchemaLoaded{Schema: schema})
	e.emit(RosterChanged{Campers: snapshot})

	text, err := e.cache.Load(ctx, active.ID)
	if err != nil {
		logging.InstructionsError("load failed for %s: %v", active.ID, err)
	} else {
		e.emit(InstructionsLoaded{Text: text})
	}

	e.refreshSuggestions(ctx)
}

// ClearCamp deselects the active camp. Submissions are refused until a camp
// is selected again.
func (e *Engine) ClearCamp() {
	e.mu.Lock()
	if e.state == AwaitingResponse {
		e.mu.Unlock()
		return
	}
	e.active = nil
	e.history = nil
	e.suggestionsMuted = false
	e.suggestions.Cancel()
	e.setState(NoCampSelected)
	welcome := e.roster.Welcome()
	e.mu.Unlock()
	e.emit(TranscriptCleared{})
	e.emit(WelcomeChanged{Text: welcome})
	e.emit(SuggestionsHidden{})
}

// Reset clears the conversation but keeps the active camp, roster, and
// cached instructions. Suggestions become eligible to show again.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	if e.state == AwaitingResponse {
		e.mu.Unlock()
		return
	}
	e.history = nil
	e.suggestionsMuted = false
	welcome := e.roster.Welcome()
	e.mu.Unlock()
	e.emit(TranscriptCleared{})
	e.emit(WelcomeChanged{Text: welcome})
	e.refreshSuggestions(ctx)
}

// ===== SUBMISSION =====

// Submit sends a user question through the full pipeline: history append,
// thinking placeholder, best-effort query rewrite, streaming response, and
// history commit or rollback. It blocks until the exchange finishes.
func (e *Engine) Submit(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	e.mu.Lock()
	switch e.state {
	case Idle:
	case NoCampSelected:
		e.mu.Unlock()
		e.emit(Notice{Text: selectCampNotice})
		return
	default:
		e.mu.Unlock()
		logging.SessionDebug("submission ignored in state %s", e.state)
		return
	}
	e.setState(AwaitingResponse)
	e.history = append(e.history, Turn{Role: "user", Text: text})
	e.suggestionsMuted = true
	e.suggestions.Cancel()
	camp := *e.active
	historyWindow := e.recentHistoryLocked()
	wireHistory := e.wireHistoryLocked()
	camperContext := e.roster.Context()
	e.mu.Unlock()

	e.emit(UserTurnAdded{Text: text})
	e.emit(SuggestionsHidden{})

	stopThinking := e.startThinking()

	// Query rewriting is best effort; the raw question is always a valid
	// fallback.
	message := text
	if rewritten, err := e.collab.TransformQuery(ctx, text, historyWindow); err != nil {
		logging.SessionDebug("query transform failed, using raw question: %v", err)
	} else {
		message = rewritten
	}

	custom, _ := e.cache.Peek(camp.ID)
	req := relay.ChatRequest{
		Message:            message,
		CampID:             camp.ID,
		Instructions:       basePrompt,
		CustomInstructions: custom,
		CamperContext:      camperContext,
		History:            wireHistory,
	}

	dec := e.collab.StreamChat(ctx, req)
	defer dec.Close()

	var full strings.Builder
	var citations []stream.Citation
	started := false
	for {
		ev, ok := dec.Next()
		if !ok {
			break
		}
		switch ev.Kind {
		case stream.EventTextDelta:
			if !started {
				started = true
				stopThinking()
				e.emit(ThinkingStopped{})
				e.emit(AssistantStarted{})
			}
			full.WriteString(ev.Text)
			text := full.String()
			e.emit(AssistantUpdated{Text: text, Blocks: markdown.Render(text)})
		case stream.EventCitations:
			citations = ev.Citations
		}
	}
	if !started {
		stopThinking()
		e.emit(ThinkingStopped{})
	}

	e.mu.Lock()
	if dec.Failed() {
		// Roll back the user turn so history stays a sequence of completed
		// exchanges.
		if n := len(e.history); n > 0 && e.history[n-1].Role == "user" {
			e.history = e.history[:n-1]
		}
		e.setState(Idle)
		e.mu.Unlock()
		logging.SessionError("exchange failed, user turn rolled back")
		failText := full.String()
		if failText == "" {
			failText = genericFailureText
		}
		e.emit(AssistantFailed{Text: failText})
		return
	}
	answer := full.String()
	e.history = append(e.history, Turn{Role: "assistant", Text: answer})
	e.setState(Idle)
	e.mu.Unlock()
	e.emit(AssistantCompleted{Text: answer, Citations: citations})
}

// startThinking emits a placeholder phrase immediately and another on every
// tick until the returned stop function is called. Stop is idempotent.
func (e *Engine) startThinking() func() {
	stop := make(chan struct{})
	var once sync.Once

	e.mu.Lock()
	first := thinkingPhrases[e.rng.Intn(len(thinkingPhrases))]
	e.mu.Unlock()
	e.emit(ThinkingPhrase{Text: first})

	go func() {
		ticker := time.NewTicker(e.opts.ThinkingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.mu.Lock()
				phrase := thinkingPhrases[e.rng.Intn(len(thinkingPhrases))]
				stopped := e.state != AwaitingResponse
				e.mu.Unlock()
				if stopped {
					return
				}
				e.emit(ThinkingPhrase{Text: phrase})
			}
		}
	}()
	return func() { once.Do(func() { close(stop) }) }
}

// recentHistoryLocked formats the most recent committed turns for the query
// rewriter, excluding the just-appended user turn.
func (e *Engine) recentHistoryLocked() []string {
	committed := e.history
	if n := len(committed); n > 0 && committed[n-1].Role == "user" {
		committed = committed[:n-1]
	}
	start := 0
	if len(committed) > e.opts.HistoryWindow {
		start = len(committed) - e.opts.HistoryWindow
	}
	out := make([]string, 0, len(committed)-start)
	for _, t := range committed[start:] {
		role := "User"
		if t.Role == "assistant" {
			role = "Assistant"
		}
		out = append(out, role+": "+t.Text)
	}
	return out
}

func (e *Engine) wireHistoryLocked() []relay.HistoryTurn {
	committed := e.history
	if n := len(committed); n > 0 && committed[n-1].Role == "user" {
		committed = committed[:n-1]
	}
	start := 0
	if len(committed) > e.opts.HistoryWindow {
		start = len(committed) - e.opts.HistoryWindow
	}
	out := make([]relay.HistoryTurn, 0, len(committed)-start)
	for _, t := range committed[start:] {
		out = append(out, relay.HistoryTurn{Role: t.Role, Text: t.Text})
	}
	return out
}

// ===== SUGGESTIONS =====

func (e *Engine) refreshSuggestions(ctx context.Context) {
	// Chips from the previous trigger come down immediately; a slow or failed
	// fetch must not leave them selectable against the new context.
	e.emit(SuggestionsHidden{})
	e.mu.Lock()
	if e.active == nil || e.suggestionsMuted {
		e.mu.Unlock()
		return
	}
	campID := e.active.ID
	personalization := e.roster.Context()
	e.mu.Unlock()
	e.suggestions.Refresh(ctx, campID, personalization)
}

func (e *Engine) deliverSuggestions(questions []string) {
	e.mu.Lock()
	muted := e.suggestionsMuted || e.active == nil
	e.mu.Unlock()
	if muted {
		logging.SuggestDebug("dropping %d suggestions delivered while muted", len(questions))
		return
	}
	e.emit(SuggestionsShown{Questions: questions})
}

// ===== ROSTER =====

// AddCamper appends a blank camper entry. Adding alone does not refresh
// suggestions; personalization only changes once a name is chosen.
func (e *Engine) AddCamper() {
	e.mu.Lock()
	e.roster.Add()
	snapshot := e.roster.Snapshot()
	welcome := e.roster.Welcome()
	e.mu.Unlock()
	e.emit(RosterChanged{Campers: snapshot})
	e.emit(WelcomeChanged{Text: welcome})
}

// RemoveCamper deletes a camper. The last remaining entry cannot be removed.
func (e *Engine) RemoveCamper(ctx context.Context, id int) {
	e.mu.Lock()
	ok := e.roster.Remove(id)
	snapshot := e.roster.Snapshot()
	welcome := e.roster.Welcome()
	e.mu.Unlock()
	if !ok {
		return
	}
	e.emit(RosterChanged{Campers: snapshot})
	e.emit(WelcomeChanged{Text: welcome})
	e.refreshSuggestions(ctx)
}

// SetCamperName assigns a camper's name, clearing any previously chosen
// segments since they described a different child.
func (e *Engine) SetCamperName(ctx context.Context, id int, name string) {
	e.mu.Lock()
	ok := e.roster.SetName(id, name)
	snapshot := e.roster.Snapshot()
	welcome := e.roster.Welcome()
	e.mu.Unlock()
	if !ok {
		return
	}
	e.emit(RosterChanged{Campers: snapshot})
	e.emit(WelcomeChanged{Text: welcome})
	e.refreshSuggestions(ctx)
}

// SetCamperSegment selects a segment value for a camper. An empty value
// clears the selection.
func (e *Engine) SetCamperSegment(ctx context.Context, id int, label, value string) {
	e.mu.Lock()
	ok := e.roster.SetSegment(id, label, value)
	snapshot := e.roster.Snapshot()
	welcome := e.roster.Welcome()
	e.mu.Unlock()
	if !ok {
		return
	}
	e.emit(RosterChanged{Campers: snapshot})
	e.emit(WelcomeChanged{Text: welcome})
	e.refreshSuggestions(ctx)
}

// ===== INSTRUCTIONS =====

// SaveInstructions uploads an instruction override for the active camp.
func (e *Engine) SaveInstructions(ctx context.Context, text string) {
	e.mu.Lock()
	if e.active == nil {
		e.mu.Unlock()
		e.emit(Notice{Text: selectCampNotice})
		return
	}
	campID := e.active.ID
	e.mu.Unlock()

	if err := e.cache.Save(ctx, campID, text); err != nil {
		e.emit(InstructionStatus{Text: "Failed to save instructions: " + err.Error(), OK: false})
		return
	}
	e.emit(InstructionStatus{Text: "Instructions saved", OK: true})
	if fresh, ok := e.cache.Peek(campID); ok {
		e.emit(InstructionsLoaded{Text: fresh})
	}
}

// DeleteInstructions removes the override for the active camp.
func (e *Engine) DeleteInstructions(ctx context.Context) {
	e.mu.Lock()
	if e.active == nil {
		e.mu.Unlock()
		e.emit(Notice{Text: selectCampNotice})
		return
	}
	campID := e.active.ID
	e.mu.Unlock()

	if err := e.cache.Delete(ctx, campID); err != nil {
		e.emit(InstructionStatus{Text: "Failed to delete instructions: " + err.Error(), OK: false})
		return
	}
	e.emit(InstructionStatus{Text: "Instructions deleted", OK: true})
	e.emit(InstructionsLoaded{Text: ""})
}

// LoadInstructions fetches (or serves from cache) the active camp's
// override and reports it through InstructionsLoaded.
func (e *Engine) LoadInstructions(ctx context.Context) {
	e.mu.Lock()
	if e.active == nil {
		e.mu.Unlock()
		e.emit(Notice{Text: selectCampNotice})
		return
	}
	campID := e.active.ID
	e.mu.Unlock()

	text, err := e.cache.Load(ctx, campID)
	if err != nil {
		e.emit(InstructionStatus{Text: "Failed to load instructions: " + err.Error(), OK: false})
		return
	}
	e.emit(InstructionsLoaded{Text: text})
}

// Close cancels any in-flight suggestion fetch. The event channel stays open
// for late readers.
func (e *Engine) Close() {
	e.suggestions.Cancel()
}
