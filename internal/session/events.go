package session

import (
	"campchat/internal/markdown"
	"campchat/internal/relay"
	"campchat/internal/roster"
	"campchat/internal/stream"
)

// Event is a notification the engine emits to its presentation layer. Each
// variant is a concrete struct; consumers switch on the dynamic type, the
// same way a tea.Msg is consumed.
type Event interface{ sessionEvent() }

// StateChanged reports a state machine transition.
type StateChanged struct {
	From State
	To   State
}

// CampsLoaded carries the selectable camps after initialization.
type CampsLoaded struct {
	Camps []relay.Camp
}

// CampSwitched reports that a camp became active. Title is the widget
// header text for the camp.
type CampSwitched struct {
	Camp  relay.Camp
	Title string
}

// TranscriptCleared tells the view to drop all rendered turns.
type TranscriptCleared struct{}

// WelcomeChanged carries the (possibly personalized) first assistant turn.
type WelcomeChanged struct {
	Text string
}

// UserTurnAdded echoes a submitted question back to the view.
type UserTurnAdded struct {
	Text string
}

// ThinkingPhrase replaces the placeholder text while a response is pending.
type ThinkingPhrase struct {
	Text string
}

// ThinkingStopped removes the placeholder.
type ThinkingStopped struct{}

// AssistantStarted opens a new in-progress assistant turn.
type AssistantStarted struct{}

// AssistantUpdated carries the accumulated response re-rendered after a
// delta. Blocks is the markdown tree for the full text so far.
type AssistantUpdated struct {
	Text   string
	Blocks []markdown.Block
}

// AssistantCompleted finalizes the in-progress turn.
type AssistantCompleted struct {
	Text      string
	Citations []stream.Citation
}

// AssistantFailed replaces the in-progress turn with a failure message. The
// submitted user turn has already been removed from history.
type AssistantFailed struct {
	Text string
}

// Notice is a standalone informational assistant turn, such as the prompt to
// pick a camp before chatting.
type Notice struct {
	Text string
}

// SchemaLoaded carries the segment options for the active camp.
type SchemaLoaded struct {
	Schema []roster.SegmentOption
}

// RosterChanged reports any camper mutation. Campers is a snapshot.
type RosterChanged struct {
	Campers []roster.Camper
}

// SuggestionsShown carries freshly fetched suggested questions.
type SuggestionsShown struct {
	Questions []string
}

// SuggestionsHidden tells the view to remove the suggestion chips.
type SuggestionsHidden struct{}

// InstructionStatus is transient feedback for instruction save and delete
// operations, shown briefly then dismissed by the view.
type InstructionStatus struct {
	Text string
	OK   bool
}

// InstructionsLoaded carries the active camp's instruction override text.
// Empty text means no override is configured.
type InstructionsLoaded struct {
	Text string
}

func (StateChanged) sessionEvent()       {}
func (CampsLoaded) sessionEvent()        {}
func (CampSwitched) sessionEvent()       {}
func (TranscriptCleared) sessionEvent()  {}
func (WelcomeChanged) sessionEvent()     {}
func (UserTurnAdded) sessionEvent()      {}
func (ThinkingPhrase) sessionEvent()     {}
func (ThinkingStopped) sessionEvent()    {}
func (AssistantStarted) sessionEvent()   {}
func (AssistantUpdated) sessionEvent()   {}
func (AssistantCompleted) sessionEvent() {}
func (AssistantFailed) sessionEvent()    {}
func (Notice) sessionEvent()             {}
func (SchemaLoaded) sessionEvent()       {}
func (RosterChanged) sessionEvent()      {}
func (SuggestionsShown) sessionEvent()   {}
func (SuggestionsHidden) sessionEvent()  {}
func (InstructionStatus) sessionEvent()  {}
func (InstructionsLoaded) sessionEvent() {}
