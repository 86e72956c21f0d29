package chat

import (
	"strings"
	"testing"

	"campchat/internal/config"
	"campchat/internal/markdown"
	"campchat/internal/session"
)

func testModel() Model {
	return New(nil, config.Default())
}

func TestThinkingPhraseReplacesInPlace(t *testing.T) {
	m := testModel()

	m.applyEngineEvent(session.UserTurnAdded{Text: "when is pickup"})
	m.applyEngineEvent(session.ThinkingPhrase{Text: "Pondering deeply..."})
	m.applyEngineEvent(session.ThinkingPhrase{Text: "Consulting archives..."})

	if len(m.transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(m.transcript))
	}
	last := m.transcript[1]
	if !last.thinking || last.text != "Consulting archives..." {
		t.Errorf("thinking entry = %+v", last)
	}

	m.applyEngineEvent(session.ThinkingStopped{})
	if len(m.transcript) != 1 {
		t.Errorf("thinking entry not removed: %+v", m.transcript)
	}
}

func TestAssistantStreamFoldsIntoOneEntry(t *testing.T) {
	m := testModel()

	m.applyEngineEvent(session.UserTurnAdded{Text: "hi"})
	m.applyEngineEvent(session.AssistantStarted{})
	m.applyEngineEvent(session.AssistantUpdated{Text: "Pickup", Blocks: markdown.Render("Pickup")})
	m.applyEngineEvent(session.AssistantUpdated{Text: "Pickup is at 3pm.", Blocks: markdown.Render("Pickup is at 3pm.")})
	m.applyEngineEvent(session.AssistantCompleted{Text: "Pickup is at 3pm."})

	if len(m.transcript) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(m.transcript))
	}
	bot := m.transcript[1]
	if bot.role != "bot" || bot.text != "Pickup is at 3pm." {
		t.Errorf("bot entry = %+v", bot)
	}
}

func TestTranscriptClearedDropsEntries(t *testing.T) {
	m := testModel()
	m.applyEngineEvent(session.UserTurnAdded{Text: "hi"})
	m.applyEngineEvent(session.Notice{Text: "note"})
	m.applyEngineEvent(session.TranscriptCleared{})
	if len(m.transcript) != 0 {
		t.Errorf("transcript not cleared: %+v", m.transcript)
	}
}

func TestSuggestionEventsToggleChips(t *testing.T) {
	m := testModel()
	m.applyEngineEvent(session.SuggestionsShown{Questions: []string{"a", "b"}})
	if len(m.suggestions) != 2 {
		t.Fatalf("suggestions = %v", m.suggestions)
	}
	m.applyEngineEvent(session.SuggestionsHidden{})
	if m.suggestions != nil {
		t.Errorf("suggestions not hidden: %v", m.suggestions)
	}
}

func TestInstructionStatusSchedulesExpiry(t *testing.T) {
	m := testModel()
	cmd := m.applyEngineEvent(session.InstructionStatus{Text: "Instructions saved", OK: true})
	if cmd == nil {
		t.Fatal("no expiry command scheduled")
	}
	if m.status != "Instructions saved" || !m.statusOK {
		t.Errorf("status = %q ok=%v", m.status, m.statusOK)
	}

	// A stale expiry must not clear a newer status.
	seq := m.statusSeq
	m.applyEngineEvent(session.InstructionStatus{Text: "Instructions deleted", OK: true})
	model, _ := m.Update(statusExpiredMsg{seq: seq})
	m = model.(Model)
	if m.status != "Instructions deleted" {
		t.Errorf("stale expiry cleared the status: %q", m.status)
	}
}

func TestInstructionsDeleteRequiresConfirm(t *testing.T) {
	m := New(session.NewEngine(nil, session.Options{}), config.Default())

	model, _ := m.handleCommand("/instructions delete")
	m = model.(Model)
	if !strings.Contains(m.status, "confirm") {
		t.Fatalf("status = %q, want a confirmation hint", m.status)
	}

	_, cmd := m.handleCommand("/instructions delete confirm")
	if cmd == nil {
		t.Error("confirmed delete did not dispatch")
	}
}

func TestCampNoneDeselects(t *testing.T) {
	engine := session.NewEngine(nil, session.Options{})
	m := New(engine, config.Default())

	if _, cmd := m.handleCommand("/camp none"); cmd != nil {
		t.Error("deselect should complete synchronously")
	}
	if got := engine.State(); got != session.NoCampSelected {
		t.Errorf("engine state = %v, want NoCampSelected", got)
	}
}

func TestRenderBlocksStylesStructure(t *testing.T) {
	m := testModel()
	out := m.renderBlocks(markdown.Render("### Sessions\n* June\n* July\nSee **you** soon"))

	for _, want := range []string{"Sessions", "• June", "• July", "you"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "**") {
		t.Errorf("style markers leaked into output:\n%s", out)
	}
}
