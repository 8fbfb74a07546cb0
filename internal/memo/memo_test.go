package memo

import (
	"errors"
	"strings"
	"testing"
)

const bulletMemo = `Here is the memo you asked for.

* **Short Summary:**
    * Report timeline and vendor choice were discussed.
* **Action Items:**
    * Action: Send the report
      Owner: Alice
      Deadline: Friday
    * Action: Book the venue
* **Decisions:**
    * Decision: use vendor X.
* **Risks:** None identified.
* **Issues:**
    * The budget owner is unclear.
`

func TestParseBulletMemo(t *testing.T) {
	m := Parse(bulletMemo)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if got := m.Entries[ShortSummary]; len(got) != 1 || !strings.Contains(got[0], "vendor choice") {
		t.Errorf("summary = %q", got)
	}
	if got := m.Entries[Decisions]; len(got) != 1 || !strings.Contains(got[0], "vendor X") {
		t.Errorf("decisions = %q", got)
	}
	if got := m.Entries[Risks]; len(got) != 1 || got[0] != "None identified." {
		t.Errorf("risks = %q", got)
	}
	if got := m.Entries[Issues]; len(got) != 1 {
		t.Errorf("issues = %q", got)
	}

	want := []ActionItem{
		{Action: "Send the report", Owner: "Alice", Deadline: "Friday"},
		{Action: "Book the venue", Owner: "TBC", Deadline: "TBC"},
	}
	if len(m.ActionItems) != len(want) {
		t.Fatalf("action items = %+v", m.ActionItems)
	}
	for i := range want {
		if m.ActionItems[i] != want[i] {
			t.Errorf("action item %d = %+v, want %+v", i, m.ActionItems[i], want[i])
		}
	}
}

func TestParseHeadingMemo(t *testing.T) {
	answer := `## Short Summary
- Kickoff for the migration.

## Action Items
- **Action:** Draft the plan (**Owner:** Bob, **Deadline:** 2024-05-01)

### Decisions
Go with the phased rollout.

### Risks:
- Vendor lock-in.

### **Issues**
- None.
`
	m := Parse(answer)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(m.ActionItems) != 1 {
		t.Fatalf("action items = %+v", m.ActionItems)
	}
	last := m.ActionItems[0]
	if last.Action != "Draft the plan" || last.Owner != "Bob" || last.Deadline != "2024-05-01" {
		t.Errorf("action item = %+v", last)
	}
	if got := m.Entries[Decisions]; len(got) != 1 || got[0] != "Go with the phased rollout." {
		t.Errorf("decisions = %q", got)
	}
}

func TestParsePlainLines(t *testing.T) {
	answer := "Summary: quick sync.\nAction Items: Alice sends the report, owner: Alice, deadline: Friday\nDecisions: vendor X\nRisks: none\nIssues: none"
	m := Parse(answer)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := m.Entries[ShortSummary]; len(got) != 1 || got[0] != "quick sync." {
		t.Errorf("summary = %q", got)
	}
	if len(m.ActionItems) != 1 || m.ActionItems[0].Owner != "Alice" || m.ActionItems[0].Deadline != "Friday" {
		t.Errorf("action items = %+v", m.ActionItems)
	}
	if m.ActionItems[0].Action != "Alice sends the report" {
		t.Errorf("action = %q", m.ActionItems[0].Action)
	}
}

func TestValidateReportsMissingSections(t *testing.T) {
	m := Parse("* **Short Summary:** talked a lot\n* **Decisions:** none\n")
	err := m.Validate()
	if !errors.Is(err, ErrMissingSection) {
		t.Fatalf("err = %v, want ErrMissingSection", err)
	}
	for _, s := range []Section{ActionItems, Risks, Issues} {
		if !strings.Contains(err.Error(), string(s)) {
			t.Errorf("error %q does not name %s", err, s)
		}
	}
	if strings.Contains(err.Error(), string(Decisions)) {
		t.Errorf("error %q names a present section", err)
	}
}

func TestLabelsNeedAMarker(t *testing.T) {
	// a sentence that merely starts with a section word is not a label
	m := Parse("Risks and mitigations were not discussed.\n\nDecision: use vendor X.")
	if len(m.Missing) != len(Sections) {
		t.Errorf("missing = %v, want all sections", m.Missing)
	}
}

func TestParseNumberedHeadings(t *testing.T) {
	answer := `## 1. Short Summary
Kickoff for the migration.

## 2. Action Items
- Action: Draft the plan, Owner: Bob, Deadline: 2024-05-01

## 3) **Decisions**
- Go with the phased rollout.

**4. Risks:** Vendor lock-in.

5. Issues: none.
`
	m := Parse(answer)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := m.Entries[ShortSummary]; len(got) != 1 || got[0] != "Kickoff for the migration." {
		t.Errorf("summary = %q", got)
	}
	if len(m.ActionItems) != 1 || m.ActionItems[0] != (ActionItem{Action: "Draft the plan", Owner: "Bob", Deadline: "2024-05-01"}) {
		t.Errorf("action items = %+v", m.ActionItems)
	}
	if got := m.Entries[Risks]; len(got) != 1 || got[0] != "Vendor lock-in." {
		t.Errorf("risks = %q", got)
	}
}

func TestParseActionItemTable(t *testing.T) {
	answer := `## Short Summary
Quick sync on the report.

## Action Items

| Action | Owner | Due Date |
|--------|-------|----------|
| Send the report | **Alice** | Friday |
| Book the venue | | |

## Decisions
- Use vendor X.

## Risks
- None.

## Issues
- None.
`
	m := Parse(answer)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := []ActionItem{
		{Action: "Send the report", Owner: "Alice", Deadline: "Friday"},
		{Action: "Book the venue", Owner: "TBC", Deadline: "TBC"},
	}
	if len(m.ActionItems) != len(want) {
		t.Fatalf("action items = %+v", m.ActionItems)
	}
	for i := range want {
		if m.ActionItems[i] != want[i] {
			t.Errorf("action item %d = %+v, want %+v", i, m.ActionItems[i], want[i])
		}
	}
	if got := m.Entries[Decisions]; len(got) != 1 || got[0] != "Use vendor X." {
		t.Errorf("decisions = %q", got)
	}
}
