// Package memo reads the five meeting memo sections back out of a model
// answer. The answer is markdown, so it is parsed with goldmark and the
// sections are located by their labels, which may be headings, bold list
// items or plain "Label:" paragraphs.
package memo

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var ErrMissingSection = errors.New("memo section missing")

type Section string

const (
	ShortSummary Section = "Short Summary"
	ActionItems  Section = "Action Items"
	Decisions    Section = "Decisions"
	Risks        Section = "Risks"
	Issues       Section = "Issues"
)

// Sections lists the memo sections in the order they are requested.
var Sections = []Section{ShortSummary, ActionItems, Decisions, Risks, Issues}

type ActionItem struct {
	Action   string `json:"action"`
	Owner    string `json:"owner"`
	Deadline string `json:"deadline"`
}

type Memo struct {
	Entries     map[Section][]string `json:"entries"`
	ActionItems []ActionItem         `json:"action_items"`
	Missing     []Section            `json:"missing,omitempty"`
}

// Validate fails when one of the sections was not found at all. Empty
// sections are fine, "no risks" is a valid memo.
func (m Memo) Validate() error {
	if len(m.Missing) == 0 {
		return nil
	}
	names := make([]string, len(m.Missing))
	for i, s := range m.Missing {
		names[i] = string(s)
	}
	return fmt.Errorf("%w: %s", ErrMissingSection, strings.Join(names, ", "))
}

const (
	labels = `short summary|summary|action items|decisions|risks|issues`
	// "1." or "2)" in front of a numbered section
	number = `(?:\d+[.)]\s*)?`
)

var (
	boldLabel    = regexp.MustCompile(`(?is)^\s*` + number + `(?:\*\*|__)\s*` + number + `(` + labels + `)\s*:?\s*(?:\*\*|__)\s*:?\s*(.*)$`)
	colonLabel   = regexp.MustCompile(`(?is)^\s*` + number + `(` + labels + `)\s*:\s*(.*)$`)
	headingLabel = regexp.MustCompile(`(?is)^\s*` + number + `(?:\*\*|__)?\s*` + number + `(` + labels + `)\s*:?\s*(?:\*\*|__)?\s*:?\s*$`)
	actionField  = regexp.MustCompile(`(?i)\b(action|owner|deadline)\s*:\s*`)
	emphasis     = strings.NewReplacer("**", "", "__", "")
)

func sectionFor(label string) Section {
	switch strings.ToLower(label) {
	case "short summary", "summary":
		return ShortSummary
	case "action items":
		return ActionItems
	case "decisions":
		return Decisions
	case "risks":
		return Risks
	default:
		return Issues
	}
}

type walker struct {
	src     []byte
	current Section
	found   map[Section]bool
	entries map[Section][]string
}

// Parse never fails, sections that cannot be found are listed in Missing.
func Parse(answer string) Memo {
	src := []byte(answer)
	doc := goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser().Parse(text.NewReader(src))

	w := &walker{src: src, found: map[Section]bool{}, entries: map[Section][]string{}}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		w.block(n)
	}

	m := Memo{Entries: w.entries}
	for _, s := range Sections {
		if !w.found[s] {
			m.Missing = append(m.Missing, s)
		}
	}
	for _, e := range w.entries[ActionItems] {
		m.ActionItems = append(m.ActionItems, parseActionItem(e))
	}
	return m
}

func (w *walker) block(n ast.Node) {
	switch n := n.(type) {
	case *ast.Heading:
		if s, ok := w.heading(n); ok {
			w.current = s
			return
		}
		w.add(w.leafText(n))
	case *ast.List:
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			w.item(item)
		}
	case *ast.Paragraph, *ast.TextBlock:
		w.paragraph(n)
	case *extast.Table:
		w.table(n)
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c)
		}
	}
}

// item turns a list item into one entry, unless it carries a label itself
// or somewhere below it.
func (w *walker) item(item ast.Node) {
	first := item.FirstChild()
	if first == nil {
		return
	}
	if s, rest, ok := w.label(first); ok {
		w.current = s
		w.add(rest)
		for c := first.NextSibling(); c != nil; c = c.NextSibling() {
			w.block(c)
		}
		return
	}
	if w.hasLabel(item) {
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			w.block(c)
		}
		return
	}
	w.add(w.flatten(item))
}

// paragraph checks every line for a label, so that a plain text memo with
// one "Label: ..." line per section is split correctly.
func (w *walker) paragraph(n ast.Node) {
	var buf []string
	flush := func() {
		w.add(strings.Join(buf, "\n"))
		buf = nil
	}
	for _, line := range w.leafLines(n) {
		if s, rest, ok := w.lineLabel(line); ok {
			flush()
			w.current = s
			buf = append(buf, rest)
			continue
		}
		buf = append(buf, line)
	}
	flush()
}

// table turns every row into one entry of "Column: value" pairs, so an
// action item table reads like an Action/Owner/Deadline list item.
func (w *walker) table(t *extast.Table) {
	var columns []string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, w.inlineText(cell))
		}
		if _, ok := row.(*extast.TableHeader); ok {
			for _, c := range cells {
				columns = append(columns, columnName(c))
			}
			continue
		}
		var parts []string
		for i, c := range cells {
			if c == "" {
				continue
			}
			if i < len(columns) && columns[i] != "" {
				c = columns[i] + ": " + c
			}
			parts = append(parts, c)
		}
		w.add(strings.Join(parts, " "))
	}
}

func columnName(header string) string {
	h := clean(emphasis.Replace(header))
	switch l := strings.ToLower(h); {
	case strings.Contains(l, "owner"), strings.Contains(l, "responsible"), strings.Contains(l, "assignee"):
		return "Owner"
	case strings.Contains(l, "deadline"), strings.Contains(l, "due"):
		return "Deadline"
	case strings.Contains(l, "action"), strings.Contains(l, "task"):
		return "Action"
	}
	return h
}

// inlineText joins the text of the inline nodes below n.
func (w *walker) inlineText(n ast.Node) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := c.(type) {
		case *ast.Text:
			sb.Write(c.Segment.Value(w.src))
			if c.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(c.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func (w *walker) add(entry string) {
	if w.current == "" {
		return
	}
	entry = strings.TrimSpace(emphasis.Replace(entry))
	if entry == "" {
		return
	}
	w.entries[w.current] = append(w.entries[w.current], entry)
}

func (w *walker) label(n ast.Node) (Section, string, bool) {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return w.lineLabel(w.leafText(n))
	case *ast.Heading:
		s, ok := w.heading(n)
		return s, "", ok
	}
	return "", "", false
}

func (w *walker) lineLabel(raw string) (Section, string, bool) {
	for _, re := range []*regexp.Regexp{boldLabel, colonLabel} {
		if m := re.FindStringSubmatch(raw); m != nil {
			s := sectionFor(m[1])
			w.found[s] = true
			return s, m[2], true
		}
	}
	return "", "", false
}

func (w *walker) heading(h *ast.Heading) (Section, bool) {
	m := headingLabel.FindStringSubmatch(w.leafText(h))
	if m == nil {
		return "", false
	}
	s := sectionFor(m[1])
	w.found[s] = true
	return s, true
}

// hasLabel reports whether any leaf below n starts a section. It does not
// mark sections as found.
func (w *walker) hasLabel(n ast.Node) bool {
	found := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || found {
			return ast.WalkContinue, nil
		}
		switch c.(type) {
		case *ast.Paragraph, *ast.TextBlock:
			raw := w.leafText(c)
			found = boldLabel.MatchString(raw) || colonLabel.MatchString(raw)
		case *ast.Heading:
			found = headingLabel.MatchString(w.leafText(c))
		}
		return ast.WalkContinue, nil
	})
	return found
}

// flatten joins the text of all leaf blocks below n, one per line.
func (w *walker) flatten(n ast.Node) string {
	var parts []string
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c.(type) {
		case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
			if t := w.leafText(c); t != "" {
				parts = append(parts, t)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(parts, "\n")
}

func (w *walker) leafText(n ast.Node) string {
	return strings.Join(w.leafLines(n), "\n")
}

func (w *walker) leafLines(n ast.Node) []string {
	var out []string
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if line := strings.TrimSpace(string(seg.Value(w.src))); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// parseActionItem reads "Action: x Owner: y Deadline: z" in any layout.
// Missing owner or deadline default to TBC like the prompt asks for.
func parseActionItem(entry string) ActionItem {
	item := ActionItem{Owner: "TBC", Deadline: "TBC"}
	idx := actionField.FindAllStringSubmatchIndex(entry, -1)
	if len(idx) == 0 {
		item.Action = clean(entry)
		return item
	}
	if lead := clean(entry[:idx[0][0]]); lead != "" {
		item.Action = lead
	}
	for i, m := range idx {
		end := len(entry)
		if i+1 < len(idx) {
			end = idx[i+1][0]
		}
		value := clean(entry[m[1]:end])
		if value == "" {
			continue
		}
		switch strings.ToLower(entry[m[2]:m[3]]) {
		case "action":
			item.Action = value
		case "owner":
			item.Owner = value
		case "deadline":
			item.Deadline = value
		}
	}
	return item
}

func clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,;()-*")
}
