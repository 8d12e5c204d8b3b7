package merge

import (
	"fmt"
)

// Mode selects between a dry run and a committing run. Narrative output is
// identical between the two except for the "will be " phrasing.
type Mode string

const (
	ModeValidate Mode = "validate"
	ModeUpdate   Mode = "update"
)

// Narrative is the ordered, operator-facing change log for one session.
// Lines are HTML fragments rendered by the admin upload page.
type Narrative struct {
	Lines []string
}

func (n *Narrative) Add(line string) {
	n.Lines = append(n.Lines, line)
}

func (n *Narrative) Addf(format string, args ...any) {
	n.Lines = append(n.Lines, fmt.Sprintf(format, args...))
}

func (n *Narrative) changed(mode Mode, field, old, new string) {
	n.Addf("%s %schanged from %s to %s.", field, willBe(mode), old, new)
}

func willBe(mode Mode) string {
	if mode == ModeValidate {
		return "will be "
	}
	return ""
}

// Nil values render as None for continuity with the narrative text the
// operators' existing tooling expects.
func strDisplay(p *string) string {
	if p == nil {
		return "None"
	}
	return *p
}

func boolDisplay(p *bool) string {
	if p == nil {
		return "None"
	}
	return fmt.Sprint(*p)
}

func intDisplay(p *int) string {
	if p == nil {
		return "None"
	}
	return fmt.Sprint(*p)
}

func floatDisplay(p *float64) string {
	if p == nil {
		return "None"
	}
	return fmt.Sprint(*p)
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func boolPtrEq(a, b *bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func floatPtrEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// The diff helpers compare a coerced cell against the entity's current
// in-memory value and, when they differ, record a narrative line and apply
// the change in memory, in BOTH modes, so later diffs in the same row see
// the updated value. Nothing is persisted here; commit is the caller's
// problem and only happens in update mode. A column that is absent from
// the row is skipped without narrative.

func diffString(n *Narrative, mode Mode, row Row, col string, cur **string) {
	diffStringAs(n, mode, row, col, col, cur)
}

// diffStringAs labels the narrative line with a destination field name that
// differs from the CSV column (organization_name updates "name").
func diffStringAs(n *Narrative, mode Mode, row Row, col, label string, cur **string) {
	c := row.Lookup(col)
	if !c.Present() {
		return
	}
	nv := c.String()
	if strPtrEq(*cur, nv) {
		return
	}
	n.changed(mode, label, strDisplay(*cur), strDisplay(nv))
	*cur = nv
}

func diffPhoneAs(n *Narrative, mode Mode, row Row, col, label string, cur **string) {
	c := row.Lookup(col)
	if !c.Present() {
		return
	}
	nv := standardizePhone(c.String())
	if strPtrEq(*cur, nv) {
		return
	}
	n.changed(mode, label, strDisplay(*cur), strDisplay(nv))
	*cur = nv
}

func diffBool(n *Narrative, mode Mode, row Row, col string, cur **bool) {
	diffBoolAs(n, mode, row, col, col, cur)
}

func diffBoolAs(n *Narrative, mode Mode, row Row, col, label string, cur **bool) {
	c := row.Lookup(col)
	if !c.Present() {
		return
	}
	nv := c.Bool()
	if boolPtrEq(*cur, nv) {
		return
	}
	n.changed(mode, label, boolDisplay(*cur), boolDisplay(nv))
	*cur = nv
}

func diffInt(n *Narrative, mode Mode, row Row, col string, cur **int) {
	c := row.Lookup(col)
	if !c.Present() {
		return
	}
	nv := c.Int()
	if intPtrEq(*cur, nv) {
		return
	}
	n.changed(mode, col, intDisplay(*cur), intDisplay(nv))
	*cur = nv
}

func diffFloat(n *Narrative, mode Mode, row Row, col string, cur **float64) {
	c := row.Lookup(col)
	if !c.Present() {
		return
	}
	nv := c.Float()
	if floatPtrEq(*cur, nv) {
		return
	}
	n.changed(mode, col, floatDisplay(*cur), floatDisplay(nv))
	*cur = nv
}
