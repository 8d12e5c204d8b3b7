package merge

import (
	"strconv"
	"strings"
)

// CellState distinguishes a column that was omitted from the uploaded file
// from one that is present but blank. An absent column means "do not touch
// this field"; a present-but-empty cell means "clear this field".
type CellState int

const (
	Absent CellState = iota
	PresentEmpty
	PresentWithValue
)

type Cell struct {
	State CellState
	Raw   string
}

// Row is one merge-instruction record keyed by CSV header. Map membership
// carries meaning, so rows are only ever built from the file's own header.
type Row map[string]string

func (r Row) Lookup(col string) Cell {
	raw, ok := r[col]
	if !ok {
		return Cell{State: Absent}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Cell{State: PresentEmpty}
	}
	return Cell{State: PresentWithValue, Raw: raw}
}

func (c Cell) Present() bool  { return c.State != Absent }
func (c Cell) HasValue() bool { return c.State == PresentWithValue }

// String yields the cell as a nullable string: nil for an absent or empty
// cell.
func (c Cell) String() *string {
	if !c.HasValue() {
		return nil
	}
	v := c.Raw
	return &v
}

// Bool is case-insensitive: "true"/"t" and "false"/"f"; anything else is
// nil, never an error.
func (c Cell) Bool() *bool {
	if !c.HasValue() {
		return nil
	}
	switch strings.ToLower(c.Raw) {
	case "true", "t":
		v := true
		return &v
	case "false", "f":
		v := false
		return &v
	}
	return nil
}

// Int falls back to parsing as a float and truncating, to handle values
// like "7.0" that spreadsheets obliviously append ".0" to. Unparseable
// cells yield nil.
func (c Cell) Int() *int {
	if !c.HasValue() {
		return nil
	}
	if n, err := strconv.Atoi(c.Raw); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(c.Raw, 64); err == nil {
		n := int(f)
		return &n
	}
	return nil
}

func (c Cell) Float() *float64 {
	if !c.HasValue() {
		return nil
	}
	if f, err := strconv.ParseFloat(c.Raw, 64); err == nil {
		return &f
	}
	return nil
}

// splitList breaks a pipe-delimited cell into values, dropping empties.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		p := strings.TrimSpace(part)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func pipeJoin(xs []string) string {
	return strings.Join(xs, "|")
}

// sameSet compares by membership only; duplicates in either list are
// collapsed, so "books|books" matches a stored single "books" relation.
func sameSet(a, b []string) bool {
	as := map[string]struct{}{}
	for _, x := range a {
		as[x] = struct{}{}
	}
	bs := map[string]struct{}{}
	for _, x := range b {
		bs[x] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for x := range as {
		if _, ok := bs[x]; !ok {
			return false
		}
	}
	return true
}

// standardizePhone normalizes NANP numbers to E.164 (+1XXXXXXXXXX). Other
// shapes pass through trimmed; nil stays nil.
func standardizePhone(p *string) *string {
	if p == nil {
		return nil
	}
	var digits strings.Builder
	for _, r := range *p {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) == 10:
		v := "+1" + d
		return &v
	case len(d) == 11 && d[0] == '1':
		v := "+" + d
		return &v
	}
	v := strings.TrimSpace(*p)
	return &v
}
