package merge

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wprdc/asset-registry/internal/assets"
	"github.com/wprdc/asset-registry/internal/metrics"
)

// Runner executes one uploaded merge-instruction file against the store,
// row by row, in file order. A row-level abort moves on to the next row;
// a failed id resolution terminates the session.
type Runner struct {
	Store Store
}

// Run returns the full narrative in order. On a file-fatal error the
// narrative collected so far is returned alongside the error. State is
// only mutated in update mode; validate mode produces the same narrative
// modulo "will be " phrasing without persisting anything.
func (r *Runner) Run(reader io.Reader, filename string, mode Mode) ([]string, error) {
	rows, err := ReadRows(reader)
	if err != nil {
		return nil, err
	}

	metrics.MergeSessionsTotal.WithLabelValues(string(mode)).Inc()

	n := &Narrative{}
	for _, row := range rows {
		result, err := processRow(r.Store, row, mode, n)
		if err != nil {
			metrics.MergeRowsTotal.WithLabelValues("fatal").Inc()
			return n.Lines, err
		}
		switch result {
		case rowMerged:
			metrics.MergeRowsTotal.WithLabelValues("merged").Inc()
		case rowSkipped:
			metrics.MergeRowsTotal.WithLabelValues("skipped").Inc()
		case rowAborted:
			metrics.MergeRowsTotal.WithLabelValues("aborted").Inc()
		}
	}

	// The report is session metadata, not entity state, so it is kept in
	// both modes; it is what lets an operator re-read a dry run later.
	report := &assets.MergeReport{
		ID:        uuid.New(),
		Mode:      string(mode),
		Filename:  filename,
		Lines:     pq.StringArray(n.Lines),
		CreatedAt: time.Now(),
	}
	if err := r.Store.SaveReport(report); err != nil {
		log.Printf("failed to persist merge report: %v", err)
	}

	return n.Lines, nil
}

// ReadRows parses a header-driven CSV into Rows. Only columns named in the
// header appear as keys, preserving the absent-vs-blank distinction the
// merge semantics depend on. Short records fill missing trailing cells
// with blanks.
func ReadRows(reader io.Reader) ([]Row, error) {
	cr := csv.NewReader(bufio.NewReader(reader))
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading merge instructions: %w", err)
	}
	if len(records) < 2 {
		return nil, errors.New("merge instructions file has no data rows")
	}

	header := records[0]
	// Handle BOM on first header cell
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for _, rec := range records[1:] {
		row := Row{}
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(rec) {
				row[col] = rec[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
