// Package csvio reads and writes the atlas CSV exchange files. Headers and
// column order are fixed, and every field is double quoted on output.
package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// File names of the exchange files inside a release directory.
const (
	MotifListFile         = "MotifList.csv"
	MotifPositionsFile    = "MotifPositions.csv"
	MotifLoopOrderFile    = "MotifLoopOrder.csv"
	MutualDiscrepancyFile = "MutualDiscrepancy.csv"
	MotifBpSignaturesFile = "MotifBpSignatures.csv"
)

// Headers of the exchange files.
var (
	MotifListHeader         = []string{"id", "name"}
	MotifPositionsHeader    = []string{"name", "loop_id", "unit_id", "position"}
	MotifLoopOrderHeader    = []string{"name", "loop_id", "original_order", "similarity_order"}
	MutualDiscrepancyHeader = []string{"loop_id_1", "discrepancy", "loop_id_2"}
	MotifBpSignaturesHeader = []string{"name", "bp_signature"}
)

// ErrHeader is returned when a file does not start with the expected header.
var ErrHeader = errors.New("unexpected header")

// quotedWriter writes records with every field quoted, which
// encoding/csv does not offer.
type quotedWriter struct {
	w   *bufio.Writer
	err error
}

func newQuotedWriter(w io.Writer) *quotedWriter {
	return &quotedWriter{w: bufio.NewWriter(w)}
}

func (q *quotedWriter) write(fields ...string) {
	if q.err != nil {
		return
	}
	var sb strings.Builder
	for i, f := range fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(f, `"`, `""`))
		sb.WriteByte('"')
	}
	sb.WriteByte('\n')
	_, q.err = q.w.WriteString(sb.String())
}

func (q *quotedWriter) flush() error {
	if q.err != nil {
		return q.err
	}
	return q.w.Flush()
}

// readRecords reads every record after checking the header.
func readRecords(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)
	got, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(got, header) {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrHeader, got, header)
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// writeFile creates path and hands a writer to fn.
func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
