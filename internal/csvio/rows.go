package csvio

import (
	"fmt"
	"io"
	"strconv"
)

// MotifListRow maps a motif id to the name the clustering gave its group.
type MotifListRow struct {
	ID   string
	Name string
}

// MotifPositionRow places one unit of a loop at a 1-based motif position.
type MotifPositionRow struct {
	Name     string
	LoopID   string
	UnitID   string
	Position int
}

// MotifLoopOrderRow gives a loop's 1-based rank in its group, as clustered
// and as ordered by similarity.
type MotifLoopOrderRow struct {
	Name            string
	LoopID          string
	OriginalOrder   int
	SimilarityOrder int
}

// MutualDiscrepancyRow is one pairwise discrepancy inside a group.
type MutualDiscrepancyRow struct {
	Loop1       string
	Discrepancy float64
	Loop2       string
}

// MotifBpSignatureRow is a group's consensus basepair signature.
type MotifBpSignatureRow struct {
	Name      string
	Signature string
}

// WriteMotifList writes MotifList.csv rows.
func WriteMotifList(w io.Writer, rows []MotifListRow) error {
	q := newQuotedWriter(w)
	q.write(MotifListHeader...)
	for _, r := range rows {
		q.write(r.ID, r.Name)
	}
	return q.flush()
}

// ReadMotifList reads MotifList.csv rows.
func ReadMotifList(r io.Reader) ([]MotifListRow, error) {
	records, err := readRecords(r, MotifListHeader)
	if err != nil {
		return nil, err
	}
	out := make([]MotifListRow, len(records))
	for i, rec := range records {
		out[i] = MotifListRow{ID: rec[0], Name: rec[1]}
	}
	return out, nil
}

// WriteMotifPositions writes MotifPositions.csv rows.
func WriteMotifPositions(w io.Writer, rows []MotifPositionRow) error {
	q := newQuotedWriter(w)
	q.write(MotifPositionsHeader...)
	for _, r := range rows {
		q.write(r.Name, r.LoopID, r.UnitID, strconv.Itoa(r.Position))
	}
	return q.flush()
}

// ReadMotifPositions reads MotifPositions.csv rows.
func ReadMotifPositions(r io.Reader) ([]MotifPositionRow, error) {
	records, err := readRecords(r, MotifPositionsHeader)
	if err != nil {
		return nil, err
	}
	out := make([]MotifPositionRow, len(records))
	for i, rec := range records {
		pos, err := strconv.Atoi(rec[3])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad position %q: %w", i+2, rec[3], err)
		}
		out[i] = MotifPositionRow{Name: rec[0], LoopID: rec[1], UnitID: rec[2], Position: pos}
	}
	return out, nil
}

// WriteMotifLoopOrder writes MotifLoopOrder.csv rows.
func WriteMotifLoopOrder(w io.Writer, rows []MotifLoopOrderRow) error {
	q := newQuotedWriter(w)
	q.write(MotifLoopOrderHeader...)
	for _, r := range rows {
		q.write(r.Name, r.LoopID, strconv.Itoa(r.OriginalOrder), strconv.Itoa(r.SimilarityOrder))
	}
	return q.flush()
}

// ReadMotifLoopOrder reads MotifLoopOrder.csv rows.
func ReadMotifLoopOrder(r io.Reader) ([]MotifLoopOrderRow, error) {
	records, err := readRecords(r, MotifLoopOrderHeader)
	if err != nil {
		return nil, err
	}
	out := make([]MotifLoopOrderRow, len(records))
	for i, rec := range records {
		orig, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad original_order %q: %w", i+2, rec[2], err)
		}
		sim, err := strconv.Atoi(rec[3])
		if err != nil {
			return nil, fmt.Errorf("row %d: bad similarity_order %q: %w", i+2, rec[3], err)
		}
		out[i] = MotifLoopOrderRow{Name: rec[0], LoopID: rec[1], OriginalOrder: orig, SimilarityOrder: sim}
	}
	return out, nil
}

// WriteMutualDiscrepancy writes MutualDiscrepancy.csv rows. Discrepancies
// are written with four decimals.
func WriteMutualDiscrepancy(w io.Writer, rows []MutualDiscrepancyRow) error {
	q := newQuotedWriter(w)
	q.write(MutualDiscrepancyHeader...)
	for _, r := range rows {
		q.write(r.Loop1, strconv.FormatFloat(r.Discrepancy, 'f', 4, 64), r.Loop2)
	}
	return q.flush()
}

// ReadMutualDiscrepancy reads MutualDiscrepancy.csv rows.
func ReadMutualDiscrepancy(r io.Reader) ([]MutualDiscrepancyRow, error) {
	records, err := readRecords(r, MutualDiscrepancyHeader)
	if err != nil {
		return nil, err
	}
	out := make([]MutualDiscrepancyRow, len(records))
	for i, rec := range records {
		d, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad discrepancy %q: %w", i+2, rec[1], err)
		}
		out[i] = MutualDiscrepancyRow{Loop1: rec[0], Discrepancy: d, Loop2: rec[2]}
	}
	return out, nil
}

// WriteMotifBpSignatures writes MotifBpSignatures.csv rows.
func WriteMotifBpSignatures(w io.Writer, rows []MotifBpSignatureRow) error {
	q := newQuotedWriter(w)
	q.write(MotifBpSignaturesHeader...)
	for _, r := range rows {
		q.write(r.Name, r.Signature)
	}
	return q.flush()
}

// ReadMotifBpSignatures reads MotifBpSignatures.csv rows.
func ReadMotifBpSignatures(r io.Reader) ([]MotifBpSignatureRow, error) {
	records, err := readRecords(r, MotifBpSignaturesHeader)
	if err != nil {
		return nil, err
	}
	out := make([]MotifBpSignatureRow, len(records))
	for i, rec := range records {
		out[i] = MotifBpSignatureRow{Name: rec[0], Signature: rec[1]}
	}
	return out, nil
}
