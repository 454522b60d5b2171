package csvio

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/jp-address-parser/app/models"
)

// Header is the column layout written by Writer.
var Header = append(append([]string{"full_address"}, models.FieldNames...), "status", "error")

// Writer writes one CSV row per parse result. Absent fields are written as
// the null marker.
type Writer struct {
	w    *csv.Writer
	null string
}

func NewWriter(w io.Writer, null string) *Writer {
	return &Writer{w: csv.NewWriter(w), null: null}
}

func (w *Writer) WriteHeader() error {
	if err := w.w.Write(Header); err != nil {
		return fmt.Errorf("csvio: write header: %w", err)
	}
	return nil
}

// Write writes r. A failed result keeps its original line in full_address.
func (w *Writer) Write(r models.ParseResult) error {
	row := make([]string, 0, len(Header))
	if r.Record != nil {
		row = append(row, r.Record.FullAddress)
		for _, f := range r.Record.Fields() {
			row = append(row, w.value(f))
		}
	} else {
		row = append(row, r.Line)
		for range models.FieldNames {
			row = append(row, w.null)
		}
	}

	errText := ""
	if r.Err != nil {
		errText = r.Err.Error()
	}
	row = append(row, r.Status(), errText)

	if err := w.w.Write(row); err != nil {
		return fmt.Errorf("csvio: write row %d: %w", r.Index, err)
	}
	return nil
}

// WriteAll writes the header and every result, then flushes.
func (w *Writer) WriteAll(results []models.ParseResult) error {
	if err := w.WriteHeader(); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (w *Writer) Flush() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("csvio: flush: %w", err)
	}
	return nil
}

func (w *Writer) value(p *string) string {
	if p == nil {
		return w.null
	}
	return *p
}

// WriteTowns writes gazetteer rows with a prefecture,city,town header.
func WriteTowns(w io.Writer, rows []models.GazetteerTown) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"prefecture", "city", "town"}); err != nil {
		return fmt.Errorf("csvio: write towns: %w", err)
	}
	for _, t := range rows {
		if err := cw.Write([]string{t.Prefecture, t.City, t.Town}); err != nil {
			return fmt.Errorf("csvio: write towns: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
