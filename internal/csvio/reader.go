// Package csvio reads raw address lines and writes parsed records as CSV.
package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jp-address-parser/app/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func newReader(r io.Reader) (*csv.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(utf8BOM))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("csvio: read: %w", err)
	}
	if bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr, nil
}

// ReadAddresses returns the first column of every non-blank row. There is no
// header row.
func ReadAddresses(r io.Reader) ([]string, error) {
	cr, err := newReader(r)
	if err != nil {
		return nil, err
	}

	var lines []string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvio: read addresses: %w", err)
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		lines = append(lines, row[0])
	}
	return lines, nil
}

// ReadTowns reads prefecture,city,town rows. A header row starting with
// "prefecture" is skipped; the town column is optional.
func ReadTowns(r io.Reader) ([]models.GazetteerTown, error) {
	cr, err := newReader(r)
	if err != nil {
		return nil, err
	}

	var (
		rows []models.GazetteerTown
		line int
	)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvio: read towns: %w", err)
		}
		line++
		if line == 1 && len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "prefecture") {
			continue
		}
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("csvio: line %d: want prefecture,city[,town], got %d columns", line, len(row))
		}

		pref, city := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if pref == "" || city == "" {
			return nil, fmt.Errorf("csvio: line %d: prefecture and city are required", line)
		}
		town := ""
		if len(row) > 2 {
			town = strings.TrimSpace(row[2])
		}
		rows = append(rows, models.NewGazetteerTown(pref, city, town))
	}
	return rows, nil
}
