package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Dataset is a small columnar table: a header and string-valued rows.
// It is the unit the access filter operates on before anything reaches
// presentation code.
type Dataset struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Empty returns a dataset with the same header and no rows.
func (d Dataset) Empty() Dataset {
	cols := make([]string, len(d.Columns))
	copy(cols, d.Columns)
	return Dataset{Columns: cols, Rows: [][]string{}}
}

// ColumnIndex resolves a column name case-insensitively. Returns -1 when
// the column is absent.
func (d Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// FilterEqualFold returns a copy containing only rows whose value in the
// named column equals want case-insensitively. A missing column yields the
// dataset unchanged; the caller decides whether that is acceptable.
func (d Dataset) FilterEqualFold(column, want string) Dataset {
	idx := d.ColumnIndex(column)
	if idx < 0 {
		return d
	}

	out := d.Empty()
	for _, row := range d.Rows {
		if idx < len(row) && strings.EqualFold(strings.TrimSpace(row[idx]), strings.TrimSpace(want)) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// DistinctValues returns the unique trimmed values of a column in first-seen
// order. Useful for building country selectors.
func (d Dataset) DistinctValues(column string) []string {
	idx := d.ColumnIndex(column)
	if idx < 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var values []string
	for _, row := range d.Rows {
		if idx >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[idx])
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		values = append(values, v)
	}
	return values
}

// FromCSV reads a header row plus data rows.
func FromCSV(r io.Reader) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return Dataset{}, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("read csv header: %w", err)
	}

	ds := Dataset{Columns: header, Rows: [][]string{}}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, fmt.Errorf("read csv row: %w", err)
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// WriteCSV streams the dataset back out as CSV.
func (d Dataset) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(d.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range d.Rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
