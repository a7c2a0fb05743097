package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"h2scenarios/internal/frame"
)

// Options controls how one delimited file is read.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Encoding of the source bytes: "utf-8" (default), "windows-1252",
	// "latin1" / "iso-8859-1". Simulation tools running on Windows commonly
	// write "€" as the single cp1252 byte 0x80.
	Encoding string
	// TrimSpace trims leading/trailing space from header and data cells.
	TrimSpace bool
}

// DefaultOptions matches the files written by the scenario pipeline.
func DefaultOptions() Options {
	return Options{Comma: ',', Encoding: "utf-8", TrimSpace: true}
}

// Table is the raw content of one file: the leading index column kept as raw
// strings and every other column typed into a frame.
type Table struct {
	// IndexName is the header cell of the first column (often empty).
	IndexName string
	// RowIndex holds the first column of every data row.
	RowIndex []string
	// Frame holds the remaining columns, typed by frame.Classify. It has no
	// composite index yet.
	Frame *frame.Frame
}

// ReadFile opens, fully reads and closes one file.
func ReadFile(path string, opt Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTable(f, opt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadTable reads a header row plus data rows. The first column is treated as
// the row index (like a spreadsheet export with an unnamed leading index).
//
// Edge cases:
//   - A UTF-8 BOM on the first header cell is stripped.
//   - Rows shorter than the header are padded with missing cells; longer rows
//     are an error.
//   - Empty cells are missing (nil, or NaN in float columns).
//   - Duplicate header names are an error.
func ReadTable(src io.Reader, opt Options) (*Table, error) {
	dec, err := decoderFor(opt.Encoding)
	if err != nil {
		return nil, err
	}

	comma := opt.Comma
	if comma == 0 {
		comma = ','
	}

	cr := csv.NewReader(transform.NewReader(src, dec.NewDecoder()))
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read header: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(hdr) < 2 {
		return nil, fmt.Errorf("read header: want an index column and at least one data column, got %d columns", len(hdr))
	}

	names := make([]string, len(hdr))
	seen := make(map[string]bool, len(hdr))
	for i, h := range hdr {
		if opt.TrimSpace {
			h = strings.TrimSpace(h)
		}
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		if i > 0 {
			if h == "" {
				h = fmt.Sprintf("unnamed_%d", i)
			}
			if seen[h] {
				return nil, fmt.Errorf("read header: duplicate column %q", h)
			}
			seen[h] = true
		}
		names[i] = h
	}

	raw := make([][]string, len(names))
	line := 1
	for {
		rec, err := cr.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) > len(names) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), len(names))
		}
		for i := range names {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			if opt.TrimSpace {
				v = strings.TrimSpace(v)
			}
			raw[i] = append(raw[i], v)
		}
	}

	n := len(raw[0])
	fr := frame.New(n)
	for i := 1; i < len(names); i++ {
		kind := frame.Classify(raw[i])
		vals := make([]any, n)
		for r, cell := range raw[i] {
			v, err := frame.ParseCell(cell, kind)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", names[i], r+1, err)
			}
			vals[r] = v
		}
		if err := fr.AddColumn(names[i], vals); err != nil {
			return nil, err
		}
	}

	return &Table{IndexName: names[0], RowIndex: raw[0], Frame: fr}, nil
}

func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// CheckEncoding reports whether name is an encoding ReadTable understands.
func CheckEncoding(name string) error {
	_, err := decoderFor(name)
	return err
}
