// Package colname maps raw column headers to identifier-safe names.
package colname

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"h2scenarios/internal/frame"
)

// ErrCollision is returned when two distinct columns canonicalize to the same
// name.
var ErrCollision = errors.New("canonical column name collision")

var replacer = strings.NewReplacer(
	"[", "_",
	"]", "",
	" ", "",
	"€", "Euro",
	"/", "_per_",
	"%", "percent",
)

// Canonical rewrites a header into its canonical form.
//
//	"CAPEX [€/kW]" -> "CAPEX_Euro_per_kW"
//	"CO2 [%]"      -> "CO2_percent"
//
// The input is NFC-normalized first so that a decomposed euro sign or
// accented letter is rewritten the same as its precomposed form. Canonical is
// idempotent.
func Canonical(name string) string {
	return replacer.Replace(norm.NFC.String(name))
}

// NormalizeFrame renames every data column of f to its canonical name.
// Index columns are left untouched.
//
// Errors:
//   - ErrCollision if two columns map to the same name, or a renamed column
//     would shadow an existing one.
func NormalizeFrame(f *frame.Frame) error {
	taken := make(map[string]string, len(f.Columns()))
	for _, c := range f.Index() {
		taken[c] = c
	}

	type rename struct{ from, to string }
	var plan []rename
	for _, c := range f.DataColumns() {
		to := Canonical(c)
		if prev, ok := taken[to]; ok {
			return fmt.Errorf("%w: %q and %q both map to %q", ErrCollision, prev, c, to)
		}
		taken[to] = c
		if to != c {
			plan = append(plan, rename{c, to})
		}
	}

	// Two passes through temporary names so a chain like a->b, b->c never
	// trips over a column that has not been renamed yet.
	for i, r := range plan {
		if err := f.Rename(r.from, tmpName(i)); err != nil {
			return err
		}
	}
	for i, r := range plan {
		if err := f.Rename(tmpName(i), r.to); err != nil {
			return err
		}
	}
	return nil
}

func tmpName(i int) string { return fmt.Sprintf("\x00colname-%d", i) }
