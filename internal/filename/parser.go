// Package filename extracts scenario metadata from the names of simulation
// output files.
//
// The naming contract is fixed:
//
//	{which_data}_{technology}_{distance}_{bound_eco}_{bound_tech}_{pipe_kind}_pipe.csv
//
// which_data identifies the data kind and may be a multi-word label
// ("system costs"); every other token is a run of lower-case letters, except
// distance which must be an integer.
package filename

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Template is the naming contract, kept for diagnostics.
const Template = "{which_data}_{technology}_{distance}_{bound_eco}_{bound_tech}_{pipe_kind}_pipe.csv"

// Field names of the metadata extracted from a file name. These become
// table columns (pipe_kind is later replaced by rep_pipe).
const (
	FieldTechnology = "technology"
	FieldDistance   = "distance"
	FieldBoundEco   = "bound_eco"
	FieldBoundTech  = "bound_tech"
	FieldPipeKind   = "pipe_kind"
)

// ErrNamingContract is returned when a file name does not match Template.
var ErrNamingContract = errors.New("file name does not match naming contract")

// which_data is matched lazily so that "system_costs_alk_..." resolves to
// which_data="system_costs" rather than swallowing the technology token.
var templateRE = regexp.MustCompile(
	`^(.+?)_([a-z]+)_([-+]?[0-9]+)_([a-z]+)_([a-z]+)_([a-z]+)_pipe\.csv$`,
)

// Meta is the metadata encoded in one file name.
type Meta struct {
	WhichData  string
	Technology string
	Distance   int64
	BoundEco   string
	BoundTech  string
	PipeKind   string
}

// Parse matches name (a base name, not a path) against Template.
//
// Errors:
//   - Returns an error wrapping ErrNamingContract when the name does not
//     match. There is no partial parse.
func Parse(name string) (Meta, error) {
	m := templateRE.FindStringSubmatch(name)
	if m == nil {
		return Meta{}, fmt.Errorf("%s: %w (want %s)", name, ErrNamingContract, Template)
	}

	dist, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return Meta{}, fmt.Errorf("%s: %w: distance %q: %v", name, ErrNamingContract, m[3], err)
	}

	return Meta{
		WhichData:  m[1],
		Technology: m[2],
		Distance:   dist,
		BoundEco:   m[4],
		BoundTech:  m[5],
		PipeKind:   m[6],
	}, nil
}

// Fields returns the five named fields (everything except which_data).
// distance is always an int64.
func (m Meta) Fields() map[string]any {
	return map[string]any{
		FieldTechnology: m.Technology,
		FieldDistance:   m.Distance,
		FieldBoundEco:   m.BoundEco,
		FieldBoundTech:  m.BoundTech,
		FieldPipeKind:   m.PipeKind,
	}
}

// RepPipe reports whether the file describes a repurposed pipeline.
// Only the literal token "rep" counts.
func (m Meta) RepPipe() bool { return m.PipeKind == "rep" }
