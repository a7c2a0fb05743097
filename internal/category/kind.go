// Package category turns one raw scenario table into an indexed table whose
// composite key depends on the table's data kind.
package category

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned for a which_data tag that is none of the known
// data kinds.
var ErrUnknownKind = errors.New("unknown data kind")

// Kind is the closed set of data kinds produced by the scenario pipeline.
// The zero value is invalid.
type Kind int

const (
	SystemCosts Kind = iota + 1
	SimpOutputResults
	TimeDepCosts
)

// Kinds lists every valid kind in a stable order.
func Kinds() []Kind { return []Kind{SystemCosts, SimpOutputResults, TimeDepCosts} }

// String returns the category tag, which is also the relation name used by
// the relational sinks.
func (k Kind) String() string {
	switch k {
	case SystemCosts:
		return "system_costs"
	case SimpOutputResults:
		return "simp_output_results"
	case TimeDepCosts:
		return "time_dep_costs"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind maps a which_data tag from a file name to a Kind.
//
// Spaces and underscores are interchangeable ("system costs" == "system_costs").
// "sistem costs" is a historical misspelling still present in older exports
// and maps to SystemCosts.
func ParseKind(tag string) (Kind, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(tag), " ", "_")
	switch norm {
	case "system_costs", "sistem_costs":
		return SystemCosts, nil
	case "simp_output_results":
		return SimpOutputResults, nil
	case "time_dep_costs":
		return TimeDepCosts, nil
	default:
		return 0, fmt.Errorf("%w: which_data=%q", ErrUnknownKind, tag)
	}
}

// Column names shared by every kind's composite key.
const (
	ColSysConfig       = "sysconfig"
	ColTechnology      = "technology"
	ColDistance        = "distance"
	ColBoundEco        = "bound_eco"
	ColBoundTech       = "bound_tech"
	ColRepPipe         = "rep_pipe"
	ColComponent       = "component"
	ColComponentGroups = "component_groups"
	ColYear            = "year"
)

var baseKey = []string{ColSysConfig, ColTechnology, ColDistance, ColBoundEco, ColBoundTech, ColRepPipe}

// KeyPolicy returns the explicit composite key of a kind, in order.
//
//   - SystemCosts:       base + component
//   - SimpOutputResults: base (one logical entry per file)
//   - TimeDepCosts:      base + year
func KeyPolicy(k Kind) []string {
	key := append([]string(nil), baseKey...)
	switch k {
	case SystemCosts:
		return append(key, ColComponent)
	case SimpOutputResults:
		return key
	case TimeDepCosts:
		return append(key, ColYear)
	default:
		panic(fmt.Sprintf("category: KeyPolicy of invalid %s", k))
	}
}
