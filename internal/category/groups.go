package category

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Infrastructure group labels used by DefaultGroups.
const (
	GroupWindFarm     = "Wind farm"
	GroupElectrolysis = "Electrolysis"
	GroupDesalination = "Desalination"
	GroupCompression  = "Compression & storage"
	GroupTransport    = "Transport"
)

// Groups is a read-only component -> infrastructure group lookup.
// The zero value maps every component to "".
type Groups struct {
	byName   map[string]string
	byFolded map[string]string
}

// NewGroups builds a lookup from a group -> components listing.
//
// Errors:
//   - A component listed under two different groups is an error.
func NewGroups(members map[string][]string) (Groups, error) {
	g := Groups{
		byName:   make(map[string]string),
		byFolded: make(map[string]string),
	}

	groups := make([]string, 0, len(members))
	for grp := range members {
		groups = append(groups, grp)
	}
	sort.Strings(groups)

	for _, grp := range groups {
		for _, c := range members[grp] {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if prev, ok := g.byName[c]; ok && prev != grp {
				return Groups{}, fmt.Errorf("component %q listed under %q and %q", c, prev, grp)
			}
			g.byName[c] = grp
			g.byFolded[strings.ToLower(c)] = grp
		}
	}
	return g, nil
}

// Lookup returns the group of a component, or "" when it is not mapped.
// Exact matches win over case-insensitive ones. Lookup never fails.
func (g Groups) Lookup(component string) string {
	c := strings.TrimSpace(component)
	if grp, ok := g.byName[c]; ok {
		return grp
	}
	return g.byFolded[strings.ToLower(c)]
}

// Len returns the number of mapped components.
func (g Groups) Len() int { return len(g.byName) }

// defaultMembers is the component list of the hydrogen supply chain model.
var defaultMembers = map[string][]string{
	GroupWindFarm: {
		"WT", "Wind turbine", "Wind turbines", "Foundation", "Foundations",
		"Array cables", "Inter-array cables", "Offshore substation",
	},
	GroupElectrolysis: {
		"Electrolyser", "Electrolyzer", "Stack", "Stack replacement",
		"Balance of plant", "BoP", "Rectifier", "Transformer",
	},
	GroupDesalination: {
		"Desalination", "Desalination unit", "Water treatment", "Water intake",
	},
	GroupCompression: {
		"Compressor", "Compression", "H2 storage", "Storage", "Buffer storage",
	},
	GroupTransport: {
		"Pipeline", "New pipeline", "Repurposed pipeline", "Export cable",
		"Landfall", "Platform",
	},
}

// DefaultGroups returns the built-in lookup.
func DefaultGroups() Groups {
	g, err := NewGroups(defaultMembers)
	if err != nil {
		panic(err)
	}
	return g
}

// LoadGroups reads a group -> components listing from a JSON or YAML file
// (chosen by extension: .yaml/.yml are YAML, anything else JSON).
//
//	{"Wind farm": ["WT", "Foundation"], "Transport": ["Pipeline"]}
func LoadGroups(path string) (Groups, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Groups{}, fmt.Errorf("read component groups: %w", err)
	}

	var members map[string][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &members)
	default:
		err = json.Unmarshal(raw, &members)
	}
	if err != nil {
		return Groups{}, fmt.Errorf("parse component groups %s: %w", path, err)
	}
	return NewGroups(members)
}
