package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoSysConfig is returned for a data file directly under the input root,
// which has no sysconfig directory above it.
var ErrNoSysConfig = errors.New("file is not inside a sysconfig directory")

// SourceFile is one discovered data file.
type SourceFile struct {
	// Path is the full path, used for reading and in diagnostics.
	Path string
	// Rel is Path relative to the input root, slash-separated.
	Rel string
	// SysConfig is the first segment of Rel.
	SysConfig string
}

// Discover walks root recursively and returns every *.csv file in stable
// (lexical, by relative path) order.
func Discover(root string) ([]SourceFile, error) {
	var out []SourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".csv") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		seg, _, nested := strings.Cut(rel, "/")
		if !nested {
			return fmt.Errorf("%s: %w", path, ErrNoSysConfig)
		}
		out = append(out, SourceFile{Path: path, Rel: rel, SysConfig: seg})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rel < out[j].Rel })
	return out, nil
}
