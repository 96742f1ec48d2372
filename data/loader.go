// Package data loads scenario definitions from JSON or YAML files.
//
// A file may define "constants" and "parameters". Each occurrence of <name> in the file is
// replaced by the value of that constant or parameter; a quoted "<name>" is replaced by the
// value's JSON form, so non-string values keep their type. "parameters" is either a list of
// objects, giving one expansion of the file per object, or a list of lists of objects, giving
// one expansion per combination that takes one object from each list.
package data

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/pqinterop/tls-interop-harness/framework/helpers"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"golang.org/x/exp/maps"
)

//go:embed data-files
var dataFilesRoot embed.FS

const dataBasePath = "data-files"

// Embedded returns the data files built into the binary, rooted at data/data-files.
func Embedded() fs.FS {
	sub, err := fs.Sub(dataFilesRoot, dataBasePath)
	if err != nil {
		panic(err) // the directory is embedded above, so this cannot fail
	}
	return sub
}

// SourceInfo is one expansion of a data file after constant and parameter substitution.
type SourceInfo struct {
	FilePath string
	BaseName string
	Params   map[string]ldvalue.Value
	Data     []byte
}

func (s SourceInfo) ParseInto(target interface{}) error {
	if err := ParseJSONOrYAML(s.Data, target); err != nil {
		return fmt.Errorf("error parsing %q %s: %w", s.BaseName, s.ParamsString(), err)
	}
	return nil
}

// ParamsString describes the parameter values of this expansion, in key order, for use in
// names and messages. It is empty if the file has no parameters.
func (s SourceInfo) ParamsString() string {
	if len(s.Params) == 0 {
		return ""
	}
	keys := helpers.Sorted(maps.Keys(s.Params))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := s.Params[k]
		parts = append(parts, k+"="+helpers.IfElse(v.IsString(), v.StringValue(), v.JSONString()))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// IsDataFile reports whether a file name has an extension the loader understands.
func IsDataFile(name string) bool {
	switch path.Ext(name) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// LoadDataFile reads one file from fsys and expands its substitutions.
func LoadDataFile(fsys fs.FS, filePath string) ([]SourceInfo, error) {
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", filePath, err)
	}
	sources, err := expandSubstitutions(data)
	if err != nil {
		return nil, fmt.Errorf("error reading %q: %w", filePath, err)
	}
	for i := range sources {
		sources[i].FilePath = filePath
		sources[i].BaseName = path.Base(filePath)
	}
	return sources, nil
}

// LoadAllDataFiles reads every data file directly inside dir, in name order.
func LoadAllDataFiles(fsys fs.FS, dir string) ([]SourceInfo, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var ret []SourceInfo
	for _, entry := range entries {
		if entry.IsDir() || !IsDataFile(entry.Name()) {
			continue
		}
		sources, err := LoadDataFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		ret = append(ret, sources...)
	}
	return ret, nil
}
