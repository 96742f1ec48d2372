package interop

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/pqinterop/tls-interop-harness/data"
)

// ScenarioDir is the directory, within the data files, that holds scenario files.
const ScenarioDir = "scenarios"

type scenarioFile struct {
	Name string `json:"name"`
	// KnownIssue applies to every scenario in the file that does not set its own.
	KnownIssue string     `json:"knownIssue"`
	Scenarios  []Scenario `json:"scenarios"`
}

// LoadScenarioSets reads every scenario file in dir. Each expansion of a parameterized file
// becomes its own set, named after the file's name and the parameter values.
func LoadScenarioSets(fsys fs.FS, dir string) ([]ScenarioSet, error) {
	sources, err := data.LoadAllDataFiles(fsys, dir)
	if err != nil {
		return nil, err
	}
	ret := make([]ScenarioSet, 0, len(sources))
	for _, source := range sources {
		set, err := parseScenarioFile(source)
		if err != nil {
			return nil, err
		}
		ret = append(ret, set)
	}
	return ret, nil
}

func parseScenarioFile(source data.SourceInfo) (ScenarioSet, error) {
	var file scenarioFile
	if err := source.ParseInto(&file); err != nil {
		return ScenarioSet{}, err
	}
	name := file.Name
	if name == "" {
		name = strings.TrimSuffix(source.BaseName, path.Ext(source.BaseName))
	}
	if params := source.ParamsString(); params != "" {
		name += " " + params
	}
	if len(file.Scenarios) == 0 {
		return ScenarioSet{}, fmt.Errorf("%s %s: no scenarios", source.BaseName, source.ParamsString())
	}
	seen := make(map[string]bool, len(file.Scenarios))
	for i, s := range file.Scenarios {
		if err := validateScenario(s); err != nil {
			return ScenarioSet{}, fmt.Errorf("%s %s: scenario %d: %w", source.BaseName, source.ParamsString(), i, err)
		}
		if seen[s.String()] {
			return ScenarioSet{}, fmt.Errorf("%s %s: duplicate scenario name %q", source.BaseName,
				source.ParamsString(), s.String())
		}
		seen[s.String()] = true
		if s.KnownIssue == "" {
			file.Scenarios[i].KnownIssue = file.KnownIssue
		}
	}
	return ScenarioSet{Name: name, Scenarios: file.Scenarios}, nil
}

func validateScenario(s Scenario) error {
	switch {
	case s.Client.Backend == "":
		return errors.New("client backend is required")
	case s.Server.Backend == "":
		return errors.New("server backend is required")
	case s.Expect.Outcome == "":
		return errors.New("expect is required")
	}
	return nil
}
