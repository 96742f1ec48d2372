package data

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

type substitutionSet map[string]ldvalue.Value

func expandSubstitutions(originalData []byte) ([]SourceInfo, error) {
	var substs struct {
		Constants  substitutionSet   `json:"constants"`
		Parameters []json.RawMessage `json:"parameters"`
	}
	if err := ParseJSONOrYAML(originalData, &substs); err != nil {
		return nil, err
	}
	if len(substs.Constants) == 0 && len(substs.Parameters) == 0 {
		return []SourceInfo{{Data: originalData}}, nil
	}
	parameterSets, err := makeParameterPermutations(substs.Parameters)
	if err != nil {
		return nil, err
	}
	if len(parameterSets) == 0 {
		return []SourceInfo{{Data: replaceVariables(originalData, substs.Constants)}}, nil
	}
	ret := make([]SourceInfo, 0, len(parameterSets))
	for _, params := range parameterSets {
		// Constants are applied on both sides of the parameters so that each may refer to the other.
		transformed := replaceVariables(originalData, substs.Constants)
		transformed = replaceVariables(transformed, params)
		transformed = replaceVariables(transformed, substs.Constants)
		ret = append(ret, SourceInfo{Data: transformed, Params: params})
	}
	return ret, nil
}

func makeParameterPermutations(paramsData []json.RawMessage) ([]substitutionSet, error) {
	if len(paramsData) == 0 {
		return nil, nil
	}
	allData, err := json.Marshal(paramsData)
	if err != nil {
		return nil, err
	}
	switch ldvalue.Parse(paramsData[0]).Type() {
	case ldvalue.ObjectType:
		var list []substitutionSet
		if err := json.Unmarshal(allData, &list); err != nil {
			return nil, err
		}
		return list, nil
	case ldvalue.ArrayType:
		var lists [][]substitutionSet
		if err := json.Unmarshal(allData, &lists); err != nil {
			return nil, err
		}
		return crossProduct(lists)
	default:
		return nil, errors.New("parameters must be an array of objects or an array of arrays")
	}
}

// crossProduct merges one set from each list, for every combination. The first list varies
// fastest.
func crossProduct(lists [][]substitutionSet) ([]substitutionSet, error) {
	for _, l := range lists {
		if len(l) == 0 {
			return nil, errors.New("a parameter list must not be empty")
		}
	}
	indices := make([]int, len(lists))
	var result []substitutionSet
	for {
		merged := make(substitutionSet)
		for i, l := range lists {
			for k, v := range l[indices[i]] {
				merged[k] = v
			}
		}
		result = append(result, merged)

		pos := 0
		for ; pos < len(lists); pos++ {
			indices[pos]++
			if indices[pos] < len(lists[pos]) {
				break
			}
			indices[pos] = 0
		}
		if pos == len(lists) {
			return result, nil
		}
	}
}

func replaceVariables(originalData []byte, substs substitutionSet) []byte {
	str := string(originalData)
	str = strings.ReplaceAll(str, `\u003c`, "<")
	str = strings.ReplaceAll(str, `\u003e`, ">")
	for name, value := range substs {
		typed := value.JSONString()
		str = strings.ReplaceAll(str, `"<`+name+`>"`, typed)
		interpolated := typed
		if value.IsString() {
			interpolated = value.StringValue()
		}
		str = strings.ReplaceAll(str, "<"+name+">", interpolated)
	}
	return []byte(str)
}
