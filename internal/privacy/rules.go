package privacy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the YAML shape of a user rules file.
type rulesFile struct {
	Patterns []Pattern `yaml:"patterns"`
}

// LoadRules reads user patterns from a YAML file and merges them over
// the builtin set. A user pattern whose name matches a builtin replaces
// it; new names are appended after the builtins. A missing file yields
// the builtins unchanged.
func LoadRules(path string) ([]Pattern, error) {
	builtins := BuiltinPatterns()

	if path == "" {
		return builtins, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		if os.IsNotExist(err) {
			return builtins, nil
		}

		return nil, fmt.Errorf("read privacy rules: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse privacy rules: %w", err)
	}

	return MergeRules(builtins, file.Patterns), nil
}

// MergeRules overlays user patterns on base patterns by name.
func MergeRules(base, user []Pattern) []Pattern {
	byName := make(map[string]int, len(base))

	merged := make([]Pattern, len(base))
	copy(merged, base)

	for i, p := range merged {
		byName[p.Name] = i
	}

	for _, p := range user {
		if idx, ok := byName[p.Name]; ok {
			merged[idx] = p
			continue
		}

		byName[p.Name] = len(merged)
		merged = append(merged, p)
	}

	return merged
}
