package target

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// groupsDoc mirrors one YAML document in a groups.yaml inventory file.
type groupsDoc struct {
	Name                    string   `yaml:"name"`
	Targets                 []string `yaml:"targets"`
	MaxParallelism          int      `yaml:"maxParallelism"`
	MaxParallelismPerTarget int      `yaml:"maxParallelismPerTarget"`
}

// LoadGroupsYAML parses a groups.yaml inventory: a YAML sequence of target
// groups, each naming its targets by connection string. Credentials are not
// part of this format — a host that needs them attaches Credential values
// after loading.
func LoadGroupsYAML(path string) ([]Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("target: reading %s: %w", path, err)
	}

	var docs []groupsDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("target: parsing %s: %w", path, err)
	}

	groups := make([]Group, 0, len(docs))
	for _, d := range docs {
		targets := make([]Target, 0, len(d.Targets))
		for _, cs := range d.Targets {
			tgt, err := New(cs, nil)
			if err != nil {
				return nil, fmt.Errorf("target: group %q: %w", d.Name, err)
			}
			targets = append(targets, tgt)
		}
		g := Group{
			Name:                    d.Name,
			Targets:                 targets,
			MaxParallelism:          d.MaxParallelism,
			MaxParallelismPerTarget: d.MaxParallelismPerTarget,
		}
		if err := g.Validate(); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// targetsDoc mirrors a targets.toml inventory file: a flat list of
// connection strings sharing one set of parallelism limits, for hosts that
// don't need multiple named groups.
type targetsDoc struct {
	MaxParallelism          int      `toml:"max_parallelism"`
	MaxParallelismPerTarget int      `toml:"max_parallelism_per_target"`
	Targets                 []string `toml:"targets"`
}

// LoadTargetsTOML parses a targets.toml inventory into a single anonymous
// Group.
func LoadTargetsTOML(path string) (Group, error) {
	var doc targetsDoc
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return Group{}, fmt.Errorf("target: parsing %s: %w", path, err)
	}

	targets := make([]Target, 0, len(doc.Targets))
	for _, cs := range doc.Targets {
		tgt, err := New(cs, nil)
		if err != nil {
			return Group{}, fmt.Errorf("target: %w", err)
		}
		targets = append(targets, tgt)
	}

	g := Group{
		Targets:                 targets,
		MaxParallelism:          doc.MaxParallelism,
		MaxParallelismPerTarget: doc.MaxParallelismPerTarget,
	}
	return g, g.Validate()
}
