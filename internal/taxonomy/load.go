package taxonomy

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/lead-refinery/internal/model"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

type file struct {
	Version    string                `yaml:"version"`
	JobLevels  []model.JobLevel      `yaml:"job_levels"`
	Functions  []model.FunctionTaxon `yaml:"functions"`
	Industries []model.Industry      `yaml:"industries"`
}

// Parse builds a Registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "taxonomy: parse")
	}
	return New(f.Version, f.JobLevels, f.Functions, f.Industries)
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Parse(defaultTaxonomy)
}

// Load reads a taxonomy file, falling back to the embedded default when
// path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}
	return Parse(data)
}
