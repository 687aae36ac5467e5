package guidance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #region policy-file
// policyFile is the on-disk shape. Sections left out keep their defaults; a matrix cell that
// is listed replaces the default cell for that mode and level.
type policyFile struct {
	Bucket               BucketConfig                     `yaml:"bucket"`
	SafeWindow           SafeWindowConfig                 `yaml:"safe_window"`
	Overrides            OverrideConfig                   `yaml:"overrides"`
	ModalityAvailability map[Modality]bool                `yaml:"modality_availability"`
	Matrix               map[string]map[string]PolicyCell `yaml:"matrix"`
}

// LoadPolicyConfig reads a YAML policy file layered over DefaultPolicyConfig.
func LoadPolicyConfig(path string) (PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PolicyConfig{}, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicyConfig(data)
}

// ParsePolicyConfig decodes a YAML policy document layered over DefaultPolicyConfig.
func ParsePolicyConfig(data []byte) (PolicyConfig, error) {
	cfg := DefaultPolicyConfig()
	pf := policyFile{
		Bucket:               cfg.Bucket,
		SafeWindow:           cfg.SafeWindow,
		Overrides:            cfg.Overrides,
		ModalityAvailability: cfg.ModalityAvailability,
	}
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return PolicyConfig{}, fmt.Errorf("parse policy: %w", err)
	}

	cfg.Bucket = pf.Bucket
	cfg.SafeWindow = pf.SafeWindow
	cfg.Overrides = pf.Overrides
	cfg.ModalityAvailability = pf.ModalityAvailability

	for modeName, cells := range pf.Matrix {
		mode := Mode(modeName)
		row, ok := cfg.Matrix[mode]
		if !ok {
			return PolicyConfig{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, modeName)
		}
		for lvlName, cell := range cells {
			lvl, err := ParseBackoff(lvlName)
			if err != nil {
				return PolicyConfig{}, err
			}
			if cell.ModalityWeights == nil {
				cell.ModalityWeights = ModalityWeights{}
			}
			row[lvl] = cell
		}
		cfg.Matrix[mode] = row
	}

	if err := cfg.Validate(); err != nil {
		return PolicyConfig{}, err
	}
	return cfg, nil
}

// #endregion policy-file
