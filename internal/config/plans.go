package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gestly/gestly/internal/app/domain/billing"
)

type plansFile struct {
	Plans []billing.Plan `yaml:"plans"`
}

// LoadPlans reads the plan catalog. An empty path yields the defaults.
func LoadPlans(path string) (billing.Catalog, error) {
	if path == "" {
		return billing.DefaultPlans(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}

	var file plansFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plans file: %w", err)
	}
	if len(file.Plans) == 0 {
		return nil, fmt.Errorf("plans file %s defines no plans", path)
	}

	seen := make(map[string]bool, len(file.Plans))
	for i, p := range file.Plans {
		if p.Name == "" {
			return nil, fmt.Errorf("plan %d: name is required", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("plan %s: defined twice", p.Name)
		}
		seen[p.Name] = true
	}
	return billing.Catalog(file.Plans), nil
}
