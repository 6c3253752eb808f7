package weights

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// overrideFile is the YAML shape for per-plan weight overrides:
//
//	plans:
//	  seo:
//	    keyword_avg_position: 35
//	    visitors: 15
//	    ...
type overrideFile struct {
	Plans map[string]map[string]float64 `yaml:"plans"`
}

// Load builds a Table from the built-in defaults overlaid with the YAML file
// at path. An empty path returns the defaults. Overridden plans must cover
// exactly the known metrics and sum to 100.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse weights file: %w", err)
	}

	plans := make(map[PlanType]map[string]float64, len(defaultTables))
	for plan, table := range defaultTables {
		copied := make(map[string]float64, len(table))
		for metric, weight := range table {
			copied[metric] = weight
		}
		plans[plan] = copied
	}

	for rawPlan, override := range file.Plans {
		plan := Parse(rawPlan)
		if err := validateOverride(rawPlan, override); err != nil {
			return nil, err
		}
		table := make(map[string]float64, len(override))
		for metric, weight := range override {
			table[metric] = weight
		}
		plans[plan] = table
	}

	return &Table{plans: plans}, nil
}

func validateOverride(plan string, table map[string]float64) error {
	known := map[string]bool{
		MetricKeywordPosition: true,
		MetricVisitors:        true,
		MetricLeads:           true,
		MetricAIVisibility:    true,
		MetricConversions:     true,
		MetricAlerts:          true,
	}

	var total float64
	for metric, weight := range table {
		if !known[metric] {
			return fmt.Errorf("weights file: plan %q has unknown metric %q", plan, metric)
		}
		if weight < 0 {
			return fmt.Errorf("weights file: plan %q has negative weight for %q", plan, metric)
		}
		total += weight
		delete(known, metric)
	}

	if len(known) > 0 {
		return fmt.Errorf("weights file: plan %q is missing %d metric(s)", plan, len(known))
	}
	if math.Abs(total-100) > 0.01 {
		return fmt.Errorf("weights file: plan %q weights sum to %.2f, expected 100", plan, total)
	}
	return nil
}
