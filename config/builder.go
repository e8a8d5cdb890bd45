package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"text/template"

	"github.com/jpalmerr/gnos"
)

// BuildOptions converts parsed configuration into [gnos.Option] values,
// including the modelers from [BuildModelers].
func BuildOptions(cfg *Config, logger *slog.Logger) ([]gnos.Option, error) {
	modelers, err := BuildModelers(cfg)
	if err != nil {
		return nil, err
	}

	opts := []gnos.Option{
		gnos.WithModelers(modelers...),
		gnos.WithTitle(cfg.Title),
		gnos.WithPort(cfg.Port),
		gnos.WithPollingInterval(cfg.PollInterval.Duration()),
		gnos.WithRefreshInterval(cfg.RefreshInterval.Duration()),
	}
	if cfg.SampleCapacity != nil {
		opts = append(opts, gnos.WithSampleCapacity(*cfg.SampleCapacity))
	}
	if cfg.MaxConcurrency > 0 {
		opts = append(opts, gnos.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if cfg.SeedFile != "" {
		opts = append(opts, gnos.WithSeedFile(cfg.SeedFile))
	}
	if logger != nil {
		opts = append(opts, gnos.WithLogger(logger))
	}
	return opts, nil
}

// BuildModelers converts the configured modelers and expands the grids.
func BuildModelers(cfg *Config) ([]gnos.Modeler, error) {
	var modelers []gnos.Modeler

	for _, mc := range cfg.Modelers {
		m, err := buildModeler(mc)
		if err != nil {
			return nil, err
		}
		modelers = append(modelers, m)
	}

	for _, gc := range cfg.ModelerGrids {
		gridModelers, err := buildGridModelers(gc)
		if err != nil {
			return nil, err
		}
		modelers = append(modelers, gridModelers...)
	}

	return modelers, nil
}

func buildModeler(mc ModelerConfig) (gnos.Modeler, error) {
	var opts []gnos.ModelerOption

	if mc.Timeout != 0 {
		opts = append(opts, gnos.WithTimeout(mc.Timeout.Duration()))
	}
	if len(mc.Headers) > 0 {
		opts = append(opts, gnos.WithHeaders(mapToKeyValuePairs(mc.Headers)...))
	}
	if mc.Interval != 0 {
		opts = append(opts, gnos.WithInterval(mc.Interval.Duration()))
	}

	return gnos.NewModeler(mc.Name, mc.URL, opts...)
}

// mapToKeyValuePairs converts a map to key-value pairs sorted by key.
func mapToKeyValuePairs(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}

// buildGridModelers expands a GridConfig into one modeler per combination.
func buildGridModelers(gc GridConfig) ([]gnos.Modeler, error) {
	// missingkey=error fails fast on a template variable with no dimension
	tmpl, err := template.New("url").Option("missingkey=error").Parse(gc.URLTemplate)
	if err != nil {
		return nil, err
	}

	var modelers []gnos.Modeler
	for _, combo := range cartesianProduct(gc.Dimensions) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, combo); err != nil {
			return nil, fmt.Errorf("grid (%s) with dimensions %v: template execution failed: %w", gc.Name, combo, err)
		}

		m, err := buildModeler(ModelerConfig{
			Name:     buildGridName(gc.Name, combo),
			URL:      buf.String(),
			Timeout:  gc.Timeout,
			Headers:  gc.Headers,
			Interval: gc.Interval,
		})
		if err != nil {
			return nil, err
		}
		modelers = append(modelers, m)
	}

	return modelers, nil
}

// buildGridName joins the base name with the combination values, ordered by
// dimension name.
func buildGridName(baseName string, combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	name := baseName
	for _, k := range keys {
		name += " " + combo[k]
	}
	return name
}

// cartesianProduct generates all combinations of dimension values, ordered
// by dimension name.
func cartesianProduct(dimensions map[string][]string) []map[string]string {
	if len(dimensions) == 0 {
		return nil
	}

	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []map[string]string{{}}
	for _, key := range keys {
		var next []map[string]string
		for _, combo := range result {
			for _, val := range dimensions[key] {
				newCombo := make(map[string]string, len(combo)+1)
				for k, v := range combo {
					newCombo[k] = v
				}
				newCombo[key] = val
				next = append(next, newCombo)
			}
		}
		result = next
	}

	return result
}
