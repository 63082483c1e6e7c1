// internal/solvers/registry.go
package solvers

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Solver describes one registered solver engine. The registry is loaded
// once at startup and is read-only while rounds are in flight.
type Solver struct {
	Name             string
	Endpoint         string
	Account          string
	RelativeSlippage float64
}

// Registry loads and parses solver definitions.
type Registry struct {
	logger *zap.Logger
}

// registryFile is the structure of the solvers YAML file.
type registryFile struct {
	Solvers []struct {
		Name             string  `yaml:"name"`
		Endpoint         string  `yaml:"endpoint"`
		Account          string  `yaml:"account"`
		RelativeSlippage float64 `yaml:"relative_slippage"`
	} `yaml:"solvers"`
}

// NewRegistry constructs a Registry with the given logger.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger.Named("solver_registry")}
}

func clamp(val, min, max, def float64) float64 {
	if val < min || val > max {
		return def
	}
	return val
}

// Load reads solver definitions from a YAML file. Invalid entries are
// skipped with a warning; at least one valid solver is required. The
// returned order is the registration order used for tie-breaking.
func (r *Registry) Load(path string) ([]Solver, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read solvers file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse solvers file: %w", err)
	}

	if len(file.Solvers) == 0 {
		return nil, fmt.Errorf("no solvers found in %s", cleanPath)
	}

	seen := make(map[string]bool, len(file.Solvers))
	solvers := make([]Solver, 0, len(file.Solvers))
	for _, entry := range file.Solvers {
		if entry.Name == "" || entry.Endpoint == "" {
			r.logger.Warn("Skipping solver with missing required fields",
				zap.String("name", entry.Name),
				zap.String("endpoint", entry.Endpoint))
			continue
		}
		if seen[entry.Name] {
			r.logger.Warn("Skipping duplicate solver", zap.String("name", entry.Name))
			continue
		}
		if err := validateEndpoint(entry.Endpoint); err != nil {
			r.logger.Warn("Skipping solver with invalid endpoint",
				zap.String("name", entry.Name),
				zap.String("endpoint", entry.Endpoint),
				zap.Error(err))
			continue
		}

		seen[entry.Name] = true
		solvers = append(solvers, Solver{
			Name:             entry.Name,
			Endpoint:         strings.TrimRight(entry.Endpoint, "/"),
			Account:          entry.Account,
			RelativeSlippage: clamp(entry.RelativeSlippage, 0, 1, 0.1),
		})
	}

	if len(solvers) == 0 {
		return nil, fmt.Errorf("no valid solvers loaded")
	}

	r.logger.Info("Loaded solvers", zap.Int("count", len(solvers)))
	return solvers, nil
}

func validateEndpoint(endpoint string) error {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, "http") {
		return fmt.Errorf("invalid URL protocol %q", parsed.Scheme)
	}
	return nil
}
