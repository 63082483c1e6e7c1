// internal/colocation/colocation.go
//
// Test-only harness that colocates in-process solver stubs with a
// generated autopilot configuration. Integration tests use it to spin
// up a full competition without external processes.
package colocation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/matijamicunovic629/cowprotocol/internal/competition"
	"github.com/matijamicunovic629/cowprotocol/internal/settlement"
)

// RespondFunc produces a solver stub's answer to one request.
type RespondFunc func(*competition.Request) (*competition.Response, error)

// SolverEngine is one colocated solver stub.
type SolverEngine struct {
	Name             string
	Endpoint         string
	Account          string
	RelativeSlippage float64
	server           *httptest.Server
}

// Close shuts the stub down.
func (e *SolverEngine) Close() {
	if e.server != nil {
		e.server.Close()
	}
}

// StartSolver launches an in-process solver answering POST /solve.
// Requests are decoded with the same strict schema real solvers see.
func StartSolver(name, account string, respond RespondFunc) *SolverEngine {
	mux := http.NewServeMux()
	mux.HandleFunc("/solve", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		req, err := competition.DecodeRequest(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		resp, err := respond(req)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	server := httptest.NewServer(mux)
	return &SolverEngine{
		Name:             name,
		Endpoint:         server.URL,
		Account:          account,
		RelativeSlippage: 0.1,
		server:           server,
	}
}

// WriteSolversFile generates the solver registry for the engines and
// returns its path.
func WriteSolversFile(dir string, engines []*SolverEngine) (string, error) {
	type entry struct {
		Name             string  `yaml:"name"`
		Endpoint         string  `yaml:"endpoint"`
		Account          string  `yaml:"account"`
		RelativeSlippage float64 `yaml:"relative_slippage"`
	}
	file := struct {
		Solvers []entry `yaml:"solvers"`
	}{}
	for _, engine := range engines {
		file.Solvers = append(file.Solvers, entry{
			Name:             engine.Name,
			Endpoint:         engine.Endpoint,
			Account:          engine.Account,
			RelativeSlippage: engine.RelativeSlippage,
		})
	}

	data, err := yaml.Marshal(&file)
	if err != nil {
		return "", fmt.Errorf("marshal solvers file: %w", err)
	}
	path := filepath.Join(dir, "solvers.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write solvers file: %w", err)
	}
	return path, nil
}

// AutopilotConfig is the generated process configuration.
type AutopilotConfig struct {
	OrderbookURL            string                   `yaml:"orderbook_url"`
	SolversFile             string                   `yaml:"solvers_file"`
	RoundBudgetMs           int                      `yaml:"round_budget_ms"`
	SubmissionDeadlineMs    int                      `yaml:"submission_deadline_ms"`
	MaxAttempts             int                      `yaml:"max_attempts"`
	InitialComputeUnitPrice uint64                   `yaml:"initial_compute_unit_price"`
	EscalationFactor        float64                  `yaml:"escalation_factor"`
	SettlementProgram       string                   `yaml:"settlement_program"`
	SignerKey               string                   `yaml:"signer_key"`
	TrustedTokens           []string                 `yaml:"trusted_tokens"`
	Mempools                []settlement.RouteConfig `yaml:"mempools"`
	LogFile                 string                   `yaml:"log_file,omitempty"`
	DebugLogging            bool                     `yaml:"debug_logging"`
}

// WriteAutopilotConfig generates the autopilot configuration file and
// returns its path.
func WriteAutopilotConfig(dir string, cfg AutopilotConfig) (string, error) {
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", fmt.Errorf("marshal autopilot config: %w", err)
	}
	path := filepath.Join(dir, "autopilot.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write autopilot config: %w", err)
	}
	return path, nil
}
