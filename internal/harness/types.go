package harness

import "github.com/roach88/vault/internal/ir"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	StepID    string `json:"step_id,omitempty"`
	Vault     string `json:"vault"`
	Operation string `json:"op"`
	Actor     string `json:"actor"`
	Amount    uint64 `json:"amount"`
	Case      string `json:"case"`
	ErrorCode string `json:"error_code,omitempty"`

	// Total is the vault total after the step.
	Total uint64 `json:"total"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every step in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Vaults holds the final snapshot of every vault created by the run.
	Vaults map[string]ir.VaultSnapshot `json:"vaults,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Vaults: make(map[string]ir.VaultSnapshot),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
