package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vault/internal/ir"
)

// Scenario defines a conformance test scenario: seed holdings, run a
// sequence of ledger steps, then assert on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Capacity overrides the default vault capacity for the run.
	Capacity *int `yaml:"capacity,omitempty"`

	// Holdings seeds the accounts steps move value between.
	Holdings []HoldingSeed `yaml:"holdings"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// HoldingSeed declares one holding.
type HoldingSeed struct {
	ID      string `yaml:"id"`
	Owner   string `yaml:"owner"`
	Balance uint64 `yaml:"balance,omitempty"`
}

// Step is one ledger operation.
type Step struct {
	// Op is initialize, deposit or withdraw.
	Op string `yaml:"op"`

	Actor  string `yaml:"actor"`
	Amount uint64 `yaml:"amount,omitempty"`

	// Vault names the target vault. Defaults to the last initialized one.
	Vault string `yaml:"vault,omitempty"`

	// From and To name holdings. The vault side defaults to the vault's
	// own holding.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Holding is the vault holding for initialize.
	Holding string `yaml:"holding,omitempty"`

	// Capacity overrides the capacity of the vault created by initialize.
	Capacity *int `yaml:"capacity,omitempty"`

	// FailTransfer makes the transfer service reject this step's request.
	FailTransfer bool `yaml:"fail_transfer,omitempty"`

	// Expect is the error code the step must fail with. Empty means the
	// step must succeed.
	Expect string `yaml:"expect,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "total": vault total equals Amount
	// - "balances": depositor balances equal Expect exactly
	// - "absent": Depositor has no entry
	// - "transfer_count": the transfer service saw Count requests
	// - "holding_balance": Holding's balance equals Amount
	Type string `yaml:"type"`

	// Vault names the vault (total, balances, absent). Defaults to the
	// last initialized vault.
	Vault string `yaml:"vault,omitempty"`

	Amount    uint64            `yaml:"amount,omitempty"`
	Expect    map[string]uint64 `yaml:"expect,omitempty"`
	Depositor string            `yaml:"depositor,omitempty"`
	Count     int               `yaml:"count,omitempty"`
	Holding   string            `yaml:"holding,omitempty"`
}

// Assertion type constants.
const (
	AssertTotal          = "total"
	AssertBalances       = "balances"
	AssertAbsent         = "absent"
	AssertTransferCount  = "transfer_count"
	AssertHoldingBalance = "holding_balance"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Capacity != nil && *s.Capacity < 0 {
		return fmt.Errorf("capacity must be >= 0")
	}

	seen := make(map[string]bool)
	for i, h := range s.Holdings {
		if h.ID == "" || h.Owner == "" {
			return fmt.Errorf("holdings[%d]: id and owner are required", i)
		}
		if seen[h.ID] {
			return fmt.Errorf("holdings[%d]: duplicate id %q", i, h.ID)
		}
		seen[h.ID] = true
	}

	for i, step := range s.Steps {
		if _, err := ir.ParseOperation(step.Op); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Actor == "" {
			return fmt.Errorf("steps[%d]: actor is required", i)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTotal, AssertTransferCount:
		case AssertBalances:
			if a.Expect == nil {
				return fmt.Errorf("assertions[%d]: balances requires expect (use {} for an empty vault)", i)
			}
		case AssertAbsent:
			if a.Depositor == "" {
				return fmt.Errorf("assertions[%d]: absent requires depositor", i)
			}
		case AssertHoldingBalance:
			if a.Holding == "" {
				return fmt.Errorf("assertions[%d]: holding_balance requires holding", i)
			}
		default:
			return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
		}
	}

	return nil
}
