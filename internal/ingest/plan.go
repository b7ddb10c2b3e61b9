package ingest

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/rshade/carbonledger/internal/scenario"
)

// ReadPlan parses a YAML reduction plan from r. Unknown keys are
// rejected so typos in plan files fail loudly instead of silently
// applying no reduction.
func ReadPlan(r io.Reader) (*scenario.Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var plan scenario.Plan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	return &plan, nil
}
