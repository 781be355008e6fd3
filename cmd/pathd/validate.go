package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// requestValidator checks request bodies against the published schemas
// before they reach the agent. A nil validator accepts everything.
type requestValidator struct {
	goal *jsonschema.Schema
}

func loadValidator(dir string) (*requestValidator, error) {
	if dir == "" {
		return nil, nil
	}
	p := filepath.Join(dir, "goal.schema.json")
	if _, err := os.Stat(p); err != nil {
		return nil, err
	}
	s, err := jsonschema.Compile(p)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", p, err)
	}
	return &requestValidator{goal: s}, nil
}

func (v *requestValidator) ValidateGoal(body []byte) error {
	if v == nil || v.goal == nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return err
	}
	return v.goal.Validate(doc)
}
