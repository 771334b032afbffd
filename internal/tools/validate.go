package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/flipagent/flipagent/internal/schema"
)

// inputValidator compiles descriptor schemas lazily and caches them by tool name.
type inputValidator struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
}

func newInputValidator() *inputValidator {
	return &inputValidator{compiled: make(map[string]*jsonschema.Schema)}
}

// Validate checks input against d's input schema.
func (v *inputValidator) Validate(d schema.ToolDescriptor, input map[string]any) error {
	sch, err := v.schemaFor(d)
	if err != nil {
		return err
	}

	// Round-trip so integer literals from Go callers look like decoded JSON.
	raw, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return sch.Validate(doc)
}

func (v *inputValidator) schemaFor(d schema.ToolDescriptor) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if sch, ok := v.compiled[d.Name]; ok {
		return sch, nil
	}
	url := "mem://tools/" + d.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(d.InputSchema)); err != nil {
		return nil, fmt.Errorf("load schema for %s: %w", d.Name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", d.Name, err)
	}
	v.compiled[d.Name] = sch
	return sch, nil
}
