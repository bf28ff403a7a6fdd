// Package schema validates configuration and request documents against
// JSON schemas.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate checks a decoded value against raw JSON schema bytes. The name
// identifies the schema in error messages.
func Validate(name string, doc []byte, value any) error {
	compiled, err := compile(name, doc)
	if err != nil {
		return err
	}
	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("schema %s: %w", name, err)
	}
	return nil
}

// ValidateJSON checks a raw JSON payload against a schema held as a decoded
// document, the form the embedded tool schemas are stored in.
func ValidateJSON(name string, doc map[string]any, payload []byte) error {
	if len(doc) == 0 {
		return fmt.Errorf("schema %s is empty", name)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode schema %s: %w", name, err)
	}
	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return Validate(name, raw, value)
}

func compile(name string, doc []byte) (*jsonschema.Schema, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("schema %s is empty", name)
	}
	if name == "" {
		name = "schema"
	}
	url := "mem://" + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("register schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return compiled, nil
}
