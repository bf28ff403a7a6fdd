package tools

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/docserve/docserve/core/infra/schema"
)

// ErrUnknownTool marks a request for a tool with no registered schema.
var ErrUnknownTool = errors.New("unknown tool")

//go:embed schema/tools.json
var toolSchemasRaw []byte

var (
	toolSchemasOnce sync.Once
	toolSchemas     map[string]map[string]any
	toolSchemasErr  error
)

func loadToolSchemas() (map[string]map[string]any, error) {
	toolSchemasOnce.Do(func() {
		toolSchemasErr = json.Unmarshal(toolSchemasRaw, &toolSchemas)
	})
	return toolSchemas, toolSchemasErr
}

// ToolNames returns every tool with a registered request schema.
func ToolNames() []string {
	schemas, err := loadToolSchemas()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	return names
}

// ValidateRequest checks a raw tool request body against the tool's
// embedded JSON schema. Unknown tool names are errors.
func ValidateRequest(tool string, payload []byte) error {
	schemas, err := loadToolSchemas()
	if err != nil {
		return fmt.Errorf("load tool schemas: %w", err)
	}
	sch, ok := schemas[tool]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownTool, tool)
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	return schema.ValidateJSON(tool, sch, payload)
}
