package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/golovatskygroup/mcp-atlas/pkg/mcp"
)

var schemaCache sync.Map // key -> *jsonschema.Schema

func schemaCacheKey(toolName string, schema json.RawMessage) string {
	sum := sha256.Sum256(schema)
	return toolName + ":" + hex.EncodeToString(sum[:])
}

func compileSchema(toolName string, schema json.RawMessage) (*jsonschema.Schema, error) {
	key := schemaCacheKey(toolName, schema)
	if v, ok := schemaCache.Load(key); ok {
		return v.(*jsonschema.Schema), nil
	}
	s, err := jsonschema.CompileString(toolName+".json", string(schema))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, s)
	return s, nil
}

func firstLeafValidationError(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if err == nil {
		return nil
	}
	if len(err.Causes) == 0 {
		return err
	}
	for _, c := range err.Causes {
		if leaf := firstLeafValidationError(c); leaf != nil {
			return leaf
		}
	}
	return err
}

// prepareArgs decodes the raw arguments, coerces stringly-typed scalars to
// the kinds the schema declares, checks required parameters, and validates
// the whole object against the schema. All of this happens before any
// backend call. The returned bytes are the coerced argument object, ready to
// decode into a handler input struct.
func prepareArgs(tool mcp.Tool, raw json.RawMessage) (json.RawMessage, error) {
	args := map[string]any{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %v", tool.Name, err)
		}
	}

	kinds, required := schemaShape(tool.InputSchema)
	coerceArgs(args, kinds)

	for _, name := range required {
		v, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("missing required argument: %s", name)
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("missing required argument: %s", name)
		}
	}

	if err := validateArgsAgainstSchema(tool.Name, tool.InputSchema, args); err != nil {
		return nil, err
	}

	b, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("invalid arguments for %s: %v", tool.Name, err)
	}
	return b, nil
}

// schemaShape pulls the declared property kinds and required list out of an
// inputSchema. Malformed schemas yield an empty shape; the compile step
// reports them properly.
func schemaShape(schema json.RawMessage) (map[string]string, []string) {
	var s struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schema, &s); err != nil {
		return nil, nil
	}
	kinds := make(map[string]string, len(s.Properties))
	for name, prop := range s.Properties {
		kinds[name] = prop.Type
	}
	return kinds, s.Required
}

// coerceArgs converts scalar values toward the kinds the schema declares, so
// clients that stringify numbers and booleans (or send numbers for string
// parameters) still validate. Parsed numbers stay float64, the same shape
// json.Unmarshal produces; values that do not parse are left as-is for the
// schema to reject.
func coerceArgs(args map[string]any, kinds map[string]string) {
	for name, v := range args {
		switch kinds[name] {
		case "integer", "number":
			if s, ok := v.(string); ok {
				if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
					args[name] = f
				}
			}
		case "boolean":
			if s, ok := v.(string); ok {
				switch strings.ToLower(strings.TrimSpace(s)) {
				case "true":
					args[name] = true
				case "false":
					args[name] = false
				}
			}
		case "string":
			switch t := v.(type) {
			case float64:
				args[name] = strconv.FormatFloat(t, 'f', -1, 64)
			case bool:
				args[name] = strconv.FormatBool(t)
			}
		}
	}
}

func validateArgsAgainstSchema(toolName string, schema json.RawMessage, args any) error {
	if len(schema) == 0 {
		return nil
	}
	s, err := compileSchema(toolName, schema)
	if err != nil {
		return fmt.Errorf("invalid tool inputSchema for %s: %w", toolName, err)
	}
	if err := s.Validate(args); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			leaf := firstLeafValidationError(ve)
			loc := leaf.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msg := leaf.Message
			if msg == "" {
				msg = leaf.Error()
			}
			return fmt.Errorf("invalid arguments for %s at %s: %s", toolName, loc, msg)
		}
		return fmt.Errorf("invalid arguments for %s: %v", toolName, err)
	}
	return nil
}
