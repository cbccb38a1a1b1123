package command

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator checks invocation options against the JSON Schema derived from
// a definition's parameter list. The platform validates options before
// delivery; this guards against drift between the published command set and
// the running registry.
type Validator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema // keyed by schema JSON content
}

// NewValidator creates a new option validator.
func NewValidator() *Validator {
	return &Validator{
		cache: make(map[string]*jsonschema.Schema),
	}
}

// Schema returns the JSON Schema document describing def's options.
func Schema(def *Definition) map[string]any {
	props := make(map[string]any, len(def.Params))
	required := make([]any, 0, len(def.Params))

	for _, p := range def.Params {
		prop := map[string]any{}
		switch p.Type {
		case ParamInteger:
			prop["type"] = "integer"
			if p.Min != nil {
				prop["minimum"] = *p.Min
			}
			if p.Max != nil {
				prop["maximum"] = *p.Max
			}
		case ParamBoolean:
			prop["type"] = "boolean"
		case ParamUser:
			prop["type"] = "string"
			prop["pattern"] = "^[0-9]+$"
		default:
			prop["type"] = "string"
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

// Validate checks options against def's schema.
func (v *Validator) Validate(def *Definition, options map[string]any) error {
	compiled, err := v.compile(Schema(def))
	if err != nil {
		return fmt.Errorf("command: compile schema for %q: %w", def.Name, err)
	}

	if err := compiled.Validate(normalize(options)); err != nil {
		return fmt.Errorf("command: invalid options for %q: %w", def.Name, err)
	}
	return nil
}

// compile returns a compiled schema, using the cache for previously-seen schemas.
func (v *Validator) compile(schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	key := string(raw)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	var doc any
	if unmarshalErr := json.Unmarshal(raw, &doc); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", unmarshalErr)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	url := "warden://schema/" + strconv.Itoa(len(v.cache))

	c := jsonschema.NewCompiler()
	if addErr := c.AddResource(url, doc); addErr != nil {
		return nil, fmt.Errorf("add schema resource: %w", addErr)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// normalize converts option values into the JSON value model the schema
// validator expects.
func normalize(options map[string]any) map[string]any {
	out := make(map[string]any, len(options))
	for k, val := range options {
		switch n := val.(type) {
		case int:
			out[k] = json.Number(strconv.Itoa(n))
		case int64:
			out[k] = json.Number(strconv.FormatInt(n, 10))
		case float64:
			out[k] = json.Number(strconv.FormatFloat(n, 'f', -1, 64))
		default:
			out[k] = val
		}
	}
	return out
}
