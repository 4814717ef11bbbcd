package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxRequestBytes = 1 << 20

const generationSchema = `{
	"type": "object",
	"required": ["main"],
	"properties": {
		"main": {"type": "string", "pattern": "\\S"},
		"selectedPurpose": {"type": ["string", "null"]},
		"selectedTarget": {"type": ["string", "null"]},
		"selectedKeys": {"type": ["string", "null"]},
		"selectedPlatforms": {"type": ["string", "null"]},
		"selectedIntegrations": {"type": ["string", "null"]},
		"selectedPerformance": {"type": ["string", "null"]},
		"selectedSecurity": {"type": ["string", "null"]},
		"selectedStorage": {"type": ["string", "null"]},
		"selectedEnvironment": {"type": ["string", "null"]},
		"selectedLanguage": {"type": ["string", "null"]},
		"userId": {"type": ["string", "null"]},
		"username": {"type": ["string", "null"]}
	}
}`

const renderSchema = `{
	"type": "object",
	"required": ["username", "title", "text"],
	"properties": {
		"username": {"type": "string", "pattern": "\\S"},
		"title": {"type": "string"},
		"text": {"type": "string"}
	}
}`

const reviewSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": false,
	"properties": {
		"rating": {"type": "integer", "minimum": 1, "maximum": 5},
		"annotations": {
			"type": "array",
			"items": {"type": "string", "pattern": "\\S"}
		}
	}
}`

type schemas struct {
	generation *jsonschema.Schema
	render     *jsonschema.Schema
	review     *jsonschema.Schema
}

func mustCompileSchemas() *schemas {
	return &schemas{
		generation: mustCompile("generation.json", generationSchema),
		render:     mustCompile("render.json", renderSchema),
		review:     mustCompile("review.json", reviewSchema),
	}
}

func mustCompile(name, source string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// decodeValid reads the request body, checks it against schema and decodes
// it into dst.
func decodeValid(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}
