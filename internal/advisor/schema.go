package advisor

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

const schemaBaseURL = "https://architect.schemas.local/advisor/"

// Endpoints of the advisor backend.
const (
	EndpointMatch    = "/api/match"
	EndpointPivot    = "/api/pivot"
	EndpointPostgrad = "/api/postgrad"
	EndpointChat     = "/api/chat"
)

var schemaFiles = map[string]string{
	EndpointMatch:    "match.schema.json",
	EndpointPivot:    "pivot.schema.json",
	EndpointPostgrad: "postgrad.schema.json",
	EndpointChat:     "chat.schema.json",
}

// Schemas holds the compiled response schema per endpoint.
type Schemas struct {
	byEndpoint map[string]*jsonschema.Schema
}

var (
	defaultSchemas     *Schemas
	defaultSchemasErr  error
	defaultSchemasOnce sync.Once
)

// DefaultSchemas compiles the embedded schemas once.
func DefaultSchemas() (*Schemas, error) {
	defaultSchemasOnce.Do(func() {
		defaultSchemas, defaultSchemasErr = compileSchemas()
	})
	return defaultSchemas, defaultSchemasErr
}

func compileSchemas() (*Schemas, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	out := &Schemas{byEndpoint: make(map[string]*jsonschema.Schema, len(schemaFiles))}
	for endpoint, file := range schemaFiles {
		raw, err := schemaFS.ReadFile("schemas/" + file)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", file, err)
		}
		url := schemaBaseURL + file
		if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("load schema %s: %w", file, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		out.byEndpoint[endpoint] = compiled
	}
	return out, nil
}

// Validate checks raw against the response schema of endpoint.
func (s *Schemas) Validate(endpoint string, raw []byte) error {
	schema, ok := s.byEndpoint[endpoint]
	if !ok {
		return fmt.Errorf("no response schema for %s", endpoint)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("response does not match schema: %w", err)
	}
	return nil
}
