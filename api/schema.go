package api

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/servicehub/internal/market"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// maxBodyBytes caps request bodies read for validation.
const maxBodyBytes = 1 << 20

// schemas are compiled once; names are file names without extension.
var schemas = mustLoadSchemas()

func mustLoadSchemas() map[string]*jsonschema.Schema {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		panic(fmt.Sprintf("read schemas: %v", err))
	}
	out := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("read schema %s: %v", e.Name(), err))
		}
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(b, rs); err != nil {
			panic(fmt.Sprintf("parse schema %s: %v", e.Name(), err))
		}
		out[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = rs
	}
	return out
}

// decodeBody validates the request body against the named schema and
// decodes it into dst. Failures wrap market.ErrValidation.
func decodeBody(r *http.Request, schema string, dst any) error {
	rs, ok := schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if !json.Valid(body) {
		return fmt.Errorf("invalid json: %w", market.ErrValidation)
	}

	keyErrs, err := rs.ValidateBytes(r.Context(), body)
	if err != nil {
		return fmt.Errorf("validate body: %v: %w", err, market.ErrValidation)
	}
	if len(keyErrs) > 0 {
		msgs := make([]string, 0, len(keyErrs))
		for _, ke := range keyErrs {
			msgs = append(msgs, fmt.Sprintf("%s: %s", ke.PropertyPath, ke.Message))
		}
		return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), market.ErrValidation)
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, market.ErrValidation)
	}
	return nil
}
