package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed config.schema.json
var schemaFiles embed.FS

func loadSchemaFile(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

func init() {
	jsonschema.Loaders["embedFS"] = loadSchemaFile
}

// Validate checks r (a JSON document) against the embedded config schema.
func Validate(r io.Reader) error {
	s, err := jsonschema.Compile("embedFS://config.schema.json")
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("decoding config for validation: %w", err)
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
