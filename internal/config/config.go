// Package config loads and validates tacview-ingest's run-time
// configuration: built-in defaults, an optional JSON file validated against
// an embedded schema, the TACVIEW_DATABASE_URL environment variable, and
// command-line flags, in that order of increasing precedence.
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
	"github.com/dcstacview/tacview-ingest/pkg/log"
)

// Keys holds the fully resolved configuration for one run of the ingester.
type Keys struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ClientName     string `json:"client-name"`
	ClientPassword string `json:"client-password"`

	BatchSize     int  `json:"batch-size"`
	MaxIterations int  `json:"max-iterations"`
	Overwrite     bool `json:"overwrite"`

	ParentMaxDistM float64 `json:"parent-max-dist-m"`
	ImpactMaxDistM float64 `json:"impact-max-dist-m"`

	WeaponTypesCSV string `json:"weapon-types-csv"`

	// DatabaseURL is never read from the JSON file: it comes only from
	// TACVIEW_DATABASE_URL, keeping credentials out of the config file.
	DatabaseURL string `json:"-"`
}

// Default returns the built-in defaults, before any JSON file, environment
// variable or flag is applied.
func Default() Keys {
	return Keys{
		Host:           "127.0.0.1",
		Port:           42674,
		ClientName:     "tacview-ingest",
		ClientPassword: "0",
		BatchSize:      500_000,
		MaxIterations:  0,
		Overwrite:      false,
		ParentMaxDistM: 200,
		ImpactMaxDistM: 0,
	}
}

// LoadFile merges a JSON config file at path into k, after validating it
// against the embedded schema. A missing file is not an error -- it means
// the defaults (and env/flags) apply unmodified.
func LoadFile(path string, k *Keys) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := Validate(bytes.NewReader(raw)); err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(k)
}

// LoadEnv reads TACVIEW_DATABASE_URL, the one setting never taken from the
// JSON config file.
func LoadEnv(k *Keys) {
	if v, ok := os.LookupEnv("TACVIEW_DATABASE_URL"); ok {
		k.DatabaseURL = v
	}
}

// ResolverConfig projects the distance-rejection thresholds for the
// relationship resolver.
func (k Keys) ResolverConfig() acmi.ResolverConfig {
	return acmi.ResolverConfig{
		ParentMaxDistM: k.ParentMaxDistM,
		ImpactMaxDistM: k.ImpactMaxDistM,
	}
}

// RequireDatabaseURL fails fast if DatabaseURL was never set; every
// operation this program performs needs it.
func (k Keys) RequireDatabaseURL() {
	if k.DatabaseURL == "" {
		log.Fatal("TACVIEW_DATABASE_URL must be set")
	}
}
