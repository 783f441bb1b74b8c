package config

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/a8m/envsubst"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// Point returns the landmark position.
func (lm Landmark) Point() r2.Point {
	return r2.Point{X: lm.X, Y: lm.Y}
}

// Format is the encoding of a config file.
type Format int

// Known formats.
const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath infers the format from the file extension. Anything but .yaml and .yml is read as
// JSON5, which covers plain JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Read reads a config file, expanding environment variables before parsing.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	cfg, err := FromReader(bytes.NewReader(buf), FormatFromPath(filePath))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", filePath)
	}
	return cfg, nil
}

// FromReader parses a config on top of Default and validates it.
func FromReader(r io.Reader, format Format) (*Config, error) {
	cfg := Default()
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "cannot parse yaml config")
		}
	default:
		if err := decodeJSON5(r, cfg); err != nil {
			return nil, errors.Wrap(err, "cannot parse json config")
		}
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeJSON5 accepts JSON5 (comments, trailing commas, unquoted keys) and then decodes the
// normalized document strictly, rejecting unknown fields.
func decodeJSON5(r io.Reader, cfg *Config) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(buf)) == 0 {
		return nil
	}
	var doc interface{}
	if err := json5.Unmarshal(buf, &doc); err != nil {
		return err
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(normalized))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Write encodes c in format.
func (c *Config) Write(w io.Writer, format Format) error {
	if format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
