package config

import (
	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of the config file format.
func Schema() *jsonschema.Schema {
	return jsonschema.Reflect(&Config{})
}
