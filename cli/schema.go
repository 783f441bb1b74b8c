package cli

import (
	"encoding/json"

	"github.com/urfave/cli/v2"

	"go.viam.com/mhe/config"
)

// SchemaAction prints the JSON schema of the config file.
func SchemaAction(c *cli.Context) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(config.Schema())
}
