// Package main is the mhe command itself.
package main

import (
	"os"

	"go.viam.com/mhe/cli"
	"go.viam.com/mhe/logging"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		logging.Global().Error(err)
		os.Exit(1)
	}
}
