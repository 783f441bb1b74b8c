package cli

import (
	"github.com/urfave/cli/v2"

	"go.viam.com/mhe/config"
	"go.viam.com/mhe/logging"
)

// newLogger builds the logger of a command. --debug wins over the configured level and --log-file
// over the configured file. The returned function flushes and closes any file output.
func newLogger(c *cli.Context, cfg config.Log) (logging.Logger, func() error, error) {
	level, err := logging.LevelFromString(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if c.Bool(generalFlagDebug) {
		level = logging.DEBUG
	}
	path := c.Path(generalFlagLogFile)
	if path == "" {
		path = cfg.File
	}
	if path != "" {
		logger, closer := logging.NewFileLogger("mhe", path, level)
		return logger, closer, nil
	}
	logger := logging.NewLogger("mhe")
	logger.SetLevel(level)
	return logger, logger.Sync, nil
}
