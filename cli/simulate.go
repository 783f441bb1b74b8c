package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/mhe/config"
	"go.viam.com/mhe/sensors"
	"go.viam.com/mhe/simulation"
)

// SimulateAction writes a synthetic log, and optionally a config that knows its markers.
func SimulateAction(c *cli.Context) error {
	scenario := simulation.DefaultScenario()
	scenario.Steps = c.Int(simulateFlagSteps)
	scenario.Seed = c.Uint64(simulateFlagSeed)

	records, err := simulation.Generate(scenario)
	if err != nil {
		return err
	}
	if err := writeFile(c.Path(simulateFlagOut), func(f *os.File) error {
		return sensors.WriteLog(f, records)
	}); err != nil {
		return err
	}

	if path := c.Path(simulateFlagConfigOut); path != "" {
		cfg := ScenarioConfig(scenario)
		if err := writeFile(path, func(f *os.File) error {
			return cfg.Write(f, config.FormatFromPath(path))
		}); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.App.Writer, "wrote %d records to %s\n", len(records), c.Path(simulateFlagOut))
	return nil
}

// ScenarioConfig returns a config with the scenario's start pose, noise levels and markers.
func ScenarioConfig(s simulation.Scenario) *config.Config {
	cfg := config.Default()
	cfg.SeedPose = s.Start
	cfg.NumLandmarks = len(s.Landmarks)
	if s.RangeStd > 0 {
		cfg.RangeStdDev = s.RangeStd
	}
	if s.BearingStd > 0 {
		cfg.BearingStdDev = s.BearingStd
	}
	for slot, lm := range s.Landmarks {
		cfg.Landmarks = append(cfg.Landmarks, config.Landmark{
			ID:   lm.ID,
			Slot: slot,
			X:    lm.Position.X,
			Y:    lm.Position.Y,
		})
	}
	return cfg
}

func writeFile(path string, write func(f *os.File) error) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))
	return write(f)
}
