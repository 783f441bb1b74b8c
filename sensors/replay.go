package sensors

import (
	"github.com/pkg/errors"

	"go.viam.com/mhe/mhe"
	"go.viam.com/mhe/spatialmath"
)

// Step is the outcome of feeding one record to the estimator.
type Step struct {
	Index    int
	Record   Record
	Estimate spatialmath.Pose
}

// Replay feeds records to est in order, assembling each cycle with asm. onStep may be nil.
func Replay(est *mhe.Estimator, asm *Assembler, records []Record, onStep func(Step)) error {
	for i, rec := range records {
		z, vis := asm.Next(rec.Detections)
		if err := est.Update(z, vis, rec.Input(), rec.Dt); err != nil {
			return errors.Wrapf(err, "record %d", i)
		}
		if onStep != nil {
			onStep(Step{Index: i, Record: rec, Estimate: est.Pose()})
		}
	}
	return nil
}
