package sensors

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"go.viam.com/mhe/kinematics"
	"go.viam.com/mhe/spatialmath"
)

// Record is one update cycle of a recorded or simulated run, stored one JSON object per line.
type Record struct {
	V          float64           `json:"v"`
	W          float64           `json:"w"`
	Dt         float64           `json:"dt"`
	Detections []Detection       `json:"detections,omitempty"`
	Truth      *spatialmath.Pose `json:"truth,omitempty"`
}

// Input returns the control input of the record.
func (r Record) Input() kinematics.Input {
	return kinematics.TwistToInput(r.V, r.W)
}

// ReadLog decodes every record in r.
func ReadLog(r io.Reader) ([]Record, error) {
	dec := json.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "decoding record %d", len(records))
		}
		records = append(records, rec)
	}
}

// WriteLog encodes records one per line.
func WriteLog(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return errors.Wrapf(err, "encoding record %d", i)
		}
	}
	return nil
}
