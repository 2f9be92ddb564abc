package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// rawSample covers both recording schemas. Current-generation files carry
// flat rows with a sensorType discriminator; legacy files nest per-sensor
// axis objects inside each row.
type rawSample struct {
	Timestamp  *float64     `json:"timestamp"`
	SensorType string       `json:"sensorType"`
	X          *float64     `json:"x"`
	Y          *float64     `json:"y"`
	Z          *float64     `json:"z"`
	UserAccel  *axisReading `json:"userAcceleration"`
	Rotation   *axisReading `json:"rotationRate"`
}

type axisReading struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// Parse decodes a JSON array of motion samples in either schema and
// returns the uncleaned sample sequence in file order. Legacy rows fan
// out to one sample per nested sensor object present. A file with no
// content at all yields zero samples, which cleaning reports as an empty
// recording.
func Parse(r io.Reader) ([]Sample, error) {
	var rows []rawSample
	dec := json.NewDecoder(r)
	if err := dec.Decode(&rows); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding recording: %w", err)
	}

	var out []Sample
	for _, row := range rows {
		if row.Timestamp == nil {
			continue
		}
		ts := *row.Timestamp

		if row.SensorType != "" {
			out = append(out, Sample{
				Timestamp: ts,
				Kind:      Kind(row.SensorType),
				X:         deref(row.X),
				Y:         deref(row.Y),
				Z:         deref(row.Z),
			})
			continue
		}

		if row.UserAccel != nil {
			out = append(out, Sample{
				Timestamp: ts,
				Kind:      UserAcceleration,
				X:         deref(row.UserAccel.X),
				Y:         deref(row.UserAccel.Y),
				Z:         deref(row.UserAccel.Z),
			})
		}
		if row.Rotation != nil {
			out = append(out, Sample{
				Timestamp: ts,
				Kind:      RotationRate,
				X:         deref(row.Rotation.X),
				Y:         deref(row.Rotation.Y),
				Z:         deref(row.Rotation.Z),
			})
		}
	}
	return out, nil
}

// ParseFile opens, parses, and cleans one recording file. A parseable
// file with no usable samples yields an empty Recording, which callers
// treat as a missing source.
func ParseFile(path string) (Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, fmt.Errorf("opening recording %s: %w", path, err)
	}
	defer f.Close()

	samples, err := Parse(f)
	if err != nil {
		return Recording{}, fmt.Errorf("parsing recording %s: %w", path, err)
	}
	return Clean(samples)
}

// deref maps an absent reading to NaN so cleaning can drop the sample the
// same way a null axis value is dropped.
func deref(v *float64) float64 {
	if v == nil {
		return nan
	}
	return *v
}
