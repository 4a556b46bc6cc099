// Package detect turns camera frames into raw, weighted violation signals.
//
// Landmarks and object detections come from an inference runtime outside this package;
// detectors only apply geometric predicates to them. A missing model output means no signal.
package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/core/proctor"
)

// Defaults of the detector thresholds.
const (
	DefaultGazeIrisThreshold = 0.012
	DefaultPostureTolerance  = 0.08
	DefaultDeviceConfidence  = 0.55

	PhoneClass = "cell phone"
)

type (
	// Point is a landmark in coordinates normalized to the frame size.
	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	FaceLandmarks struct {
		Iris      Point `json:"iris"`
		EyeCorner Point `json:"eyeCorner"`
	}

	PoseLandmarks struct {
		LeftShoulder  Point `json:"leftShoulder"`
		RightShoulder Point `json:"rightShoulder"`
	}

	Detection struct {
		Class      string  `json:"class"`
		Confidence float64 `json:"confidence"`
	}

	// Frame is one camera frame of a student. ImagePayload is kept encoded: detectors never read it.
	Frame struct {
		Seq          int
		CapturedAt   time.Time
		ImagePayload string
		Face         *FaceLandmarks
		Pose         *PoseLandmarks
		Objects      []Detection
	}

	// Signal is one detector firing on one frame.
	Signal struct {
		Category   proctor.Category
		Weight     float64
		Severe     bool
		Confidence float64
	}

	// Classifier inspects a frame and reports zero or more signals.
	Classifier interface {
		Classify(frame Frame) []Signal
	}
)

var errInvalidFrame = errors.New("invalid frame")

// Validate checks the model outputs carried by frame.
func (f Frame) Validate() error {
	var flds []core.FieldError
	if f.Seq < 0 {
		flds = append(flds, core.FieldError{Field: "seq", Error: "must be 0 or greater"})
	}
	for i, obj := range f.Objects {
		if obj.Class == "" {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("objects[%d].class", i), Error: "this field is required"})
		}
		if obj.Confidence < 0 || obj.Confidence > 1 {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("objects[%d].confidence", i), Error: "must be between 0 and 1"})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(errInvalidFrame, flds...)
	}
	return nil
}

func newSignal(cat proctor.Category, confidence float64) Signal {
	return Signal{
		Category:   cat,
		Weight:     cat.Weight(),
		Severe:     cat.Severe(),
		Confidence: confidence,
	}
}

// GazeDetector fires when the iris sits closer to the eye corner than Threshold,
// i.e. the student looks sideways.
type GazeDetector struct {
	Threshold float64
}

func (d GazeDetector) Classify(frame Frame) []Signal {
	if frame.Face == nil {
		return nil
	}
	dx := math.Abs(frame.Face.Iris.X - frame.Face.EyeCorner.X)
	if dx >= d.Threshold {
		return nil
	}
	return []Signal{newSignal(proctor.CategoryGazeDeviation, 1-dx/d.Threshold)}
}

// PostureDetector fires when the shoulders are tilted by more than Tolerance.
type PostureDetector struct {
	Tolerance float64
}

func (d PostureDetector) Classify(frame Frame) []Signal {
	if frame.Pose == nil {
		return nil
	}
	dy := math.Abs(frame.Pose.LeftShoulder.Y - frame.Pose.RightShoulder.Y)
	if dy <= d.Tolerance {
		return nil
	}
	return []Signal{newSignal(proctor.CategoryPostureAsymmetry, math.Min(1, dy))}
}

// DeviceDetector fires on the first phone detection above MinConfidence.
type DeviceDetector struct {
	MinConfidence float64
}

func (d DeviceDetector) Classify(frame Frame) []Signal {
	for _, obj := range frame.Objects {
		if obj.Class == PhoneClass && obj.Confidence > d.MinConfidence {
			return []Signal{newSignal(proctor.CategoryDeviceDetected, obj.Confidence)}
		}
	}
	return nil
}
