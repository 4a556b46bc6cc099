package echoapi

import (
	"time"

	"github.com/trezcool/proctor/core/detect"
)

// frameRequest is a camera frame with the landmarks and detections computed by the client's inference runtime.
type frameRequest struct {
	Seq          int                   `json:"seq"`
	CapturedAt   time.Time             `json:"capturedAt"`
	ImagePayload string                `json:"imagePayload"` // base64, optionally a data URL
	Face         *detect.FaceLandmarks `json:"face"`
	Pose         *detect.PoseLandmarks `json:"pose"`
	Objects      []detect.Detection    `json:"objects"`
}

// frame converts the request. The image stays encoded: an undecodable one only loses the evidence.
func (fr frameRequest) frame() detect.Frame {
	return detect.Frame{
		Seq:          fr.Seq,
		CapturedAt:   fr.CapturedAt,
		ImagePayload: fr.ImagePayload,
		Face:         fr.Face,
		Pose:         fr.Pose,
		Objects:      fr.Objects,
	}
}
