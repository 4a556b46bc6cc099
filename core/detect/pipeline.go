package detect

import (
	"sync"

	"github.com/trezcool/proctor/core"
)

// DefaultSampleEvery trades accuracy for throughput.
const DefaultSampleEvery = 5

// Pipeline runs its detectors over every Nth frame of a stream.
// Detectors run independently; their signals are concatenated.
type Pipeline struct {
	detectors   []Classifier
	sampleEvery int

	mu     sync.Mutex
	counts map[string]int // frames seen per stream
}

var _ Classifier = (*Pipeline)(nil)

func NewPipeline(sampleEvery int, detectors ...Classifier) *Pipeline {
	if sampleEvery <= 0 {
		sampleEvery = 1
	}
	return &Pipeline{
		detectors:   detectors,
		sampleEvery: sampleEvery,
		counts:      make(map[string]int),
	}
}

// NewDefaultPipeline builds the gaze, posture and device detectors from conf.
func NewDefaultPipeline(conf core.ProctorConfig) *Pipeline {
	gaze := conf.GazeIrisThreshold
	if gaze <= 0 {
		gaze = DefaultGazeIrisThreshold
	}
	posture := conf.PostureTolerance
	if posture <= 0 {
		posture = DefaultPostureTolerance
	}
	device := conf.DeviceConfidence
	if device <= 0 {
		device = DefaultDeviceConfidence
	}
	return NewPipeline(
		conf.FrameSampleEvery,
		GazeDetector{Threshold: gaze},
		PostureDetector{Tolerance: posture},
		DeviceDetector{MinConfidence: device},
	)
}

// Sample reports whether the next frame of stream must be classified. Every call counts one frame.
func (p *Pipeline) Sample(stream string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.counts[stream]
	p.counts[stream] = n + 1
	return n%p.sampleEvery == 0
}

// Reset forgets the frame count of stream.
func (p *Pipeline) Reset(stream string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.counts, stream)
}

// Classify runs every detector on frame, without sampling.
func (p *Pipeline) Classify(frame Frame) []Signal {
	var signals []Signal
	for _, d := range p.detectors {
		signals = append(signals, d.Classify(frame)...)
	}
	return signals
}
