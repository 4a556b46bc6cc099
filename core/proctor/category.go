package proctor

// Category is the kind of suspicious behaviour a violation reports.
type Category string

const (
	CategoryGazeDeviation    Category = "gaze_deviation"
	CategoryPostureAsymmetry Category = "posture_asymmetry"
	CategoryDeviceDetected   Category = "device_detected"
)

type categoryInfo struct {
	label  string
	weight float64
	severe bool
}

var (
	categories = map[Category]categoryInfo{
		CategoryGazeDeviation:    {label: "Gaze deviation", weight: 0.3},
		CategoryPostureAsymmetry: {label: "Posture asymmetry", weight: 0.3},
		CategoryDeviceDetected:   {label: "Device detected", weight: 1.5, severe: true},
	}

	Categories = []Category{CategoryGazeDeviation, CategoryPostureAsymmetry, CategoryDeviceDetected}
)

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Weight is the default risk weight of the category; 0 for unknown categories.
func (c Category) Weight() float64 { return categories[c].weight }

// Severe categories block the student on first occurrence.
func (c Category) Severe() bool { return categories[c].severe }

func (c Category) Label() string {
	if info, ok := categories[c]; ok {
		return info.label
	}
	return string(c)
}
