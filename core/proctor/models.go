package proctor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// errors
	ErrSessionNotFound = errors.New("student session not found")
	ErrSessionExists   = errors.New("student already entered this room")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomExists      = errors.New("a room with this id already exists")
)

// Session states. ACTIVE is the only non-terminal state.
type SessionState string

const (
	StateActive   SessionState = "ACTIVE"
	StateBlocked  SessionState = "BLOCKED"
	StateFinished SessionState = "FINISHED"
)

func (s SessionState) IsTerminal() bool { return s != StateActive }

type CameraStatus string

const (
	CameraOK         CameraStatus = "OK"
	CameraObstructed CameraStatus = "OBSTRUCTED"
)

func CameraStatusFrom(ok bool) CameraStatus {
	if ok {
		return CameraOK
	}
	return CameraObstructed
}

// Decision is the outcome returned to the caller reporting a violation.
type Decision string

const (
	DecisionAllowed Decision = "ALLOWED"
	DecisionBlocked Decision = "BLOCKED"
)

// DecisionFor maps a session state to the decision reported for it.
// A finished session has nothing left to block.
func DecisionFor(state SessionState) Decision {
	if state == StateBlocked {
		return DecisionBlocked
	}
	return DecisionAllowed
}

// Evidence references of incidents whose artifact is not (yet) on disk.
const (
	EvidencePending     = "pending"
	EvidenceUnavailable = "unavailable"
)

// Updatable row fields.
const (
	FieldCameraStatus  = "camera_status"
	FieldLastHeartbeat = "last_heartbeat"
	FieldDisplayName   = "display_name"
	FieldEvidenceRef   = "evidence_ref"
)

// SessionKey identifies a student within a room. Exactly one StudentSession exists per key.
type SessionKey struct {
	StudentID string `json:"studentId"`
	RoomID    string `json:"roomId"`
}

func (k SessionKey) String() string { return k.RoomID + "/" + k.StudentID }

type StudentSession struct {
	StudentID     string       `json:"studentId"`
	DisplayName   string       `json:"displayName"`
	RoomID        string       `json:"roomId"`
	State         SessionState `json:"state"`
	CameraStatus  CameraStatus `json:"cameraStatus"`
	StrikeCount   int          `json:"strikeCount"`
	RiskScore     float64      `json:"riskScore"`
	EnteredAt     time.Time    `json:"enteredAt"`     // UTC
	LastHeartbeat time.Time    `json:"lastHeartbeat"` // UTC
	ClosedAt      time.Time    `json:"closedAt"`      // UTC; set on BLOCKED or FINISHED
}

func (s StudentSession) Key() SessionKey {
	return SessionKey{StudentID: s.StudentID, RoomID: s.RoomID}
}

// ViolationEvent is an emitted, de-duplicated violation. Stored as an incident row; append-only.
type ViolationEvent struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	RoomID      string    `json:"roomId"`
	Category    Category  `json:"category"`
	Weight      float64   `json:"weight"`
	Severe      bool      `json:"severe"`
	Timestamp   time.Time `json:"timestamp"` // UTC
	EvidenceRef string    `json:"evidenceRef"`
}

func (ev ViolationEvent) Key() SessionKey {
	return SessionKey{StudentID: ev.StudentID, RoomID: ev.RoomID}
}

// Snapshot is the image evidence of a violation: the base64 payload (optionally a data URL)
// sent by the client. It is decoded off the decision path, by the evidence workers.
type Snapshot struct {
	StudentID string
	Payload   string
	MaxWidth  int // stored images wider than this are downscaled; 0 keeps the original size
	TakenAt   time.Time
}

func (s Snapshot) Empty() bool { return s.Payload == "" }

// Room is an exam namespace. Created by the room collaborator, read-only to the pipeline.
type Room struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject"`
	InstructorID    string    `json:"instructorId"`
	InstructorEmail string    `json:"instructorEmail"`
	CreatedAt       time.Time `json:"createdAt"` // UTC
}

// Dashboard is the per-room aggregate consumed by the instructor dashboard.
type Dashboard struct {
	RoomID                string           `json:"roomId"`
	TotalStudents         int              `json:"totalStudents"`
	ActiveCount           int              `json:"activeCount"`
	ObstructedCameraCount int              `json:"obstructedCameraCount"`
	TotalIncidents        int              `json:"totalIncidents"`
	Incidents             []ViolationEvent `json:"incidents"` // newest first
	Sessions              []StudentSession `json:"sessions"`  // newest first
}

// Archive is everything recorded for a room, handed to the archive on finalize.
type Archive struct {
	Room      Room             `json:"room"`
	Sessions  []StudentSession `json:"sessions"`
	Incidents []ViolationEvent `json:"incidents"`
}

func (a Archive) String() string {
	return fmt.Sprintf("room %s: %d sessions, %d incidents", a.Room.ID, len(a.Sessions), len(a.Incidents))
}
