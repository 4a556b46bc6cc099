package proctor

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/proctor/core"
)

// ViolationReport is a classified violation sent by the student's client.
type ViolationReport struct {
	StudentID    string   `json:"studentId" validate:"required,ident"`
	StudentName  string   `json:"studentName"`
	RoomID       string   `json:"roomId" validate:"required,ident"`
	Category     Category `json:"category" validate:"required,category"`
	ImagePayload string   `json:"imagePayload"` // base64, optionally a data URL
	CameraOK     *bool    `json:"cameraOk"`     // nil means OK
}

func (vr *ViolationReport) Validate(validate *validator.Validate) error {
	vr.StudentID = core.CleanString(vr.StudentID)
	vr.StudentName = core.CleanString(vr.StudentName)
	vr.RoomID = core.CleanString(vr.RoomID)
	vr.Category = Category(core.CleanString(string(vr.Category), true /* lower */))
	return validate.Struct(vr)
}

func (vr *ViolationReport) Key() SessionKey {
	return SessionKey{StudentID: vr.StudentID, RoomID: vr.RoomID}
}

func (vr *ViolationReport) CameraStatus() CameraStatus {
	return CameraStatusFrom(vr.CameraOK == nil || *vr.CameraOK)
}

// Heartbeat is the periodic liveness signal of a student client.
type Heartbeat struct {
	StudentID string `json:"studentId" validate:"required,ident"`
	RoomID    string `json:"roomId" validate:"required,ident"`
}

func (hb *Heartbeat) Validate(validate *validator.Validate) error {
	hb.StudentID = core.CleanString(hb.StudentID)
	hb.RoomID = core.CleanString(hb.RoomID)
	return validate.Struct(hb)
}

func (hb *Heartbeat) Key() SessionKey {
	return SessionKey{StudentID: hb.StudentID, RoomID: hb.RoomID}
}

// NewSession contains information needed for a student to enter a room.
type NewSession struct {
	StudentID   string `json:"studentId" validate:"required,ident"`
	StudentName string `json:"studentName" validate:"required"`
	RoomID      string `json:"roomId" validate:"required,ident"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.StudentID = core.CleanString(ns.StudentID)
	ns.StudentName = core.CleanString(ns.StudentName)
	ns.RoomID = core.CleanString(ns.RoomID)
	return validate.Struct(ns)
}

// NewRoom contains information needed to open a room.
type NewRoom struct {
	ID              string `json:"id" validate:"required,ident"`
	Subject         string `json:"subject"`
	InstructorID    string `json:"instructorId" validate:"required"`
	InstructorEmail string `json:"instructorEmail" validate:"omitempty,email"`
}

func (nr *NewRoom) Validate(validate *validator.Validate) error {
	nr.ID = core.CleanString(nr.ID)
	nr.Subject = core.CleanString(nr.Subject)
	nr.InstructorID = core.CleanString(nr.InstructorID)
	nr.InstructorEmail = core.CleanString(nr.InstructorEmail, true /* lower */)
	return validate.Struct(nr)
}
