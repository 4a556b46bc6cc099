// Package exam orchestrates the violation pipeline of exam rooms:
// debounce, sanction, incident recording and evidence capture.
package exam

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/proctor/core"
	"github.com/trezcool/proctor/core/debounce"
	"github.com/trezcool/proctor/core/detect"
	"github.com/trezcool/proctor/core/proctor"
	"github.com/trezcool/proctor/core/sanction"
)

type (
	// EvidenceQueue stores snapshots in the background. Enqueue must not block.
	EvidenceQueue interface {
		Enqueue(snap proctor.Snapshot, done func(ref string)) error
	}

	Deps struct {
		Conf      *core.Config
		Logger    core.Logger
		Rooms     RoomRepository
		Sessions  SessionRepository
		Incidents IncidentRepository
		Evidence  EvidenceQueue
		Archive   ArchiveRepository // optional
		Mailer    core.EmailService // optional; notifies instructors of blocked students
		Detector  detect.Classifier // optional; defaults to the gaze, posture and device detectors
		Now       func() time.Time  // optional; defaults to time.Now
	}

	Service struct {
		conf      *core.Config
		logger    core.Logger
		rooms     RoomRepository
		sessions  SessionRepository
		incidents IncidentRepository
		evidence  EvidenceQueue
		archive   ArchiveRepository
		mailer    core.EmailService

		debouncer *debounce.Debouncer
		engine    *sanction.Engine
		detector  detect.Classifier
		sampler   *detect.Pipeline
		nowFunc   func() time.Time
	}
)

func NewService(deps Deps) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "conf"),
		vala.IsNotNil(deps.Logger, "logger"),
		vala.IsNotNil(deps.Rooms, "rooms"),
		vala.IsNotNil(deps.Sessions, "sessions"),
		vala.IsNotNil(deps.Incidents, "incidents"),
		vala.IsNotNil(deps.Evidence, "evidence"),
	).CheckAndPanic()

	pc := deps.Conf.Proctor
	pipeline := detect.NewDefaultPipeline(pc)
	detector := deps.Detector
	if detector == nil {
		detector = pipeline
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		conf:      deps.Conf,
		logger:    deps.Logger,
		rooms:     deps.Rooms,
		sessions:  deps.Sessions,
		incidents: deps.Incidents,
		evidence:  deps.Evidence,
		archive:   deps.Archive,
		mailer:    deps.Mailer,
		debouncer: debounce.New(pc.DebounceWindow),
		engine:    sanction.NewEngine(deps.Sessions, pc.StrikeThreshold, deps.Logger),
		detector:  detector,
		sampler:   pipeline,
		nowFunc:   now,
	}
}

// Rooms

func (svc *Service) OpenRoom(nr proctor.NewRoom) (proctor.Room, error) {
	room := proctor.Room{
		ID:              nr.ID,
		Subject:         nr.Subject,
		InstructorID:    nr.InstructorID,
		InstructorEmail: nr.InstructorEmail,
		CreatedAt:       svc.nowFunc().UTC(),
	}
	return svc.rooms.CreateRoom(room)
}

func (svc *Service) GetRoom(id string) (proctor.Room, error) {
	return svc.rooms.GetRoom(id)
}

func (svc *Service) QueryRooms() ([]proctor.Room, error) {
	return svc.rooms.QueryRooms()
}

// Sessions

// EnterRoom creates the student's ACTIVE session. A student enters a room once.
func (svc *Service) EnterRoom(ns proctor.NewSession) (proctor.StudentSession, error) {
	if _, err := svc.rooms.GetRoom(ns.RoomID); err != nil {
		return proctor.StudentSession{}, err
	}

	now := svc.nowFunc().UTC()
	sess := proctor.StudentSession{
		StudentID:     ns.StudentID,
		DisplayName:   ns.StudentName,
		RoomID:        ns.RoomID,
		State:         proctor.StateActive,
		CameraStatus:  proctor.CameraOK,
		EnteredAt:     now,
		LastHeartbeat: now,
	}
	return svc.sessions.CreateSession(sess)
}

func (svc *Service) GetSession(key proctor.SessionKey) (proctor.StudentSession, error) {
	return svc.sessions.GetSession(key)
}

// Heartbeat refreshes the student's lastHeartbeat. It never creates a session.
func (svc *Service) Heartbeat(hb proctor.Heartbeat) error {
	err := svc.sessions.SetSessionField(hb.Key(), proctor.FieldLastHeartbeat, svc.nowFunc().UTC())
	if err != nil {
		if errors.Cause(err) == proctor.ErrSessionNotFound {
			svc.logger.Warn(fmt.Sprintf("heartbeat from unknown student %s", hb.Key()))
		}
		return err
	}
	return nil
}

// Finish closes the session of a student who submitted their answers.
func (svc *Service) Finish(key proctor.SessionKey) (proctor.StudentSession, error) {
	sess, err := svc.engine.Finish(key)
	if err == nil {
		svc.sampler.Reset(key.String())
	}
	return sess, err
}

// Violations

// ReportViolation handles a violation classified by the student's client
// and returns the decision for the student's session.
func (svc *Service) ReportViolation(vr proctor.ViolationReport) (proctor.Decision, error) {
	key := vr.Key()
	now := svc.nowFunc().UTC()

	// camera obstruction is informational only
	if err := svc.sessions.SetSessionField(key, proctor.FieldCameraStatus, vr.CameraStatus()); err != nil {
		return svc.lookupFault(key, err)
	}

	sig := detect.Signal{
		Category:   vr.Category,
		Weight:     vr.Category.Weight(),
		Severe:     vr.Category.Severe(),
		Confidence: 1,
	}
	return svc.raise(key, vr.StudentName, sig, svc.snapshot(vr.StudentID, vr.ImagePayload, now))
}

// ProcessFrame classifies a frame of the student's camera stream, if sampled,
// and raises every signal it yields. The decision reflects the last signal raised.
// The frame's image is only decoded by the evidence workers.
func (svc *Service) ProcessFrame(key proctor.SessionKey, frame detect.Frame) (proctor.Decision, error) {
	if err := frame.Validate(); err != nil {
		return proctor.DecisionAllowed, err
	}
	sess, err := svc.sessions.GetSession(key)
	if err != nil {
		return svc.lookupFault(key, err)
	}
	if !svc.sampler.Sample(key.String()) {
		return proctor.DecisionFor(sess.State), nil
	}

	if frame.CapturedAt.IsZero() {
		frame.CapturedAt = svc.nowFunc()
	}
	at := frame.CapturedAt.UTC()

	decision := proctor.DecisionFor(sess.State)
	for _, sig := range svc.detector.Classify(frame) {
		snap := svc.snapshot(key.StudentID, frame.ImagePayload, at)
		if decision, err = svc.raise(key, sess.DisplayName, sig, snap); err != nil {
			return decision, err
		}
	}
	return decision, nil
}

func (svc *Service) snapshot(studentID, payload string, at time.Time) proctor.Snapshot {
	return proctor.Snapshot{
		StudentID: studentID,
		Payload:   payload,
		MaxWidth:  svc.conf.Proctor.DownscaleWidth,
		TakenAt:   at,
	}
}

func (svc *Service) lookupFault(key proctor.SessionKey, err error) (proctor.Decision, error) {
	if errors.Cause(err) == proctor.ErrSessionNotFound {
		svc.logger.Warn(fmt.Sprintf("violation from unknown student %s", key))
		return proctor.DecisionAllowed, err
	}
	svc.logger.Error(fmt.Sprintf("reading session %s: %v", key, err), err)
	return proctor.DecisionAllowed, nil
}

// raise pushes one raw signal through the debouncer and the sanction engine.
// Only emitted signals that count against an ACTIVE session are recorded as incidents with evidence.
// The returned error is a shutdown error when evidence capture has stopped; the decision still holds.
func (svc *Service) raise(
	key proctor.SessionKey,
	name string,
	sig detect.Signal,
	snap proctor.Snapshot,
) (proctor.Decision, error) {
	at := snap.TakenAt
	verdict := svc.debouncer.Admit(key, sig.Category, sig.Severe, at)
	if !verdict.Forward {
		sess, err := svc.sessions.GetSession(key)
		if err != nil {
			return svc.lookupFault(key, err)
		}
		return proctor.DecisionFor(sess.State), nil
	}

	ev := proctor.ViolationEvent{
		StudentID:   key.StudentID,
		StudentName: name,
		RoomID:      key.RoomID,
		Category:    sig.Category,
		Weight:      sig.Weight,
		Severe:      sig.Severe,
		Timestamp:   at,
		EvidenceRef: proctor.EvidencePending,
	}
	res := svc.engine.Sanction(ev)

	var err error
	if verdict.Emitted() && !res.Ignored {
		err = svc.record(ev, snap)
	}
	if res.Blocked {
		svc.notifyBlocked(res.Session, ev)
	}
	return res.Decision, err
}

// record appends the incident row and schedules its evidence.
// The student row was already updated: the two writes are not atomic.
func (svc *Service) record(ev proctor.ViolationEvent, snap proctor.Snapshot) error {
	if snap.Empty() {
		ev.EvidenceRef = proctor.EvidenceUnavailable
	}
	incident, err := svc.incidents.CreateIncident(ev)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("recording incident of %s: %v", ev.Key(), err), err)
		return nil
	}
	if snap.Empty() {
		return nil
	}

	id := incident.ID
	err = svc.evidence.Enqueue(snap, func(ref string) { svc.resolveEvidence(id, ref) })
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("evidence of incident %s dropped: %v", id, err), err)
		svc.resolveEvidence(id, proctor.EvidenceUnavailable)
		if core.IsShutdown(err) {
			return errors.Wrapf(err, "evidence of incident %s", id)
		}
	}
	return nil
}

func (svc *Service) resolveEvidence(incidentID, ref string) {
	if err := svc.incidents.SetEvidenceRef(incidentID, ref); err != nil {
		// the room may have been purged meanwhile
		svc.logger.Warn(fmt.Sprintf("resolving evidence of incident %s: %v", incidentID, err), err)
	}
}

func (svc *Service) notifyBlocked(sess proctor.StudentSession, ev proctor.ViolationEvent) {
	svc.logger.Info(fmt.Sprintf("student %s blocked after %d strikes", sess.Key(), sess.StrikeCount), sess)

	if svc.mailer == nil {
		return
	}
	room, err := svc.rooms.GetRoom(sess.RoomID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("notifying block of %s: %v", sess.Key(), err), err)
		return
	}
	if room.InstructorEmail == "" {
		return
	}

	subject := fmt.Sprintf("%s blocked in %s", sess.DisplayName, room.ID)
	if room.Subject != "" {
		subject = fmt.Sprintf("%s blocked in %s (%s)", sess.DisplayName, room.ID, room.Subject)
	}
	svc.mailer.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: room.InstructorEmail}},
		Subject: subject,
		Body: fmt.Sprintf(
			"Student %s (%s) was blocked at %s.\nLast violation: %s.\nStrikes: %d - risk score: %.1f\n",
			sess.DisplayName, sess.StudentID, sess.ClosedAt.Format(time.RFC1123),
			ev.Category.Label(), sess.StrikeCount, sess.RiskScore,
		),
	})
}

// Dashboard & lifecycle

// Dashboard aggregates a room's sessions and incidents, newest first.
func (svc *Service) Dashboard(roomID string) (proctor.Dashboard, error) {
	if _, err := svc.rooms.GetRoom(roomID); err != nil {
		return proctor.Dashboard{}, err
	}
	sessions, err := svc.sessions.QuerySessions(roomID)
	if err != nil {
		return proctor.Dashboard{}, errors.Wrap(err, "querying sessions")
	}
	incidents, err := svc.incidents.QueryIncidents(roomID)
	if err != nil {
		return proctor.Dashboard{}, errors.Wrap(err, "querying incidents")
	}

	dash := proctor.Dashboard{
		RoomID:         roomID,
		TotalStudents:  len(sessions),
		TotalIncidents: len(incidents),
		Incidents:      make([]proctor.ViolationEvent, 0, len(incidents)),
		Sessions:       make([]proctor.StudentSession, 0, len(sessions)),
	}
	for i := len(sessions) - 1; i >= 0; i-- {
		sess := sessions[i]
		if sess.State == proctor.StateActive {
			dash.ActiveCount++
		}
		if sess.CameraStatus == proctor.CameraObstructed {
			dash.ObstructedCameraCount++
		}
		dash.Sessions = append(dash.Sessions, sess)
	}
	for i := len(incidents) - 1; i >= 0; i-- {
		dash.Incidents = append(dash.Incidents, incidents[i])
	}
	return dash, nil
}

// Finalize exports everything recorded for a room to the archive, if one is configured.
// The room stays open.
func (svc *Service) Finalize(ctx context.Context, roomID string) (proctor.Archive, error) {
	room, err := svc.rooms.GetRoom(roomID)
	if err != nil {
		return proctor.Archive{}, err
	}
	archive := proctor.Archive{Room: room}
	if archive.Sessions, err = svc.sessions.QuerySessions(roomID); err != nil {
		return proctor.Archive{}, errors.Wrap(err, "querying sessions")
	}
	if archive.Incidents, err = svc.incidents.QueryIncidents(roomID); err != nil {
		return proctor.Archive{}, errors.Wrap(err, "querying incidents")
	}

	if svc.archive != nil {
		if err = svc.archive.SaveArchive(ctx, archive); err != nil {
			return proctor.Archive{}, errors.Wrap(err, "saving archive")
		}
	}
	svc.logger.Info(fmt.Sprintf("finalized %s", archive))
	return archive, nil
}

// PurgeRoom finalizes a room then removes its rooms, sessions and incidents.
// Nothing is removed if the export fails.
func (svc *Service) PurgeRoom(ctx context.Context, roomID string) (proctor.Archive, error) {
	archive, err := svc.Finalize(ctx, roomID)
	if err != nil {
		return proctor.Archive{}, err
	}

	if _, err = svc.incidents.DeleteIncidents(roomID); err != nil {
		return archive, errors.Wrap(err, "deleting incidents")
	}
	sessions, err := svc.sessions.DeleteSessions(roomID)
	if err != nil {
		return archive, errors.Wrap(err, "deleting sessions")
	}
	if err = svc.rooms.DeleteRoom(roomID); err != nil {
		return archive, errors.Wrap(err, "deleting room")
	}

	svc.debouncer.Forget(roomID)
	for _, sess := range sessions {
		svc.sampler.Reset(sess.Key().String())
	}
	return archive, nil
}
