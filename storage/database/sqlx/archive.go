package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/proctor/core/exam"
	"github.com/trezcool/proctor/core/proctor"
)

// psq builds Postgres statements.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type (
	roomRow struct {
		ID              string      `db:"id"`
		Subject         null.String `db:"subject"`
		InstructorID    string      `db:"instructor_id"`
		InstructorEmail null.String `db:"instructor_email"`
		CreatedAt       time.Time   `db:"created_at"`
		ArchivedAt      time.Time   `db:"archived_at"`
	}

	incidentRow struct {
		ID          string      `db:"id"`
		RoomID      string      `db:"room_id"`
		StudentID   string      `db:"student_id"`
		StudentName null.String `db:"student_name"`
		Category    string      `db:"category"`
		Weight      float64     `db:"weight"`
		Severe      bool        `db:"severe"`
		OccurredAt  time.Time   `db:"occurred_at"`
		EvidenceRef null.String `db:"evidence_ref"`
	}

	// ArchivedRoom is a finalized room as stored in the archive.
	ArchivedRoom struct {
		proctor.Room
		ArchivedAt time.Time `json:"archivedAt"`
	}
)

func (r incidentRow) event() proctor.ViolationEvent {
	return proctor.ViolationEvent{
		ID:          r.ID,
		StudentID:   r.StudentID,
		StudentName: r.StudentName.String,
		RoomID:      r.RoomID,
		Category:    proctor.Category(r.Category),
		Weight:      r.Weight,
		Severe:      r.Severe,
		Timestamp:   r.OccurredAt.UTC(),
		EvidenceRef: r.EvidenceRef.String,
	}
}

// insertBatchSize keeps multi-row inserts well below the 65535 bind parameters Postgres accepts.
const insertBatchSize = 1000

// ArchiveRepository stores finalized rooms in Postgres. Saving a room twice updates it.
type ArchiveRepository struct {
	db        *sqlx.DB
	batchSize int // rows per INSERT
	nowFunc   func() time.Time
}

var _ exam.ArchiveRepository = (*ArchiveRepository)(nil)

func NewArchiveRepository(db *sql.DB) *ArchiveRepository {
	return &ArchiveRepository{
		db:        sqlx.NewDb(db, "postgres"),
		batchSize: insertBatchSize,
		nowFunc:   time.Now,
	}
}

// chunks splits [0, n) into [from, to) ranges of at most size elements.
func chunks(n, size int) [][2]int {
	if size <= 0 {
		size = n
	}
	var out [][2]int
	for from := 0; from < n; from += size {
		to := from + size
		if to > n {
			to = n
		}
		out = append(out, [2]int{from, to})
	}
	return out
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t, !t.IsZero())
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func (repo *ArchiveRepository) SaveArchive(ctx context.Context, archive proctor.Archive) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	room := archive.Room
	roomQ := psq.Insert("archived_rooms").
		Columns("id", "subject", "instructor_id", "instructor_email", "created_at", "archived_at").
		Values(room.ID, nullString(room.Subject), room.InstructorID, nullString(room.InstructorEmail),
			room.CreatedAt, repo.nowFunc().UTC()).
		Suffix("ON CONFLICT (id) DO UPDATE SET archived_at = EXCLUDED.archived_at")
	if err = exec(ctx, tx, roomQ); err != nil {
		return errors.Wrap(err, "saving room")
	}

	for _, sessions := range chunks(len(archive.Sessions), repo.batchSize) {
		q := psq.Insert("archived_sessions").Columns(
			"room_id", "student_id", "display_name", "state", "camera_status",
			"strike_count", "risk_score", "entered_at", "last_heartbeat", "closed_at",
		)
		for _, s := range archive.Sessions[sessions[0]:sessions[1]] {
			q = q.Values(s.RoomID, s.StudentID, s.DisplayName, string(s.State), string(s.CameraStatus),
				s.StrikeCount, s.RiskScore, s.EnteredAt, s.LastHeartbeat, nullTime(s.ClosedAt))
		}
		q = q.Suffix(`ON CONFLICT (room_id, student_id) DO UPDATE SET
			state = EXCLUDED.state, camera_status = EXCLUDED.camera_status,
			strike_count = EXCLUDED.strike_count, risk_score = EXCLUDED.risk_score,
			last_heartbeat = EXCLUDED.last_heartbeat, closed_at = EXCLUDED.closed_at`)
		if err = exec(ctx, tx, q); err != nil {
			return errors.Wrap(err, "saving sessions")
		}
	}

	for _, incidents := range chunks(len(archive.Incidents), repo.batchSize) {
		q := psq.Insert("archived_incidents").Columns(
			"id", "room_id", "student_id", "student_name", "category",
			"weight", "severe", "occurred_at", "evidence_ref",
		)
		for _, ev := range archive.Incidents[incidents[0]:incidents[1]] {
			q = q.Values(ev.ID, ev.RoomID, ev.StudentID, nullString(ev.StudentName), string(ev.Category),
				ev.Weight, ev.Severe, ev.Timestamp, nullString(ev.EvidenceRef))
		}
		q = q.Suffix("ON CONFLICT (id) DO UPDATE SET evidence_ref = EXCLUDED.evidence_ref")
		if err = exec(ctx, tx, q); err != nil {
			return errors.Wrap(err, "saving incidents")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing archive")
	}
	return nil
}

func exec(ctx context.Context, tx *sqlx.Tx, b sq.InsertBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// ListRooms returns the archived rooms, most recently archived first.
func (repo *ArchiveRepository) ListRooms(ctx context.Context) ([]ArchivedRoom, error) {
	query, args, err := psq.
		Select("id", "subject", "instructor_id", "instructor_email", "created_at", "archived_at").
		From("archived_rooms").
		OrderBy("archived_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []roomRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting rooms")
	}

	rooms := make([]ArchivedRoom, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, ArchivedRoom{
			Room: proctor.Room{
				ID:              r.ID,
				Subject:         r.Subject.String,
				InstructorID:    r.InstructorID,
				InstructorEmail: r.InstructorEmail.String,
				CreatedAt:       r.CreatedAt.UTC(),
			},
			ArchivedAt: r.ArchivedAt.UTC(),
		})
	}
	return rooms, nil
}

// ListIncidents returns the archived incidents of a room, newest first. A limit <= 0 returns them all.
func (repo *ArchiveRepository) ListIncidents(ctx context.Context, roomID string, limit int) ([]proctor.ViolationEvent, error) {
	qb := psq.
		Select("id", "room_id", "student_id", "student_name", "category", "weight", "severe", "occurred_at", "evidence_ref").
		From("archived_incidents").
		Where(sq.Eq{"room_id": roomID}).
		OrderBy("occurred_at DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []incidentRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting incidents")
	}

	events := make([]proctor.ViolationEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.event())
	}
	return events, nil
}

// PruneRooms deletes the rooms archived before `before`, with their sessions and incidents.
func (repo *ArchiveRepository) PruneRooms(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := psq.Delete("archived_rooms").Where(sq.Lt{"archived_at": before}).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting rooms")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "counting deleted rooms")
}
