package attendance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jsonify/chess-club-2/internal/model"
)

// Domain errors. Storage failures pass through wrapped and stay
// distinguishable via errors.Is.
var (
	ErrNoSession    = errors.New("no session for date")
	ErrNotCheckedIn = errors.New("student not checked in")
)

// Store is the slice of the repository the reconciler needs. Lookups report
// a missing row as pgx.ErrNoRows, matching the repository's behavior.
type Store interface {
	FindSessionByDate(ctx context.Context, date string) (model.Session, error)
	UpsertSession(ctx context.Context, date, startTime, endTime string) (model.Session, error)
	FindRecord(ctx context.Context, studentID, sessionID string) (model.AttendanceRecord, error)
	UpsertRecordCheckIn(ctx context.Context, studentID, sessionID string, checkIn time.Time) (model.AttendanceRecord, error)
	UpdateRecordCheckIn(ctx context.Context, recordID string, checkIn *time.Time) (model.AttendanceRecord, error)
	UpdateRecordCheckOut(ctx context.Context, recordID string, checkOut *time.Time) (model.AttendanceRecord, error)
	ListActiveStudents(ctx context.Context) ([]model.Student, error)
	ListRecordsBySession(ctx context.Context, sessionID string) ([]model.AttendanceRecord, error)
}

type RecordState struct {
	StudentID  string
	SessionID  string
	CheckedIn  bool
	CheckedOut bool
}

type RosterEntry struct {
	Student    model.Student
	CheckedIn  bool
	CheckedOut bool
}

type Stats struct {
	TotalStudents  int
	PresentToday   int
	AttendanceRate int
}

type Reconciler struct {
	store     Store
	startTime string
	endTime   string
	now       func() time.Time
}

func NewReconciler(store Store, startTime, endTime string) *Reconciler {
	return &Reconciler{
		store:     store,
		startTime: startTime,
		endTime:   endTime,
		now:       time.Now,
	}
}

const dateLayout = "2006-01-02"

// TargetDate is the date attendance actions apply to: today when today is
// Wednesday, otherwise the upcoming Wednesday.
func TargetDate(now time.Time) time.Time {
	day := now.Weekday()
	if day == time.Wednesday {
		return now
	}
	ahead := (int(time.Wednesday) - int(day) + 7) % 7
	return now.AddDate(0, 0, ahead)
}

func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func ParseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

// EnsureSession returns the session row for a date, creating it with the
// configured default times on first use. Safe under concurrent callers.
func (r *Reconciler) EnsureSession(ctx context.Context, date string) (model.Session, error) {
	session, err := r.store.UpsertSession(ctx, date, r.startTime, r.endTime)
	if err != nil {
		return model.Session{}, fmt.Errorf("ensure session: %w", err)
	}
	return session, nil
}

// SetCheckIn reconciles a check-in toggle. desired=true sets check_in_time
// where missing; desired=false clears it and keeps the row. check_out_time
// is never touched.
func (r *Reconciler) SetCheckIn(ctx context.Context, studentID, date string, desired bool) (RecordState, error) {
	session, err := r.EnsureSession(ctx, date)
	if err != nil {
		return RecordState{}, err
	}

	if desired {
		record, err := r.store.UpsertRecordCheckIn(ctx, studentID, session.ID, r.now().UTC())
		if err != nil {
			return RecordState{}, fmt.Errorf("check in: %w", err)
		}
		return stateOf(record), nil
	}

	record, err := r.store.FindRecord(ctx, studentID, session.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Nothing to clear.
		return RecordState{StudentID: studentID, SessionID: session.ID}, nil
	}
	if err != nil {
		return RecordState{}, fmt.Errorf("record lookup: %w", err)
	}
	record, err = r.store.UpdateRecordCheckIn(ctx, record.ID, nil)
	if err != nil {
		return RecordState{}, fmt.Errorf("clear check in: %w", err)
	}
	return stateOf(record), nil
}

// SetCheckOut reconciles a check-out toggle. The session and record must
// already exist, and desired=true requires a prior check-in.
func (r *Reconciler) SetCheckOut(ctx context.Context, studentID, date string, desired bool) (RecordState, error) {
	session, err := r.store.FindSessionByDate(ctx, date)
	if errors.Is(err, pgx.ErrNoRows) {
		return RecordState{}, ErrNoSession
	}
	if err != nil {
		return RecordState{}, fmt.Errorf("session lookup: %w", err)
	}

	record, err := r.store.FindRecord(ctx, studentID, session.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return RecordState{}, ErrNotCheckedIn
	}
	if err != nil {
		return RecordState{}, fmt.Errorf("record lookup: %w", err)
	}

	if desired {
		if record.CheckInTime == nil {
			return RecordState{}, ErrNotCheckedIn
		}
		checkOut := r.now().UTC()
		record, err = r.store.UpdateRecordCheckOut(ctx, record.ID, &checkOut)
		if err != nil {
			return RecordState{}, fmt.Errorf("check out: %w", err)
		}
		return stateOf(record), nil
	}

	record, err = r.store.UpdateRecordCheckOut(ctx, record.ID, nil)
	if err != nil {
		return RecordState{}, fmt.Errorf("clear check out: %w", err)
	}
	return stateOf(record), nil
}

// Roster joins the active students with their records for the date's
// session. A missing session or record reads as not checked in.
func (r *Reconciler) Roster(ctx context.Context, date string) ([]RosterEntry, error) {
	students, err := r.store.ListActiveStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("students lookup: %w", err)
	}

	states := map[string]RecordState{}
	session, err := r.store.FindSessionByDate(ctx, date)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if err == nil {
		records, err := r.store.ListRecordsBySession(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("records lookup: %w", err)
		}
		for _, record := range records {
			states[record.StudentID] = stateOf(record)
		}
	}

	roster := make([]RosterEntry, 0, len(students))
	for _, student := range students {
		state := states[student.ID]
		roster = append(roster, RosterEntry{
			Student:    student,
			CheckedIn:  state.CheckedIn,
			CheckedOut: state.CheckedOut,
		})
	}
	return roster, nil
}

// ComputeStats derives the aggregate counters from a roster view. The rate
// is 0 for an empty roster.
func ComputeStats(roster []RosterEntry) Stats {
	stats := Stats{TotalStudents: len(roster)}
	for _, entry := range roster {
		if entry.CheckedIn {
			stats.PresentToday++
		}
	}
	if stats.TotalStudents > 0 {
		stats.AttendanceRate = int(math.Round(float64(stats.PresentToday) / float64(stats.TotalStudents) * 100))
	}
	return stats
}

func stateOf(record model.AttendanceRecord) RecordState {
	return RecordState{
		StudentID:  record.StudentID,
		SessionID:  record.SessionID,
		CheckedIn:  record.CheckInTime != nil,
		CheckedOut: record.CheckOutTime != nil,
	}
}
