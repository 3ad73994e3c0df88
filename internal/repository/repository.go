package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jsonify/chess-club-2/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Users

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	var user model.User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.CreatedAt, user.UpdatedAt)
	return err
}

// Refresh sessions

func (s *Store) CreateRefreshSession(ctx context.Context, session model.RefreshSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_token_sessions (id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt, session.RevokedAt, session.UserAgent, session.IPAddress)
	return err
}

func (s *Store) GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	var session model.RefreshSession
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address
		FROM refresh_token_sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenHash, &session.CreatedAt, &session.ExpiresAt, &session.RevokedAt, &session.UserAgent, &session.IPAddress)
	return session, err
}

func (s *Store) RevokeRefreshSession(ctx context.Context, sessionID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE refresh_token_sessions SET revoked_at = $1 WHERE id = $2`, revokedAt, sessionID)
	return err
}

func (s *Store) RevokeRefreshSessionsByUser(ctx context.Context, userID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_token_sessions
		SET revoked_at = $1
		WHERE user_id = $2 AND revoked_at IS NULL
	`, revokedAt, userID)
	return err
}

// Students

const studentColumns = `id, first_name, last_name, grade, teacher, active, created_at, updated_at`

func scanStudent(row pgx.Row) (model.Student, error) {
	var student model.Student
	err := row.Scan(
		&student.ID,
		&student.FirstName,
		&student.LastName,
		&student.Grade,
		&student.Teacher,
		&student.Active,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
	return student, err
}

func (s *Store) ListActiveStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE active = true
		ORDER BY grade, last_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStudents(rows)
}

// ListStudents filters the directory. grade 0 means all grades; search
// matches first or last name, case-insensitive.
func (s *Store) ListStudents(ctx context.Context, grade int, search string) ([]model.Student, error) {
	query := `
		SELECT ` + studentColumns + `
		FROM students
		WHERE ($1 = 0 OR grade = $1)
		  AND ($2 = '' OR first_name ILIKE '%' || $2 || '%' OR last_name ILIKE '%' || $2 || '%')
		ORDER BY grade, last_name
	`
	rows, err := s.pool.Query(ctx, query, grade, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStudents(rows)
}

func collectStudents(rows pgx.Rows) ([]model.Student, error) {
	students := []model.Student{}
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

func (s *Store) GetStudent(ctx context.Context, studentID string) (model.Student, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+studentColumns+`
		FROM students
		WHERE id = $1
	`, studentID)
	return scanStudent(row)
}

func (s *Store) CreateStudent(ctx context.Context, student model.Student) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (id, first_name, last_name, grade, teacher, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, student.ID, student.FirstName, student.LastName, student.Grade, student.Teacher, student.Active, student.CreatedAt, student.UpdatedAt)
	return err
}

func (s *Store) UpdateStudent(ctx context.Context, student model.Student) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE students
		SET first_name = $1, last_name = $2, grade = $3, teacher = $4, active = $5, updated_at = $6
		WHERE id = $7
	`, student.FirstName, student.LastName, student.Grade, student.Teacher, student.Active, student.UpdatedAt, student.ID)
	return err
}

// Attendance sessions

func (s *Store) FindSessionByDate(ctx context.Context, date string) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		SELECT id, session_date::text, start_time, end_time, created_at
		FROM attendance_sessions
		WHERE session_date = $1
	`, date)
	err := row.Scan(&session.ID, &session.SessionDate, &session.StartTime, &session.EndTime, &session.CreatedAt)
	return session, err
}

// UpsertSession creates the session row for a date if it does not exist yet.
// Concurrent first-callers converge on the same row via the session_date
// uniqueness constraint.
func (s *Store) UpsertSession(ctx context.Context, date, startTime, endTime string) (model.Session, error) {
	var session model.Session
	row := s.pool.QueryRow(ctx, `
		INSERT INTO attendance_sessions (id, session_date, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_date) DO UPDATE SET session_date = EXCLUDED.session_date
		RETURNING id, session_date::text, start_time, end_time, created_at
	`, uuid.NewString(), date, startTime, endTime)
	err := row.Scan(&session.ID, &session.SessionDate, &session.StartTime, &session.EndTime, &session.CreatedAt)
	return session, err
}

// Attendance records

const recordColumns = `id, student_id, session_id, check_in_time, check_out_time, created_at, updated_at`

func scanRecord(row pgx.Row) (model.AttendanceRecord, error) {
	var record model.AttendanceRecord
	err := row.Scan(
		&record.ID,
		&record.StudentID,
		&record.SessionID,
		&record.CheckInTime,
		&record.CheckOutTime,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	return record, err
}

func (s *Store) FindRecord(ctx context.Context, studentID, sessionID string) (model.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE student_id = $1 AND session_id = $2
	`, studentID, sessionID)
	return scanRecord(row)
}

// UpsertRecordCheckIn creates the record for a (student, session) pair with
// the given check-in time, or fills check_in_time on the existing record when
// it is unset. An already set check_in_time is left alone.
func (s *Store) UpsertRecordCheckIn(ctx context.Context, studentID, sessionID string, checkIn time.Time) (model.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO attendance_records (id, student_id, session_id, check_in_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (student_id, session_id) DO UPDATE
		SET check_in_time = COALESCE(attendance_records.check_in_time, EXCLUDED.check_in_time),
		    updated_at = now()
		RETURNING `+recordColumns+`
	`, uuid.NewString(), studentID, sessionID, checkIn)
	return scanRecord(row)
}

func (s *Store) UpdateRecordCheckIn(ctx context.Context, recordID string, checkIn *time.Time) (model.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE attendance_records
		SET check_in_time = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+recordColumns+`
	`, checkIn, recordID)
	return scanRecord(row)
}

func (s *Store) UpdateRecordCheckOut(ctx context.Context, recordID string, checkOut *time.Time) (model.AttendanceRecord, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE attendance_records
		SET check_out_time = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+recordColumns+`
	`, checkOut, recordID)
	return scanRecord(row)
}

func (s *Store) DeleteRecord(ctx context.Context, recordID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM attendance_records WHERE id = $1`, recordID)
	return err
}

func (s *Store) ListRecordsBySession(ctx context.Context, sessionID string) ([]model.AttendanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []model.AttendanceRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CloseOpenRecords sets check_out_time on records still checked in for
// sessions whose end time has passed. Used by the auto-checkout job.
func (s *Store) CloseOpenRecords(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE attendance_records r
		SET check_out_time = $1, updated_at = $1
		FROM attendance_sessions s
		WHERE r.session_id = s.id
		  AND r.check_in_time IS NOT NULL
		  AND r.check_out_time IS NULL
		  AND (s.session_date + s.end_time::time) < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Matches

func (s *Store) CreateMatch(ctx context.Context, match model.Match) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO matches (id, player1_id, player2_id, result, match_date, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, match.ID, match.Player1ID, match.Player2ID, match.Result, match.MatchDate, match.Notes, match.CreatedAt)
	return err
}

type MatchSummary struct {
	model.Match
	Player1Name string
	Player2Name string
}

func (s *Store) ListRecentMatches(ctx context.Context, limit int32) ([]MatchSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.player1_id, m.player2_id, m.result, m.match_date::text, m.notes, m.created_at,
		       p1.first_name || ' ' || p1.last_name,
		       p2.first_name || ' ' || p2.last_name
		FROM matches m
		JOIN students p1 ON p1.id = m.player1_id
		JOIN students p2 ON p2.id = m.player2_id
		ORDER BY m.created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	matches := []MatchSummary{}
	for rows.Next() {
		var match MatchSummary
		if err := rows.Scan(
			&match.ID,
			&match.Player1ID,
			&match.Player2ID,
			&match.Result,
			&match.MatchDate,
			&match.Notes,
			&match.CreatedAt,
			&match.Player1Name,
			&match.Player2Name,
		); err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

type AchievementStats struct {
	FivePointClub  int64
	ChessChampions int64
	ActivePlayers  int64
	SocialPlayers  int64
}

// AchievementStats aggregates per-player match results: a win counts one
// point, a draw half a point. activeSince bounds the "active player" window.
func (s *Store) AchievementStats(ctx context.Context, activeSince time.Time) (AchievementStats, error) {
	var stats AchievementStats
	row := s.pool.QueryRow(ctx, `
		WITH plays AS (
			SELECT player1_id AS student_id,
			       CASE result WHEN 'player1' THEN 1.0 WHEN 'draw' THEN 0.5 ELSE 0 END AS points,
			       CASE result WHEN 'player1' THEN 1 ELSE 0 END AS wins,
			       created_at
			FROM matches
			UNION ALL
			SELECT player2_id,
			       CASE result WHEN 'player2' THEN 1.0 WHEN 'draw' THEN 0.5 ELSE 0 END,
			       CASE result WHEN 'player2' THEN 1 ELSE 0 END,
			       created_at
			FROM matches
		), totals AS (
			SELECT student_id,
			       SUM(points) AS points,
			       SUM(wins) AS wins,
			       COUNT(*) AS games,
			       MAX(created_at) AS last_played
			FROM plays
			GROUP BY student_id
		)
		SELECT COUNT(*) FILTER (WHERE points >= 5),
		       COUNT(*) FILTER (WHERE wins >= 10),
		       COUNT(*) FILTER (WHERE last_played >= $1),
		       COUNT(*) FILTER (WHERE games >= 10)
		FROM totals
	`, activeSince)
	err := row.Scan(&stats.FivePointClub, &stats.ChessChampions, &stats.ActivePlayers, &stats.SocialPlayers)
	return stats, err
}
