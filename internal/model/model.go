package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

type Student struct {
	ID        string
	FirstName string
	LastName  string
	Grade     int
	Teacher   string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session is one dated occurrence of the club meeting. At most one row
// exists per session_date.
type Session struct {
	ID          string
	SessionDate string
	StartTime   string
	EndTime     string
	CreatedAt   time.Time
}

// AttendanceRecord is one student's presence within one session. At most
// one row exists per (student, session) pair.
type AttendanceRecord struct {
	ID           string
	StudentID    string
	SessionID    string
	CheckInTime  *time.Time
	CheckOutTime *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Match struct {
	ID        string
	Player1ID string
	Player2ID string
	Result    string
	MatchDate string
	Notes     *string
	CreatedAt time.Time
}
