package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/jsonify/chess-club-2/internal/attendance"
	"github.com/jsonify/chess-club-2/internal/auth"
	"github.com/jsonify/chess-club-2/internal/config"
	"github.com/jsonify/chess-club-2/internal/crypto"
	"github.com/jsonify/chess-club-2/internal/model"
	"github.com/jsonify/chess-club-2/internal/repository"
)

type Server struct {
	cfg        config.Config
	store      *repository.Store
	reconciler *attendance.Reconciler
	redis      *redis.Client
	statsTTL   time.Duration
}

func NewServer(cfg config.Config, store *repository.Store, reconciler *attendance.Reconciler, redisClient *redis.Client) *Server {
	return &Server{
		cfg:        cfg,
		store:      store,
		reconciler: reconciler,
		redis:      redisClient,
		statsTTL:   cfg.StatsCacheTTL,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)

	r.Route("/students", func(r chi.Router) {
		r.With(s.authMiddleware).Get("/", s.handleListStudents)
		r.With(s.authMiddleware).Post("/", s.handleCreateStudent)
		r.With(s.authMiddleware).Get("/{studentId}", s.handleGetStudent)
		r.With(s.authMiddleware).Patch("/{studentId}", s.handlePatchStudent)
	})

	r.Route("/attendance", func(r chi.Router) {
		r.With(s.authMiddleware).Get("/roster", s.handleGetRoster)
		r.With(s.authMiddleware).Post("/students/{studentId}/check-in", s.handleCheckIn)
		r.With(s.authMiddleware).Post("/students/{studentId}/check-out", s.handleCheckOut)
		r.With(s.authMiddleware).Delete("/records/{recordId}", s.handleDeleteRecord)
	})

	r.Route("/matches", func(r chi.Router) {
		r.With(s.authMiddleware).Get("/", s.handleListMatches)
		r.With(s.authMiddleware).Post("/", s.handleCreateMatch)
		r.With(s.authMiddleware).Get("/achievements", s.handleAchievements)
	})

	return r
}

// Auth

type claimsKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) *auth.Claims {
	value := ctx.Value(claimsKey{})
	claims, _ := value.(*auth.Claims)
	return claims
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         userSummary `json:"user"`
}

type userSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: userSummary{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing_refresh_token")
		return
	}

	tokenHash := crypto.HashToken(req.RefreshToken)
	session, err := s.store.GetRefreshSession(r.Context(), tokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if session.RevokedAt != nil || session.ExpiresAt.Before(time.Now().UTC()) {
		writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "user_not_found")
		return
	}
	if err := s.store.RevokeRefreshSession(r.Context(), session.ID, time.Now().UTC()); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(r.Context(), user, r.UserAgent(), clientIP(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: userSummary{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	_ = s.store.RevokeRefreshSessionsByUser(r.Context(), claims.UserID, time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) issueTokens(ctx context.Context, user model.User, userAgent, ipAddress string) (string, string, error) {
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, auth.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
	if err != nil {
		return "", "", err
	}
	refreshToken, err := crypto.NewRefreshToken()
	if err != nil {
		return "", "", err
	}
	now := time.Now().UTC()
	session := model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.HashToken(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ipAddress != "" {
		session.IPAddress = &ipAddress
	}
	if err := s.store.CreateRefreshSession(ctx, session); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Students

type studentResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Grade     int    `json:"grade"`
	Teacher   string `json:"teacher"`
	Active    bool   `json:"active"`
}

func mapStudent(student model.Student) studentResponse {
	return studentResponse{
		ID:        student.ID,
		FirstName: student.FirstName,
		LastName:  student.LastName,
		Grade:     student.Grade,
		Teacher:   student.Teacher,
		Active:    student.Active,
	}
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	grade := 0
	if raw := r.URL.Query().Get("grade"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || !validGrade(parsed) {
			writeError(w, http.StatusBadRequest, "invalid_grade")
			return
		}
		grade = parsed
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	students, err := s.store.ListStudents(r.Context(), grade, search)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]studentResponse, 0, len(students))
	for _, student := range students {
		resp = append(resp, mapStudent(student))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createStudentRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Grade     int    `json:"grade"`
	Teacher   string `json:"teacher"`
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.FirstName == "" || req.LastName == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if !validGrade(req.Grade) {
		writeError(w, http.StatusBadRequest, "invalid_grade")
		return
	}

	now := time.Now().UTC()
	student := model.Student{
		ID:        uuid.NewString(),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Grade:     req.Grade,
		Teacher:   strings.TrimSpace(req.Teacher),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateStudent(r.Context(), student); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusCreated, mapStudent(student))
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	if _, err := uuid.Parse(studentID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_student_id")
		return
	}
	student, err := s.store.GetStudent(r.Context(), studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "student_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapStudent(student))
}

type patchStudentRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Grade     *int    `json:"grade"`
	Teacher   *string `json:"teacher"`
	Active    *bool   `json:"active"`
}

func (s *Server) handlePatchStudent(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	if _, err := uuid.Parse(studentID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_student_id")
		return
	}
	var req patchStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	student, err := s.store.GetStudent(r.Context(), studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "student_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if req.FirstName != nil {
		student.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		student.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Grade != nil {
		if !validGrade(*req.Grade) {
			writeError(w, http.StatusBadRequest, "invalid_grade")
			return
		}
		student.Grade = *req.Grade
	}
	if req.Teacher != nil {
		student.Teacher = strings.TrimSpace(*req.Teacher)
	}
	if req.Active != nil {
		student.Active = *req.Active
	}
	if student.FirstName == "" || student.LastName == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	student.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateStudent(r.Context(), student); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, mapStudent(student))
}

// Attendance

type rosterEntryResponse struct {
	studentResponse
	CheckedIn  bool `json:"checkedIn"`
	CheckedOut bool `json:"checkedOut"`
}

type statsResponse struct {
	TotalStudents  int `json:"totalStudents"`
	PresentToday   int `json:"presentToday"`
	AttendanceRate int `json:"attendanceRate"`
}

type rosterResponse struct {
	Date   string                `json:"date"`
	Roster []rosterEntryResponse `json:"roster"`
	Stats  statsResponse         `json:"stats"`
}

func (s *Server) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	date, ok := s.requestDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	roster, err := s.reconciler.Roster(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	stats := attendance.ComputeStats(roster)

	entries := make([]rosterEntryResponse, 0, len(roster))
	for _, entry := range roster {
		entries = append(entries, rosterEntryResponse{
			studentResponse: mapStudent(entry.Student),
			CheckedIn:       entry.CheckedIn,
			CheckedOut:      entry.CheckedOut,
		})
	}
	writeJSON(w, http.StatusOK, rosterResponse{
		Date:   date,
		Roster: entries,
		Stats: statsResponse{
			TotalStudents:  stats.TotalStudents,
			PresentToday:   stats.PresentToday,
			AttendanceRate: stats.AttendanceRate,
		},
	})
}

type toggleRequest struct {
	Desired bool    `json:"desired"`
	Date    *string `json:"date"`
}

type recordStateResponse struct {
	StudentID  string `json:"studentId"`
	SessionID  string `json:"sessionId"`
	Date       string `json:"date"`
	CheckedIn  bool   `json:"checkedIn"`
	CheckedOut bool   `json:"checkedOut"`
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	studentID, req, ok := s.toggleParams(w, r)
	if !ok {
		return
	}
	date, ok := s.requestDate(w, deref(req.Date))
	if !ok {
		return
	}

	state, err := s.reconciler.SetCheckIn(r.Context(), studentID, date, req.Desired)
	if err != nil {
		s.writeAttendanceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRecordState(state, date))
}

func (s *Server) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	studentID, req, ok := s.toggleParams(w, r)
	if !ok {
		return
	}
	date, ok := s.requestDate(w, deref(req.Date))
	if !ok {
		return
	}

	state, err := s.reconciler.SetCheckOut(r.Context(), studentID, date, req.Desired)
	if err != nil {
		s.writeAttendanceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapRecordState(state, date))
}

// toggleParams validates the student path param against the roster before
// any attendance write.
func (s *Server) toggleParams(w http.ResponseWriter, r *http.Request) (string, toggleRequest, bool) {
	studentID := chi.URLParam(r, "studentId")
	if _, err := uuid.Parse(studentID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_student_id")
		return "", toggleRequest{}, false
	}
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return "", toggleRequest{}, false
	}

	student, err := s.store.GetStudent(r.Context(), studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "student_not_found")
			return "", toggleRequest{}, false
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return "", toggleRequest{}, false
	}
	if !student.Active {
		writeError(w, http.StatusConflict, "student_inactive")
		return "", toggleRequest{}, false
	}
	return studentID, req, true
}

// requestDate resolves an optional explicit date, defaulting to the
// computed target date.
func (s *Server) requestDate(w http.ResponseWriter, raw string) (string, bool) {
	if raw == "" {
		return attendance.FormatDate(attendance.TargetDate(time.Now().UTC())), true
	}
	parsed, err := attendance.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date")
		return "", false
	}
	return attendance.FormatDate(parsed), true
}

func (s *Server) writeAttendanceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, attendance.ErrNoSession):
		writeError(w, http.StatusNotFound, "no_session")
	case errors.Is(err, attendance.ErrNotCheckedIn):
		writeError(w, http.StatusConflict, "not_checked_in")
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			writeError(w, http.StatusServiceUnavailable, "backend_unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func mapRecordState(state attendance.RecordState, date string) recordStateResponse {
	return recordStateResponse{
		StudentID:  state.StudentID,
		SessionID:  state.SessionID,
		Date:       date,
		CheckedIn:  state.CheckedIn,
		CheckedOut: state.CheckedOut,
	}
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordId")
	if _, err := uuid.Parse(recordID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_record_id")
		return
	}
	if err := s.store.DeleteRecord(r.Context(), recordID); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Matches

type matchResponse struct {
	ID        string `json:"id"`
	Player1   string `json:"player1"`
	Player2   string `json:"player2"`
	Player1ID string `json:"player1Id"`
	Player2ID string `json:"player2Id"`
	Result    string `json:"result"`
	Date      string `json:"date"`
	Notes     string `json:"notes,omitempty"`
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 10)
	matches, err := s.store.ListRecentMatches(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := make([]matchResponse, 0, len(matches))
	for _, match := range matches {
		entry := matchResponse{
			ID:        match.ID,
			Player1:   match.Player1Name,
			Player2:   match.Player2Name,
			Player1ID: match.Player1ID,
			Player2ID: match.Player2ID,
			Result:    match.Result,
			Date:      match.MatchDate,
		}
		if match.Notes != nil {
			entry.Notes = *match.Notes
		}
		resp = append(resp, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

type createMatchRequest struct {
	Player1ID string  `json:"player1Id"`
	Player2ID string  `json:"player2Id"`
	Result    string  `json:"result"`
	Date      *string `json:"date"`
	Notes     *string `json:"notes"`
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if _, err := uuid.Parse(req.Player1ID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_player_id")
		return
	}
	if _, err := uuid.Parse(req.Player2ID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_player_id")
		return
	}
	if req.Player1ID == req.Player2ID {
		writeError(w, http.StatusBadRequest, "same_player")
		return
	}
	if !validResult(req.Result) {
		writeError(w, http.StatusBadRequest, "invalid_result")
		return
	}

	for _, playerID := range []string{req.Player1ID, req.Player2ID} {
		if _, err := s.store.GetStudent(r.Context(), playerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				writeError(w, http.StatusNotFound, "student_not_found")
				return
			}
			writeError(w, http.StatusInternalServerError, "server_error")
			return
		}
	}

	matchDate := attendance.FormatDate(time.Now().UTC())
	if req.Date != nil {
		parsed, err := attendance.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return
		}
		matchDate = attendance.FormatDate(parsed)
	}

	match := model.Match{
		ID:        uuid.NewString(),
		Player1ID: req.Player1ID,
		Player2ID: req.Player2ID,
		Result:    req.Result,
		MatchDate: matchDate,
		Notes:     req.Notes,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateMatch(r.Context(), match); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	_ = s.invalidateAchievementStats(r.Context())

	writeJSON(w, http.StatusCreated, matchResponse{
		ID:        match.ID,
		Player1ID: match.Player1ID,
		Player2ID: match.Player2ID,
		Result:    match.Result,
		Date:      match.MatchDate,
	})
}

type achievementResponse struct {
	FivePointClub  int64 `json:"fivePointClub"`
	ChessChampions int64 `json:"chessChampions"`
	ActivePlayers  int64 `json:"activePlayers"`
	SocialPlayers  int64 `json:"socialPlayers"`
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	if cached, ok, err := s.loadAchievementStats(r.Context()); err == nil && ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := s.store.AchievementStats(r.Context(), time.Now().UTC().AddDate(0, 0, -30))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	resp := achievementResponse{
		FivePointClub:  stats.FivePointClub,
		ChessChampions: stats.ChessChampions,
		ActivePlayers:  stats.ActivePlayers,
		SocialPlayers:  stats.SocialPlayers,
	}
	_ = s.storeAchievementStats(r.Context(), resp)
	writeJSON(w, http.StatusOK, resp)
}

const achievementStatsKey = "achievement_stats"

func (s *Server) storeAchievementStats(ctx context.Context, stats achievementResponse) error {
	if s.redis == nil {
		return nil
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, achievementStatsKey, data, s.statsTTL).Err()
}

func (s *Server) loadAchievementStats(ctx context.Context) (achievementResponse, bool, error) {
	if s.redis == nil {
		return achievementResponse{}, false, nil
	}
	value, err := s.redis.Get(ctx, achievementStatsKey).Result()
	if err == redis.Nil {
		return achievementResponse{}, false, nil
	}
	if err != nil {
		return achievementResponse{}, false, err
	}
	var stats achievementResponse
	if err := json.Unmarshal([]byte(value), &stats); err != nil {
		return achievementResponse{}, false, err
	}
	return stats, true, nil
}

func (s *Server) invalidateAchievementStats(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, achievementStatsKey).Err()
}

// Utilities

func validGrade(grade int) bool {
	return grade >= 2 && grade <= 6
}

func validResult(result string) bool {
	switch result {
	case "player1", "player2", "draw":
		return true
	default:
		return false
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func parseLimit(r *http.Request, fallback int32) int32 {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return int32(parsed)
		}
	}
	return fallback
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ""
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
