package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
)

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type studentResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Grade     int    `json:"grade"`
	Active    bool   `json:"active"`
}

type rosterResponse struct {
	Date   string `json:"date"`
	Roster []struct {
		studentResponse
		CheckedIn  bool `json:"checkedIn"`
		CheckedOut bool `json:"checkedOut"`
	} `json:"roster"`
	Stats struct {
		TotalStudents  int `json:"totalStudents"`
		PresentToday   int `json:"presentToday"`
		AttendanceRate int `json:"attendanceRate"`
	} `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func login(t *testing.T, baseURL, email, password string) string {
	t.Helper()
	var resp tokenResponse
	doJSON(t, "", http.MethodPost, baseURL+"/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK, &resp)
	if resp.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, token, method, url string, payload interface{}, wantStatus int, out interface{}) {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d (want %d), error %q", method, url, resp.StatusCode, wantStatus, errResp.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
}

func TestAttendanceFlow(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") != "1" {
		t.Skip("set INTEGRATION_TESTS=1 to run")
	}
	baseURL := getenv("SERVER_HTTP_ADDR", "http://127.0.0.1:8080")
	token := login(t, baseURL, getenv("ADMIN_EMAIL", "admin@club.local"), getenv("ADMIN_PASSWORD", "dev-password"))

	var student studentResponse
	doJSON(t, token, http.MethodPost, baseURL+"/students", map[string]interface{}{
		"firstName": "Integration",
		"lastName":  fmt.Sprintf("Student%d", os.Getpid()),
		"grade":     3,
		"teacher":   "Ms. Test",
	}, http.StatusCreated, &student)

	date := "2026-02-04" // a Wednesday

	// Check-out before any check-in is rejected.
	doJSON(t, token, http.MethodPost, baseURL+"/attendance/students/"+student.ID+"/check-out",
		map[string]interface{}{"desired": true, "date": date}, http.StatusNotFound, nil)

	var state struct {
		CheckedIn  bool `json:"checkedIn"`
		CheckedOut bool `json:"checkedOut"`
	}
	doJSON(t, token, http.MethodPost, baseURL+"/attendance/students/"+student.ID+"/check-in",
		map[string]interface{}{"desired": true, "date": date}, http.StatusOK, &state)
	if !state.CheckedIn || state.CheckedOut {
		t.Fatalf("unexpected state after check-in: %+v", state)
	}

	doJSON(t, token, http.MethodPost, baseURL+"/attendance/students/"+student.ID+"/check-out",
		map[string]interface{}{"desired": true, "date": date}, http.StatusOK, &state)
	if !state.CheckedIn || !state.CheckedOut {
		t.Fatalf("unexpected state after check-out: %+v", state)
	}

	var roster rosterResponse
	doJSON(t, token, http.MethodGet, baseURL+"/attendance/roster?date="+date, nil, http.StatusOK, &roster)
	found := false
	for _, entry := range roster.Roster {
		if entry.ID == student.ID {
			found = true
			if !entry.CheckedIn || !entry.CheckedOut {
				t.Fatalf("unexpected roster entry %+v", entry)
			}
		}
	}
	if !found {
		t.Fatalf("student missing from roster")
	}

	// Toggle the check-in off again; the row is kept but reads absent.
	doJSON(t, token, http.MethodPost, baseURL+"/attendance/students/"+student.ID+"/check-in",
		map[string]interface{}{"desired": false, "date": date}, http.StatusOK, &state)
	if state.CheckedIn {
		t.Fatalf("expected check-in cleared, got %+v", state)
	}

	// Deactivate the student so reruns keep the roster clean.
	doJSON(t, token, http.MethodPatch, baseURL+"/students/"+student.ID,
		map[string]interface{}{"active": false}, http.StatusOK, nil)
}
