package main

import (
	"bytes"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// Initialize JWT secret for handler tests
func init() {
	jwtSecret = []byte("test-secret-key-for-testing")
}

type TestUser struct {
	ID    int
	Email string
	Role  string
	Token string
}

// createTestUser inserts a user with the given role and returns it with a
// freshly issued token.
func createTestUser(t *testing.T, email, role string) TestUser {
	t.Helper()

	cleanupTestData(email)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to generate bcrypt hash: %v", err)
	}

	var userID int
	err = db.QueryRow("INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3) RETURNING id",
		email, string(hash), role).Scan(&userID)
	if err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	token, err := issueToken(userID, role)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	return TestUser{ID: userID, Email: email, Role: role, Token: token}
}

// createTestDorm inserts an approved, available listing for the landlord.
func createTestDorm(t *testing.T, landlordID int, name, category string, price float64, amenities []string) int {
	t.Helper()

	raw, _ := json.Marshal(amenities)
	var dormID int
	err := db.QueryRow(`
        INSERT INTO dorms (landlord_id, name, description, category, price, location_lat, location_lon, amenities, rating, review_count, is_available, is_approved)
        VALUES ($1, $2, '', $3, $4, 14.6096, 120.9899, $5, 4.0, 5, TRUE, TRUE)
        RETURNING id
    `, landlordID, name, category, price, raw).Scan(&dormID)
	if err != nil {
		t.Fatalf("failed to insert dorm: %v", err)
	}
	return dormID
}

// createTestRoommateProfile inserts a roommate profile and returns its ID.
func createTestRoommateProfile(t *testing.T, user TestUser, p RoommateProfile) int {
	t.Helper()

	raw, _ := json.Marshal(p.Amenities)
	var profileID int
	err := db.QueryRow(`
        INSERT INTO roommate_profiles (user_id, display_name, age, location, budget_min, budget_max, amenities, mood, hobbies)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (user_id) DO UPDATE SET
            display_name = EXCLUDED.display_name, age = EXCLUDED.age, location = EXCLUDED.location,
            budget_min = EXCLUDED.budget_min, budget_max = EXCLUDED.budget_max,
            amenities = EXCLUDED.amenities, mood = EXCLUDED.mood, hobbies = EXCLUDED.hobbies
        RETURNING id
    `, user.ID, p.DisplayName, p.Age, p.Location, p.BudgetMin, p.BudgetMax, raw, p.Mood, p.Hobbies).Scan(&profileID)
	if err != nil {
		t.Fatalf("failed to insert roommate profile: %v", err)
	}
	return profileID
}

// getDefaultTestProfile returns a roommate profile for testing
func getDefaultTestProfile() RoommateProfile {
	return RoommateProfile{
		DisplayName: "Test Student",
		Age:         20,
		Location:    "Sampaloc",
		BudgetMin:   3000,
		BudgetMax:   5000,
		Amenities:   []string{"wifi", "aircon", "study area"},
		Mood:        "studious",
		Hobbies:     "basketball and mobile games",
	}
}

func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// doRequest runs one request through a handler and returns the recorder.
func doRequest(handler http.HandlerFunc, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return out
}

// cleanupTestData removes test data for given emails
func cleanupTestData(emails ...string) {
	for _, email := range emails {
		db.Exec(`DELETE FROM roommate_matches WHERE profile_a_id IN
            (SELECT id FROM roommate_profiles WHERE user_id IN (SELECT id FROM users WHERE email = $1))
            OR profile_b_id IN
            (SELECT id FROM roommate_profiles WHERE user_id IN (SELECT id FROM users WHERE email = $1))`, email)
		db.Exec("DELETE FROM users WHERE email = $1", email)
	}
}
