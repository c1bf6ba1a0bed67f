package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	requireDB(t)
	email := "register_test@example.com"
	cleanupTestData(email)
	t.Cleanup(func() { cleanupTestData(email) })

	t.Run("Register Student", func(t *testing.T) {
		rr := doRequest(registerHandler(db), http.MethodPost, "/register", "",
			map[string]string{"email": email, "password": "password123"})
		require.Equal(t, http.StatusCreated, rr.Code)
		body := decodeBody(t, rr)
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, "student", body["role"]) // default role
	})

	t.Run("Duplicate Email", func(t *testing.T) {
		rr := doRequest(registerHandler(db), http.MethodPost, "/register", "",
			map[string]string{"email": email, "password": "password123"})
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "email_exists", decodeBody(t, rr)["error"])
	})

	t.Run("Invalid Role", func(t *testing.T) {
		rr := doRequest(registerHandler(db), http.MethodPost, "/register", "",
			map[string]string{"email": "another@example.com", "password": "password123", "role": "admin"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_role", decodeBody(t, rr)["error"])
	})

	t.Run("Missing Fields", func(t *testing.T) {
		rr := doRequest(registerHandler(db), http.MethodPost, "/register", "",
			map[string]string{"email": "  "})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Login Wrong Password", func(t *testing.T) {
		rr := doRequest(loginHandler(db), http.MethodPost, "/login", "",
			map[string]string{"email": email, "password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "invalid_credentials", decodeBody(t, rr)["error"])
	})

	t.Run("Login Unknown Email", func(t *testing.T) {
		rr := doRequest(loginHandler(db), http.MethodPost, "/login", "",
			map[string]string{"email": "nobody@example.com", "password": "password123"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Login Success", func(t *testing.T) {
		rr := doRequest(loginHandler(db), http.MethodPost, "/login", "",
			map[string]string{"email": email, "password": "password123"})
		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.NotEmpty(t, body["token"])
		assert.Equal(t, "student", body["role"])
	})
}

func TestAuthenticateRejects(t *testing.T) {
	protected := authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("No Header", func(t *testing.T) {
		rr := doRequest(protected, http.MethodGet, "/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Garbage Token", func(t *testing.T) {
		rr := doRequest(protected, http.MethodGet, "/me", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
