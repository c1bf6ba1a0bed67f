package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
)

// GET /me - basic account info for the logged-in user
func meHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		var email, role, schoolName string
		var schoolLat, schoolLon sql.NullFloat64
		var schoolNameSQL sql.NullString
		err := db.QueryRow(`
            SELECT email, role, school_name, school_lat, school_lon
            FROM users WHERE id = $1
        `, userID).Scan(&email, &role, &schoolNameSQL, &schoolLat, &schoolLon)
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		if schoolNameSQL.Valid {
			schoolName = schoolNameSQL.String
		}

		resp := map[string]interface{}{
			"id":    userID,
			"email": email,
			"role":  role,
		}
		if schoolName != "" {
			resp["school_name"] = schoolName
		}
		if schoolLat.Valid {
			resp["school_lat"] = schoolLat.Float64
		}
		if schoolLon.Valid {
			resp["school_lon"] = schoolLon.Float64
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// PUT /me/school - students set the school the distance score is measured to
func meSchoolHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		type schoolRequest struct {
			Name string  `json:"name"`
			Lat  float64 `json:"lat"`
			Lon  float64 `json:"lon"`
		}
		var req schoolRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if req.Lat < -90 || req.Lat > 90 || req.Lon < -180 || req.Lon > 180 {
			writeError(w, http.StatusBadRequest, "invalid_coordinates")
			return
		}
		userID := r.Context().Value(userIDKey).(int)
		_, err := db.Exec(`
            UPDATE users SET school_name = $1, school_lat = $2, school_lon = $3
            WHERE id = $4
        `, req.Name, req.Lat, req.Lon, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
