package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const dormColumns = `id, landlord_id, name, description, category, price,
       location_lat, location_lon, amenities, rating, review_count,
       view_count, is_available, is_approved`

func scanDorm(scanner interface{ Scan(...interface{}) error }) (Dorm, error) {
	var d Dorm
	var amenities []byte
	err := scanner.Scan(
		&d.ID, &d.LandlordID, &d.Name, &d.Description, &d.Category, &d.Price,
		&d.LocationLat, &d.LocationLon, &amenities, &d.Rating, &d.ReviewCount,
		&d.ViewCount, &d.IsAvailable, &d.IsApproved,
	)
	if err != nil {
		return d, err
	}
	json.Unmarshal(amenities, &d.Amenities)
	return d, nil
}

// loadApprovedDorms returns the candidate set the recommendation scorer works
// over: approved and currently available listings only.
func loadApprovedDorms(db *sql.DB) ([]Dorm, error) {
	rows, err := db.Query(`
        SELECT ` + dormColumns + `
        FROM dorms
        WHERE is_approved = TRUE AND is_available = TRUE
        ORDER BY id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dorms []Dorm
	for rows.Next() {
		d, err := scanDorm(rows)
		if err != nil {
			continue
		}
		dorms = append(dorms, d)
	}
	return dorms, rows.Err()
}

func loadFavoriteDorms(db *sql.DB, userID int) ([]Dorm, error) {
	rows, err := db.Query(`
        SELECT `+dormColumns+`
        FROM dorms
        WHERE id IN (SELECT dorm_id FROM favorites WHERE user_id = $1)
        ORDER BY id
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dorms []Dorm
	for rows.Next() {
		d, err := scanDorm(rows)
		if err != nil {
			continue
		}
		dorms = append(dorms, d)
	}
	return dorms, rows.Err()
}

func loadRecentlyViewedDorms(db *sql.DB, userID, limit int) ([]Dorm, error) {
	rows, err := db.Query(`
        SELECT `+dormColumns+`
        FROM dorms
        WHERE id IN (
            SELECT dorm_id FROM dorm_views
            WHERE user_id = $1
            ORDER BY created_at DESC
            LIMIT $2
        )
        ORDER BY id
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dorms []Dorm
	for rows.Next() {
		d, err := scanDorm(rows)
		if err != nil {
			continue
		}
		dorms = append(dorms, d)
	}
	return dorms, rows.Err()
}

func dormToJSON(d Dorm) map[string]interface{} {
	amenities := d.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return map[string]interface{}{
		"id":           d.ID,
		"landlord_id":  d.LandlordID,
		"name":         d.Name,
		"description":  d.Description,
		"category":     d.Category,
		"price":        d.Price,
		"location_lat": d.LocationLat,
		"location_lon": d.LocationLon,
		"amenities":    amenities,
		"rating":       d.Rating,
		"review_count": d.ReviewCount,
		"view_count":   d.ViewCount,
		"is_available": d.IsAvailable,
		"is_approved":  d.IsApproved,
	}
}

// GET /dorms (browse approved listings) and POST /dorms (landlord create)
func dormsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			dorms, err := loadApprovedDorms(db)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			out := make([]map[string]interface{}, 0, len(dorms))
			for _, d := range dorms {
				out = append(out, dormToJSON(d))
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"dorms": out})

		case http.MethodPost:
			if r.Context().Value(userRoleKey).(string) != "landlord" {
				writeError(w, http.StatusForbidden, "landlord_only")
				return
			}
			var req dormRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			if err := req.validate(); err != "" {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			landlordID := r.Context().Value(userIDKey).(int)
			amenities, _ := json.Marshal(req.Amenities)
			var newID int
			err := db.QueryRow(`
                INSERT INTO dorms (landlord_id, name, description, category, price, location_lat, location_lon, amenities, is_available, is_approved)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, FALSE)
                RETURNING id
            `, landlordID, req.Name, req.Description, req.Category, req.Price, req.LocationLat, req.LocationLon, amenities).Scan(&newID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "dorm_save_error")
				log.Println("Error saving dorm:", err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]int{"id": newID})

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

type dormRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	LocationLat float64  `json:"location_lat"`
	LocationLon float64  `json:"location_lon"`
	Amenities   []string `json:"amenities"`
	IsAvailable *bool    `json:"is_available"`
}

func (req dormRequest) validate() string {
	if strings.TrimSpace(req.Name) == "" {
		return "missing_name"
	}
	if req.Category != "whole_unit" && req.Category != "bedspace" {
		return "invalid_category"
	}
	if req.Price <= 0 {
		return "invalid_price"
	}
	return ""
}

// Dispatcher for /dorms/{id} and /dorms/{id}/{action}
func dormsDispatcher(db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 || parts[0] != "dorms" {
			http.NotFound(w, r)
			return
		}
		dormID, err := strconv.Atoi(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}

		if len(parts) == 2 {
			switch r.Method {
			case http.MethodGet:
				getDorm(db, w, r, dormID)
			case http.MethodPut:
				updateDorm(db, w, r, dormID)
			case http.MethodDelete:
				deleteDorm(db, w, r, dormID)
			default:
				writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			}
			return
		}

		if len(parts) == 3 && r.Method == http.MethodPost {
			switch parts[2] {
			case "favorite":
				toggleFavorite(db, w, r, dormID)
			case "view":
				recordDormView(db, w, r, dormID)
			case "approve":
				approveDorm(db, rdb, w, r, dormID)
			default:
				http.NotFound(w, r)
			}
			return
		}
		http.NotFound(w, r)
	})
}

// GET /dorms/{id} - also counts as a view interaction
func getDorm(db *sql.DB, w http.ResponseWriter, r *http.Request, dormID int) {
	row := db.QueryRow(`SELECT `+dormColumns+` FROM dorms WHERE id = $1`, dormID)
	d, err := scanDorm(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "not_found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	userID := r.Context().Value(userIDKey).(int)
	// Unapproved listings are only visible to their owner and admins
	if !d.IsApproved && d.LandlordID != userID && r.Context().Value(userRoleKey).(string) != "admin" {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	if _, err := db.Exec("UPDATE dorms SET view_count = view_count + 1 WHERE id = $1", dormID); err != nil {
		log.Println("Failed to bump view count:", err)
	}
	_, err = db.Exec("INSERT INTO dorm_views (user_id, dorm_id) VALUES ($1, $2)", userID, dormID)
	if err != nil {
		log.Println("Failed to record view:", err)
	}
	d.ViewCount++
	writeJSON(w, http.StatusOK, dormToJSON(d))
}

// PUT /dorms/{id} - landlords edit their own listings
func updateDorm(db *sql.DB, w http.ResponseWriter, r *http.Request, dormID int) {
	userID := r.Context().Value(userIDKey).(int)
	var req dormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}
	amenities, _ := json.Marshal(req.Amenities)
	res, err := db.Exec(`
        UPDATE dorms
        SET name = $1, description = $2, category = $3, price = $4,
            location_lat = $5, location_lon = $6, amenities = $7, is_available = $8
        WHERE id = $9 AND landlord_id = $10
    `, req.Name, req.Description, req.Category, req.Price,
		req.LocationLat, req.LocationLon, amenities, available, dormID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "dorm_save_error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DELETE /dorms/{id}
func deleteDorm(db *sql.DB, w http.ResponseWriter, r *http.Request, dormID int) {
	userID := r.Context().Value(userIDKey).(int)
	role := r.Context().Value(userRoleKey).(string)

	var res sql.Result
	var err error
	if role == "admin" {
		res, err = db.Exec("DELETE FROM dorms WHERE id = $1", dormID)
	} else {
		res, err = db.Exec("DELETE FROM dorms WHERE id = $1 AND landlord_id = $2", dormID, userID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /dorms/{id}/favorite toggles the favorite and reports the new state.
func toggleFavorite(db *sql.DB, w http.ResponseWriter, r *http.Request, dormID int) {
	userID := r.Context().Value(userIDKey).(int)

	var exists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM dorms WHERE id = $1 AND is_approved = TRUE)", dormID).Scan(&exists)
	if err != nil || !exists {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}

	res, err := db.Exec("DELETE FROM favorites WHERE user_id = $1 AND dorm_id = $2", userID, dormID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		writeJSON(w, http.StatusOK, map[string]bool{"favorited": false})
		return
	}
	_, err = db.Exec("INSERT INTO favorites (user_id, dorm_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", userID, dormID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"favorited": true})
}

// POST /dorms/{id}/view records an implicit-preference view event.
func recordDormView(db *sql.DB, w http.ResponseWriter, r *http.Request, dormID int) {
	userID := r.Context().Value(userIDKey).(int)
	var exists bool
	err := db.QueryRow("SELECT EXISTS (SELECT 1 FROM dorms WHERE id = $1)", dormID).Scan(&exists)
	if err != nil || !exists {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	_, err = db.Exec("INSERT INTO dorm_views (user_id, dorm_id) VALUES ($1, $2)", userID, dormID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"recorded": true})
}

// POST /dorms/{id}/approve - admin moderation; notifies the landlord.
func approveDorm(db *sql.DB, rdb *redis.Client, w http.ResponseWriter, r *http.Request, dormID int) {
	if r.Context().Value(userRoleKey).(string) != "admin" {
		writeError(w, http.StatusForbidden, "admin_only")
		return
	}
	var landlordID int
	var name string
	err := db.QueryRow("SELECT landlord_id, name FROM dorms WHERE id = $1", dormID).Scan(&landlordID, &name)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "not_found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	_, err = db.Exec("UPDATE dorms SET is_approved = TRUE WHERE id = $1", dormID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	notifyUser(db, rdb, landlordID, "Your dorm listing \""+name+"\" has been approved and is now visible to students.")
	writeJSON(w, http.StatusOK, map[string]bool{"approved": true})
}
