package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

var validMoods = map[string]bool{
	"quiet":       true,
	"studious":    true,
	"friendly":    true,
	"adventurous": true,
}

const roommateColumns = `id, user_id, display_name, age, location, budget_min, budget_max, amenities, mood, hobbies`

func scanRoommateProfile(scanner interface{ Scan(...interface{}) error }) (RoommateProfile, error) {
	var p RoommateProfile
	var amenities []byte
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.DisplayName, &p.Age, &p.Location,
		&p.BudgetMin, &p.BudgetMax, &amenities, &p.Mood, &p.Hobbies,
	)
	if err != nil {
		return p, err
	}
	json.Unmarshal(amenities, &p.Amenities)
	return p, nil
}

func loadRoommateProfile(db *sql.DB, profileID int) (RoommateProfile, error) {
	row := db.QueryRow(`SELECT `+roommateColumns+` FROM roommate_profiles WHERE id = $1`, profileID)
	return scanRoommateProfile(row)
}

func roommateProfileToJSON(p RoommateProfile) map[string]interface{} {
	amenities := p.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return map[string]interface{}{
		"id":             p.ID,
		"user_id":        p.UserID,
		"display_name":   p.DisplayName,
		"age":            p.Age,
		"location":       p.Location,
		"budget_min":     p.BudgetMin,
		"budget_max":     p.BudgetMax,
		"average_budget": p.AverageBudget(),
		"amenities":      amenities,
		"mood":           p.Mood,
		"hobbies":        p.Hobbies,
	}
}

// GET /me/roommate and POST/PATCH /me/roommate (upsert own profile)
func myRoommateProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)

		switch r.Method {
		case http.MethodGet:
			row := db.QueryRow(`SELECT `+roommateColumns+` FROM roommate_profiles WHERE user_id = $1`, userID)
			p, err := scanRoommateProfile(row)
			if err == sql.ErrNoRows {
				writeError(w, http.StatusNotFound, "profile_not_found")
				return
			} else if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			writeJSON(w, http.StatusOK, roommateProfileToJSON(p))

		case http.MethodPost, http.MethodPatch:
			type profileRequest struct {
				DisplayName string   `json:"display_name"`
				Age         int      `json:"age"`
				Location    string   `json:"location"`
				BudgetMin   float64  `json:"budget_min"`
				BudgetMax   float64  `json:"budget_max"`
				Amenities   []string `json:"amenities"`
				Mood        string   `json:"mood"`
				Hobbies     string   `json:"hobbies"`
			}
			var req profileRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			req.Mood = strings.ToLower(strings.TrimSpace(req.Mood))
			if !validMoods[req.Mood] {
				writeError(w, http.StatusBadRequest, "invalid_mood")
				return
			}
			if req.BudgetMin <= 0 || req.BudgetMax < req.BudgetMin {
				writeError(w, http.StatusBadRequest, "invalid_budget_range")
				return
			}
			if req.Age <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_age")
				return
			}
			amenities, _ := json.Marshal(req.Amenities)
			_, err := db.Exec(`
                INSERT INTO roommate_profiles (user_id, display_name, age, location, budget_min, budget_max, amenities, mood, hobbies)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
                ON CONFLICT (user_id) DO UPDATE SET
                    display_name = EXCLUDED.display_name,
                    age = EXCLUDED.age,
                    location = EXCLUDED.location,
                    budget_min = EXCLUDED.budget_min,
                    budget_max = EXCLUDED.budget_max,
                    amenities = EXCLUDED.amenities,
                    mood = EXCLUDED.mood,
                    hobbies = EXCLUDED.hobbies
            `, userID, req.DisplayName, req.Age, req.Location, req.BudgetMin, req.BudgetMax, amenities, req.Mood, req.Hobbies)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "profile_save_error")
				log.Println("Error saving roommate profile:", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

		case http.MethodDelete:
			_, err := db.Exec("DELETE FROM roommate_profiles WHERE user_id = $1", userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

// MatchResult is one ranked entry from candidate search.
type MatchResult struct {
	Profile RoommateProfile
	Score   float64
	Factors MatchFactors
}

// findRoommateMatches scores the profile against every candidate that is not
// owned by the same user and not already paired with it in either direction.
// Results at or above the threshold come back sorted by score descending,
// ties broken by ascending profile ID.
func findRoommateMatches(db *sql.DB, profile RoommateProfile, threshold float64) ([]MatchResult, error) {
	rows, err := db.Query(`
        SELECT `+roommateColumns+`
        FROM roommate_profiles p
        WHERE p.user_id <> $1
          AND NOT EXISTS (
              SELECT 1
              FROM roommate_matches m
              WHERE (m.profile_a_id = $2 AND m.profile_b_id = p.id)
                 OR (m.profile_a_id = p.id AND m.profile_b_id = $2)
          )
    `, profile.UserID, profile.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MatchResult
	for rows.Next() {
		candidate, err := scanRoommateProfile(rows)
		if err != nil {
			continue
		}
		score, factors := compatibilityScore(profile, candidate)
		if score >= threshold {
			results = append(results, MatchResult{Profile: candidate, Score: score, Factors: factors})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Profile.ID < results[j].Profile.ID
	})
	return results, nil
}

type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// storeMatch persists a computed match once per unordered pair. The pair is
// normalized (lower profile ID first) so the unique index holds in both
// directions; re-running a search never rewrites an existing score.
func storeMatch(ex execer, profileA, profileB int, score float64, factors MatchFactors) error {
	if profileA > profileB {
		profileA, profileB = profileB, profileA
	}
	breakdown, err := json.Marshal(factors)
	if err != nil {
		return err
	}
	_, err = ex.Exec(`
        INSERT INTO roommate_matches (profile_a_id, profile_b_id, score, factors)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (profile_a_id, profile_b_id) DO NOTHING
    `, profileA, profileB, score, breakdown)
	return err
}

// Dispatcher for /roommates/{id} and /roommates/{id}/matches
func roommatesDispatcher(db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) < 2 || parts[0] != "roommates" {
			http.NotFound(w, r)
			return
		}
		profileID, err := strconv.Atoi(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}

		if len(parts) == 2 && r.Method == http.MethodGet {
			p, err := loadRoommateProfile(db, profileID)
			if err == sql.ErrNoRows {
				writeError(w, http.StatusNotFound, "not_found")
				return
			} else if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			writeJSON(w, http.StatusOK, roommateProfileToJSON(p))
			return
		}

		if len(parts) == 3 && parts[2] == "matches" && r.Method == http.MethodGet {
			searchMatches(db, rdb, w, r, profileID)
			return
		}
		http.NotFound(w, r)
	})
}

// GET /roommates/{id}/matches?threshold=70 - runs candidate search for the
// caller's own profile, persisting each newly found pair.
func searchMatches(db *sql.DB, rdb *redis.Client, w http.ResponseWriter, r *http.Request, profileID int) {
	userID := r.Context().Value(userIDKey).(int)

	profile, err := loadRoommateProfile(db, profileID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "not_found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if profile.UserID != userID {
		writeError(w, http.StatusForbidden, "not_your_profile")
		return
	}

	threshold := DefaultMatchThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			writeError(w, http.StatusBadRequest, "invalid_threshold")
			return
		}
		threshold = parsed
	}

	results, err := findRoommateMatches(db, profile, threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "match_error")
		log.Println("Error searching matches:", err)
		return
	}

	// Every result is a brand-new pair (existing matches were excluded from
	// the search), so persist matches and notifications atomically.
	err = withTx(r.Context(), db, func(tx *sql.Tx) error {
		for _, res := range results {
			if err := storeMatch(tx, profile.ID, res.Profile.ID, res.Score, res.Factors); err != nil {
				return err
			}
			_, err := tx.Exec("INSERT INTO notifications (user_id, message) VALUES ($1, $2)",
				res.Profile.UserID, "You have a new roommate match with "+profile.DisplayName+"!")
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "match_save_error")
		log.Println("Error storing matches:", err)
		return
	}
	if rdb != nil {
		for _, res := range results {
			if err := rdb.Del(r.Context(), notifCountKey(res.Profile.UserID)).Err(); err != nil {
				log.Println("Failed to invalidate notification count:", err)
			}
		}
	}

	out := make([]map[string]interface{}, 0, len(results))
	for _, res := range results {
		out = append(out, map[string]interface{}{
			"profile": roommateProfileToJSON(res.Profile),
			"score":   res.Score,
			"factors": res.Factors,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": out, "threshold": threshold})
}

func loadMatch(db *sql.DB, matchID int) (RoommateMatch, error) {
	var m RoommateMatch
	var factors []byte
	err := db.QueryRow(`
        SELECT id, profile_a_id, profile_b_id, score, factors, created_at
        FROM roommate_matches WHERE id = $1
    `, matchID).Scan(&m.ID, &m.ProfileAID, &m.ProfileBID, &m.Score, &factors, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	json.Unmarshal(factors, &m.Factors)
	return m, nil
}

// GET /matches - stored matches involving any of the caller's profiles
func myMatchesHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		rows, err := db.Query(`
            SELECT m.id, m.profile_a_id, m.profile_b_id, m.score, m.factors, m.created_at
            FROM roommate_matches m
            JOIN roommate_profiles p ON p.id IN (m.profile_a_id, m.profile_b_id)
            WHERE p.user_id = $1
            ORDER BY m.score DESC, m.id ASC
        `, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		out := make([]map[string]interface{}, 0)
		for rows.Next() {
			var m RoommateMatch
			var factors []byte
			if err := rows.Scan(&m.ID, &m.ProfileAID, &m.ProfileBID, &m.Score, &factors, &m.CreatedAt); err != nil {
				continue
			}
			json.Unmarshal(factors, &m.Factors)
			out = append(out, map[string]interface{}{
				"id":           m.ID,
				"profile_a_id": m.ProfileAID,
				"profile_b_id": m.ProfileBID,
				"score":        m.Score,
				"factors":      m.Factors,
				"created_at":   m.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"matches": out})
	})
}

// Dispatcher for /matches/{id}/icebreaker
func matchesDispatcher(db *sql.DB, rng *rand.Rand) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "matches" || parts[2] != "icebreaker" {
			http.NotFound(w, r)
			return
		}
		matchID, err := strconv.Atoi(parts[1])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		match, err := loadMatch(db, matchID)
		if err == sql.ErrNoRows {
			writeError(w, http.StatusNotFound, "not_found")
			return
		} else if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		// Work out which side of the match the caller is, then talk about
		// the *other* profile.
		sideA, errA := loadRoommateProfile(db, match.ProfileAID)
		sideB, errB := loadRoommateProfile(db, match.ProfileBID)
		if errA != nil || errB != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		var partner RoommateProfile
		switch userID {
		case sideA.UserID:
			partner = sideB
		case sideB.UserID:
			partner = sideA
		default:
			writeError(w, http.StatusForbidden, "not_your_match")
			return
		}

		candidates := icebreakerCandidates(partner, match.Score, match.Factors)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"match_id":   match.ID,
			"icebreaker": pickIcebreaker(candidates, rng),
		})
	})
}
