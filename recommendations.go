package main

import (
	"database/sql"
	"net/http"
	"sort"
	"strings"
)

// Recommendation blend weights and bonus sizes. The price term is tiny and
// deliberately unnormalized against the other terms; it acts as a gentle
// penalty between otherwise-equal listings.
const (
	recWeightRating    = 0.25
	recWeightDistance  = 0.25
	recWeightAmenities = 0.25
	recWeightReviews   = 0.05
	recPricePenalty    = 0.00001

	recBonus = 0.2

	recNeighborCount      = 5
	recCollaborativeCount = 5
	recPerCategoryLimit   = 6
)

// DormRecommendation pairs a listing with its score and a human explanation.
type DormRecommendation struct {
	Dorm               Dorm    `json:"dorm"`
	Score              float64 `json:"score"`
	Reason             string  `json:"reason"`
	SimilarityMatch    bool    `json:"similarity_match"`
	CollaborativeMatch bool    `json:"collaborative_match"`
}

// distanceScore normalizes proximity to the student's school into [0,1],
// capped at 10km. Unknown school coordinates get a neutral 0.5.
func distanceScore(d Dorm, schoolLat, schoolLon *float64) float64 {
	if schoolLat == nil || schoolLon == nil {
		return 0.5
	}
	km := haversine(*schoolLat, *schoolLon, d.LocationLat, d.LocationLon)
	frac := km / 10
	if frac > 1 {
		frac = 1
	}
	return 1 - frac
}

// baseDormScore is the weighted blend of rating, proximity, amenities,
// review volume and price before any bonus is applied.
func baseDormScore(d Dorm, schoolLat, schoolLon *float64) (score, distScore float64) {
	distScore = distanceScore(d, schoolLat, schoolLon)
	score = recWeightRating*d.Rating +
		recWeightDistance*distScore +
		recWeightAmenities*(float64(len(d.Amenities))/10) +
		recWeightReviews*float64(d.ReviewCount) -
		recPricePenalty*d.Price
	return score, distScore
}

// buildReason concatenates up to the first two applicable explanations, in a
// fixed priority order, joined with "and".
func buildReason(d Dorm, distScore float64, similarity, collaborative bool) string {
	var reasons []string
	if similarity {
		reasons = append(reasons, "similar to dorms you love")
	}
	if collaborative {
		reasons = append(reasons, "students like you also favorited this")
	}
	if d.Rating >= 4.5 {
		reasons = append(reasons, "highly rated")
	}
	if distScore >= 0.8 {
		reasons = append(reasons, "close to your school")
	}
	if len(d.Amenities) >= 7 {
		reasons = append(reasons, "packed with amenities")
	}
	if d.ReviewCount >= 10 {
		reasons = append(reasons, "well reviewed by students")
	}
	if len(reasons) == 0 {
		return "Recommended for you"
	}
	if len(reasons) > 2 {
		reasons = reasons[:2]
	}
	text := strings.Join(reasons, " and ")
	return strings.ToUpper(text[:1]) + text[1:]
}

// recommendDorms ranks the candidate listings for one student and splits the
// result into whole-unit and bedspace categories, each capped.
//
// The nearest-neighbor fit is rebuilt per call over the current candidates;
// the query vector is the mean of the student's favorites, falling back to
// recently viewed listings. Ordering is deterministic: score descending,
// then dorm ID ascending.
func recommendDorms(candidates, favorites, viewed []Dorm, coFavoriters map[int]int, schoolLat, schoolLon *float64) (wholeUnit, bedspace []DormRecommendation) {
	seed := favorites
	if len(seed) == 0 {
		seed = viewed
	}
	var query []float64
	if len(seed) > 0 {
		vectors := make([][]float64, 0, len(seed))
		for _, d := range seed {
			vectors = append(vectors, dormFeatureVector(d))
		}
		query = meanVector(vectors)
	}
	nearest := nearestDormIDs(candidates, query, recNeighborCount)
	collaborative := topCollaborativeIDs(coFavoriters, recCollaborativeCount)

	recs := make([]DormRecommendation, 0, len(candidates))
	for _, d := range candidates {
		score, distScore := baseDormScore(d, schoolLat, schoolLon)
		similarity := nearest[d.ID]
		collab := collaborative[d.ID]
		if similarity {
			score += recBonus
		}
		if collab {
			score += recBonus
		}
		recs = append(recs, DormRecommendation{
			Dorm:               d,
			Score:              score,
			Reason:             buildReason(d, distScore, similarity, collab),
			SimilarityMatch:    similarity,
			CollaborativeMatch: collab,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].Dorm.ID < recs[j].Dorm.ID
	})

	for _, rec := range recs {
		if rec.Dorm.Category == "bedspace" {
			if len(bedspace) < recPerCategoryLimit {
				bedspace = append(bedspace, rec)
			}
		} else {
			if len(wholeUnit) < recPerCategoryLimit {
				wholeUnit = append(wholeUnit, rec)
			}
		}
	}
	return wholeUnit, bedspace
}

// GET /recommendations/dorms
func dormRecommendationsHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		candidates, err := loadApprovedDorms(db)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		favorites, err := loadFavoriteDorms(db, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		viewed, err := loadRecentlyViewedDorms(db, userID, 10)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		coFavoriters, err := loadCoFavoriterCounts(db, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		schoolLat, schoolLon, err := loadSchoolCoordinates(db, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		wholeUnit, bedspace := recommendDorms(candidates, favorites, viewed, coFavoriters, schoolLat, schoolLon)
		writeJSON(w, http.StatusOK, map[string][]DormRecommendation{
			"whole_unit": wholeUnit,
			"bedspace":   bedspace,
		})
	})
}

// loadCoFavoriterCounts counts, per listing, how many other students share at
// least one favorite with the requesting user and favorited that listing.
func loadCoFavoriterCounts(db *sql.DB, userID int) (map[int]int, error) {
	rows, err := db.Query(`
        SELECT f2.dorm_id, COUNT(DISTINCT f2.user_id)
        FROM favorites f2
        WHERE f2.user_id <> $1
          AND f2.user_id IN (
              SELECT f1.user_id FROM favorites f1
              WHERE f1.user_id <> $1
                AND f1.dorm_id IN (SELECT dorm_id FROM favorites WHERE user_id = $1)
          )
        GROUP BY f2.dorm_id
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var dormID, count int
		if rows.Scan(&dormID, &count) == nil {
			counts[dormID] = count
		}
	}
	return counts, rows.Err()
}

func loadSchoolCoordinates(db *sql.DB, userID int) (*float64, *float64, error) {
	var lat, lon sql.NullFloat64
	err := db.QueryRow("SELECT school_lat, school_lon FROM users WHERE id = $1", userID).Scan(&lat, &lon)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	} else if err != nil {
		return nil, nil, err
	}
	if !lat.Valid || !lon.Valid {
		return nil, nil, nil
	}
	return &lat.Float64, &lon.Float64, nil
}
