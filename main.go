package main

import (
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// JWT secret from environment variable or fallback
func getJWTSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("your_secret_key_please_change_in_production")
}

var jwtSecret = getJWTSecret()

func main() {
	initDB()
	rdb := initRedis()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	mux := http.NewServeMux()

	// Core auth & user endpoints
	mux.Handle("/register", registerHandler(db))
	mux.Handle("/login", loginHandler(db))
	mux.Handle("/me", meHandler(db))
	mux.Handle("/me/school", meSchoolHandler(db))

	// Dorm listings & interactions
	mux.Handle("/dorms", dormsHandler(db))
	mux.Handle("/dorms/", dormsDispatcher(db, rdb)) // GET/PUT/DELETE /dorms/{id}, POST /dorms/{id}/{favorite,view,approve}

	// Roommate profiles & matching
	mux.Handle("/me/roommate", myRoommateProfileHandler(db))
	mux.Handle("/roommates/", roommatesDispatcher(db, rdb)) // GET /roommates/{id}, GET /roommates/{id}/matches
	mux.Handle("/matches", myMatchesHandler(db))
	mux.Handle("/matches/", matchesDispatcher(db, rng)) // GET /matches/{id}/icebreaker

	// Dorm recommendations for the logged-in student
	mux.Handle("/recommendations/dorms", dormRecommendationsHandler(db))

	// FAQ lookup & notifications (short-TTL cached)
	mux.Handle("/faq/ask", faqAskHandler(db, rdb))
	mux.Handle("/me/notifications", notificationsHandler(db, rdb))
	mux.Handle("/me/notifications/read", notificationsHandler(db, rdb))
	mux.Handle("/me/notifications/count", notificationCountHandler(db, rdb))

	// Health check endpoint for Docker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Default().Println("Starting Dorm Finder backend on port " + port + "...")
	http.ListenAndServe(":"+port, withCORS(mux))
}
