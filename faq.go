package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache TTLs. The caches only cut redundant reads; correctness never depends
// on them and a down Redis falls through to the database.
const (
	faqCacheTTL          = 5 * time.Minute
	notifCountCacheTTL   = 30 * time.Second
	faqSimilarityMinimum = 0.2
)

const faqFallbackAnswer = "Sorry, we don't have an answer for that yet. Try rephrasing your question or contact support."

// bestFAQMatch picks the canned answer whose question is most similar to the
// query. Ties keep the lower-ID entry. ok is false below the minimum.
func bestFAQMatch(faqs []FAQ, query string) (FAQ, bool) {
	var best FAQ
	bestScore := 0.0
	for _, f := range faqs {
		s := tokenSimilarity(query, f.Question)
		if s > bestScore {
			bestScore = s
			best = f
		}
	}
	return best, bestScore >= faqSimilarityMinimum
}

func loadFAQs(db *sql.DB) ([]FAQ, error) {
	rows, err := db.Query("SELECT id, question, answer FROM faqs ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faqs []FAQ
	for rows.Next() {
		var f FAQ
		if rows.Scan(&f.ID, &f.Question, &f.Answer) == nil {
			faqs = append(faqs, f)
		}
	}
	return faqs, rows.Err()
}

// GET /faq/ask?q=... - similarity-matched canned-answer lookup with a short
// TTL cache keyed on the normalized question.
func faqAskHandler(db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			writeError(w, http.StatusBadRequest, "missing_question")
			return
		}

		cacheKey := "faq:" + strings.ToLower(strings.Join(strings.Fields(query), " "))
		if rdb != nil {
			if cached, err := rdb.Get(r.Context(), cacheKey).Result(); err == nil {
				writeJSON(w, http.StatusOK, map[string]string{"answer": cached})
				return
			}
		}

		faqs, err := loadFAQs(db)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		answer := faqFallbackAnswer
		if match, ok := bestFAQMatch(faqs, query); ok {
			answer = match.Answer
		}

		if rdb != nil {
			if err := rdb.Set(r.Context(), cacheKey, answer, faqCacheTTL).Err(); err != nil {
				log.Println("Failed to cache FAQ answer:", err)
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
	}
}

// notifyUser inserts a notification row and invalidates the cached unread
// count. Failures are logged, never surfaced; notifications are best-effort.
func notifyUser(db *sql.DB, rdb *redis.Client, userID int, message string) {
	if _, err := db.Exec("INSERT INTO notifications (user_id, message) VALUES ($1, $2)", userID, message); err != nil {
		log.Println("Failed to insert notification:", err)
		return
	}
	if rdb != nil {
		if err := rdb.Del(context.Background(), notifCountKey(userID)).Err(); err != nil {
			log.Println("Failed to invalidate notification count:", err)
		}
	}
}

func notifCountKey(userID int) string {
	return "notif_count:" + strconv.Itoa(userID)
}

// GET /me/notifications/count
func notificationCountHandler(db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		if rdb != nil {
			if cached, err := rdb.Get(r.Context(), notifCountKey(userID)).Int(); err == nil {
				writeJSON(w, http.StatusOK, map[string]int{"unread": cached})
				return
			}
		}

		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE", userID).Scan(&count)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if rdb != nil {
			if err := rdb.Set(r.Context(), notifCountKey(userID), count, notifCountCacheTTL).Err(); err != nil {
				log.Println("Failed to cache notification count:", err)
			}
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread": count})
	})
}

// GET /me/notifications and POST /me/notifications/read
func notificationsHandler(db *sql.DB, rdb *redis.Client) http.HandlerFunc {
	return authenticate(db, func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)

		markRead := strings.HasSuffix(strings.TrimRight(r.URL.Path, "/"), "/read")
		if markRead {
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "invalid_method")
				return
			}
			_, err := db.Exec("UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE", userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			if rdb != nil {
				if err := rdb.Del(r.Context(), notifCountKey(userID)).Err(); err != nil {
					log.Println("Failed to invalidate notification count:", err)
				}
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		rows, err := db.Query(`
            SELECT id, message, is_read, created_at
            FROM notifications
            WHERE user_id = $1
            ORDER BY created_at DESC, id DESC
            LIMIT 50
        `, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		out := make([]map[string]interface{}, 0)
		for rows.Next() {
			var id int
			var message string
			var isRead bool
			var createdAt time.Time
			if rows.Scan(&id, &message, &isRead, &createdAt) == nil {
				out = append(out, map[string]interface{}{
					"id":         id,
					"message":    message,
					"is_read":    isRead,
					"created_at": createdAt,
				})
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": out})
	})
}
