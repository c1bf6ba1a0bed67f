package main

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tokens := tokenize("How do I pay? Pay via GCash!")
	assert.True(t, tokens["how"])
	assert.True(t, tokens["pay"])
	assert.True(t, tokens["gcash"])
	assert.False(t, tokens["i"]) // single-letter tokens dropped
	assert.False(t, tokens["pay?"])
}

func TestTokenSimilarity(t *testing.T) {
	t.Run("Identical Up To Case And Punctuation", func(t *testing.T) {
		assert.Equal(t, 1.0, tokenSimilarity("How do I cancel my booking?", "how do cancel my booking"))
	})

	t.Run("No Overlap", func(t *testing.T) {
		assert.Equal(t, 0.0, tokenSimilarity("refund policy", "roommate matching"))
	})

	t.Run("Partial Overlap", func(t *testing.T) {
		// {refund, policy} vs {refund, process}: intersection 1, union 3
		assert.InDelta(t, 1.0/3.0, tokenSimilarity("refund policy", "refund process"), 1e-9)
	})

	t.Run("Empty Query", func(t *testing.T) {
		assert.Equal(t, 0.0, tokenSimilarity("", "anything at all"))
	})
}

func TestBestFAQMatch(t *testing.T) {
	faqs := []FAQ{
		{ID: 1, Question: "How do I book a dorm?", Answer: "Tap Book on the listing page."},
		{ID: 2, Question: "What is the refund policy?", Answer: "Refunds within 7 days."},
		{ID: 3, Question: "How do I contact a landlord?", Answer: "Use the inquiry button."},
	}

	t.Run("Picks The Closest Question", func(t *testing.T) {
		match, ok := bestFAQMatch(faqs, "what's your refund policy")
		require.True(t, ok)
		assert.Equal(t, 2, match.ID)
	})

	t.Run("Below Minimum Similarity", func(t *testing.T) {
		_, ok := bestFAQMatch(faqs, "zebra migration patterns")
		assert.False(t, ok)
	})

	t.Run("Empty FAQ Table", func(t *testing.T) {
		_, ok := bestFAQMatch(nil, "how do I book a dorm")
		assert.False(t, ok)
	})
}

func TestFAQAskHandler(t *testing.T) {
	requireDB(t)

	var faqID int
	err := db.QueryRow("INSERT INTO faqs (question, answer) VALUES ($1, $2) RETURNING id",
		"How do I verify my dormitory reservation voucher?",
		"Vouchers are verified automatically within an hour.").Scan(&faqID)
	require.NoError(t, err)
	t.Cleanup(func() { db.Exec("DELETE FROM faqs WHERE id = $1", faqID) })

	handler := faqAskHandler(db, nil)

	t.Run("Missing Question", func(t *testing.T) {
		rr := doRequest(handler, http.MethodGet, "/faq/ask", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "missing_question", decodeBody(t, rr)["error"])
	})

	t.Run("Similar Question Gets The Canned Answer", func(t *testing.T) {
		q := url.QueryEscape("how do I verify my reservation voucher")
		rr := doRequest(handler, http.MethodGet, "/faq/ask?q="+q, "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Vouchers are verified automatically within an hour.", decodeBody(t, rr)["answer"])
	})

	t.Run("Unrelated Question Falls Back", func(t *testing.T) {
		q := url.QueryEscape("xylophone quantum zeppelin")
		rr := doRequest(handler, http.MethodGet, "/faq/ask?q="+q, "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, faqFallbackAnswer, decodeBody(t, rr)["answer"])
	})
}

func TestNotificationsFlow(t *testing.T) {
	requireDB(t)
	user := createTestUser(t, "notif_flow@example.com", "student")
	t.Cleanup(func() { cleanupTestData(user.Email) })

	notifyUser(db, nil, user.ID, "Test notification one")
	notifyUser(db, nil, user.ID, "Test notification two")

	t.Run("Unread Count", func(t *testing.T) {
		rr := doRequest(notificationCountHandler(db, nil), http.MethodGet, "/me/notifications/count", user.Token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 2.0, decodeBody(t, rr)["unread"])
	})

	t.Run("List", func(t *testing.T) {
		rr := doRequest(notificationsHandler(db, nil), http.MethodGet, "/me/notifications", user.Token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		notifications := decodeBody(t, rr)["notifications"].([]interface{})
		assert.Len(t, notifications, 2)
	})

	t.Run("Mark Read Clears The Count", func(t *testing.T) {
		rr := doRequest(notificationsHandler(db, nil), http.MethodPost, "/me/notifications/read", user.Token, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = doRequest(notificationCountHandler(db, nil), http.MethodGet, "/me/notifications/count", user.Token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 0.0, decodeBody(t, rr)["unread"])
	})
}

func TestNormalizeAmenities(t *testing.T) {
	set := normalizeAmenities([]string{"WiFi", " wifi ", "Aircon", ""})
	assert.Len(t, set, 2)
	assert.True(t, set["wifi"])
	assert.True(t, set["aircon"])
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 72.31, round2(72.3149))
	assert.Equal(t, 72.32, round2(72.316))
	assert.Equal(t, 100.0, round2(99.999))
}
