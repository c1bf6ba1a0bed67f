package main

import "time"

// Dorm represents a rental listing owned by a landlord.
type Dorm struct {
	ID          int      `json:"id"`
	LandlordID  int      `json:"landlord_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"` // "whole_unit" or "bedspace"
	Price       float64  `json:"price"`
	LocationLat float64  `json:"location_lat"`
	LocationLon float64  `json:"location_lon"`
	Amenities   []string `json:"amenities"`
	Rating      float64  `json:"rating"` // average rating aggregated from reviews
	ReviewCount int      `json:"review_count"`
	ViewCount   int      `json:"view_count"`
	IsAvailable bool     `json:"is_available"`
	IsApproved  bool     `json:"is_approved"`
}

// RoommateProfile is a roommate-seeker post with matching preferences
type RoommateProfile struct {
	ID          int
	UserID      int
	DisplayName string
	Age         int
	Location    string
	BudgetMin   float64
	BudgetMax   float64
	Amenities   []string
	Mood        string // one of quiet, studious, friendly, adventurous
	Hobbies     string
}

// AverageBudget is always the arithmetic mean of the min/max budget.
func (p RoommateProfile) AverageBudget() float64 {
	return (p.BudgetMin + p.BudgetMax) / 2
}

// MatchFactors is the stored per-factor breakdown of a computed match.
// It is persisted alongside the score so icebreaker generation can re-read
// which factors were strong without recomputing anything.
type MatchFactors struct {
	BudgetScore     float64  `json:"budget_score"`
	LocationScore   float64  `json:"location_score"`
	AmenityScore    float64  `json:"amenity_score"`
	MoodScore       float64  `json:"mood_score"`
	AgeScore        float64  `json:"age_score"`
	LocationMatch   bool     `json:"location_match"`
	MoodMatch       bool     `json:"mood_match"`
	SharedAmenities []string `json:"shared_amenities"`
}

// RoommateMatch pairs two profiles with their compatibility score.
// Rows are immutable once created; ProfileAID < ProfileBID always holds
// so each unordered pair exists at most once.
type RoommateMatch struct {
	ID         int
	ProfileAID int
	ProfileBID int
	Score      float64
	Factors    MatchFactors
	CreatedAt  time.Time
}

func (m *RoommateMatch) HasProfile(profileID int) bool {
	return m.ProfileAID == profileID || m.ProfileBID == profileID
}

// OtherProfileID returns the conversation partner's profile for the given side.
func (m *RoommateMatch) OtherProfileID(profileID int) (int, bool) {
	if m.ProfileAID == profileID {
		return m.ProfileBID, true
	}
	if m.ProfileBID == profileID {
		return m.ProfileAID, true
	}
	return 0, false
}

// FAQ is a canned question/answer pair for the similarity lookup.
type FAQ struct {
	ID       int
	Question string
	Answer   string
}
