package main

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
)

// Factor weights. They sum to 100 so the final score doubles as a percentage.
const (
	weightBudget    = 30.0
	weightLocation  = 25.0
	weightAmenities = 20.0
	weightMood      = 15.0
	weightAge       = 10.0

	totalWeight = weightBudget + weightLocation + weightAmenities + weightMood + weightAge
)

// DefaultMatchThreshold is the minimum score kept by candidate search when
// the caller doesn't supply one.
const DefaultMatchThreshold = 70.0

// moodBucket groups the fixed mood categories into coarse buckets. Moods in
// the same bucket earn half the mood weight when they don't match exactly.
func moodBucket(mood string) string {
	switch strings.ToLower(strings.TrimSpace(mood)) {
	case "quiet", "studious":
		return "calm"
	case "friendly", "adventurous":
		return "social"
	}
	return ""
}

// compatibilityScore computes the weighted 0-100 match between two roommate
// profiles and the per-factor breakdown stored with the match.
// The result is symmetric in its arguments.
func compatibilityScore(a, b RoommateProfile) (float64, MatchFactors) {
	var f MatchFactors

	// Budget: weight scaled by how much of the combined range overlaps.
	overlapLo := math.Max(a.BudgetMin, b.BudgetMin)
	overlapHi := math.Min(a.BudgetMax, b.BudgetMax)
	unionLo := math.Min(a.BudgetMin, b.BudgetMin)
	unionHi := math.Max(a.BudgetMax, b.BudgetMax)
	if overlapHi > overlapLo && unionHi > unionLo {
		f.BudgetScore = weightBudget * (overlapHi - overlapLo) / (unionHi - unionLo)
	}

	// Location: exact case-insensitive match only, no partial credit.
	if strings.EqualFold(strings.TrimSpace(a.Location), strings.TrimSpace(b.Location)) {
		f.LocationScore = weightLocation
		f.LocationMatch = true
	}

	// Amenities: Jaccard overlap when both sides declared at least one.
	setA := normalizeAmenities(a.Amenities)
	setB := normalizeAmenities(b.Amenities)
	if len(setA) > 0 && len(setB) > 0 {
		inter := 0
		for amenity := range setA {
			if setB[amenity] {
				inter++
				f.SharedAmenities = append(f.SharedAmenities, amenity)
			}
		}
		union := len(setA) + len(setB) - inter
		if union > 0 {
			f.AmenityScore = weightAmenities * float64(inter) / float64(union)
		}
	}
	sort.Strings(f.SharedAmenities)

	// Mood: full weight on exact category match, half within the same bucket.
	if strings.EqualFold(strings.TrimSpace(a.Mood), strings.TrimSpace(b.Mood)) && strings.TrimSpace(a.Mood) != "" {
		f.MoodScore = weightMood
		f.MoodMatch = true
	} else if ba, bb := moodBucket(a.Mood), moodBucket(b.Mood); ba != "" && ba == bb {
		f.MoodScore = weightMood / 2
	}

	// Age: full weight within 2 years, half within 5.
	ageDiff := a.Age - b.Age
	if ageDiff < 0 {
		ageDiff = -ageDiff
	}
	switch {
	case ageDiff <= 2:
		f.AgeScore = weightAge
	case ageDiff <= 5:
		f.AgeScore = weightAge / 2
	}

	sum := f.BudgetScore + f.LocationScore + f.AmenityScore + f.MoodScore + f.AgeScore
	score := (sum / totalWeight) * 100
	if score > 100 {
		score = 100
	}
	return round2(score), f
}

// icebreakerCandidates builds the templated conversation openers whose
// factors were strong in the stored match. The generic fallback citing the
// numeric score is used only when nothing else qualifies.
func icebreakerCandidates(partner RoommateProfile, score float64, f MatchFactors) []string {
	var candidates []string

	if f.BudgetScore >= weightBudget*0.8 {
		candidates = append(candidates, fmt.Sprintf(
			"You and %s have almost the same budget (around ₱%.0f). Ask which places they've shortlisted so far!",
			partner.DisplayName, partner.AverageBudget()))
	}
	if f.LocationMatch {
		candidates = append(candidates, fmt.Sprintf(
			"You're both looking for a place around %s. Ask %s which spots they've already checked out!",
			partner.Location, partner.DisplayName))
	}
	if f.MoodMatch {
		candidates = append(candidates, fmt.Sprintf(
			"You're both the %s type. Sounds like living together could actually work — say hi to %s!",
			strings.ToLower(partner.Mood), partner.DisplayName))
	}
	if strings.TrimSpace(partner.Hobbies) != "" {
		candidates = append(candidates, fmt.Sprintf(
			"%s is into %s. Ask them about it to break the ice!",
			partner.DisplayName, strings.TrimSpace(partner.Hobbies)))
	}
	if len(f.SharedAmenities) >= 2 {
		candidates = append(candidates, fmt.Sprintf(
			"You both want %s and %s in your next place. Compare your must-have lists with %s!",
			f.SharedAmenities[0], f.SharedAmenities[1], partner.DisplayName))
	}

	if len(candidates) == 0 {
		candidates = append(candidates, fmt.Sprintf(
			"You matched with %s at %.2f%% compatibility. Send a quick hello and see where it goes!",
			partner.DisplayName, score))
	}
	return candidates
}

// pickIcebreaker chooses one opener uniformly at random. The RNG is injected
// so callers (and tests) control the randomness.
func pickIcebreaker(candidates []string, rng *rand.Rand) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rng.Intn(len(candidates))]
}
