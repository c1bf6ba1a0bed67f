package main

import (
	"math"
	"sort"
	"strings"
)

// Haversine formula for distance in km
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371 // Earth radius in km
	dLat := (lat2 - lat1) * (math.Pi / 180)
	dLon := (lon2 - lon1) * (math.Pi / 180)
	lat1 = lat1 * (math.Pi / 180)
	lat2 = lat2 * (math.Pi / 180)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(lat1)*math.Cos(lat2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// round2 rounds to two decimal places, the precision scores are stored at.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// normalizeAmenities lowercases and dedupes a declared amenity list.
func normalizeAmenities(amenities []string) map[string]bool {
	set := make(map[string]bool, len(amenities))
	for _, a := range amenities {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			set[a] = true
		}
	}
	return set
}

// tokenize splits free text into lowercase word tokens for the FAQ matcher.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,!?;:\"'()")
		if len(f) > 1 {
			tokens[f] = true
		}
	}
	return tokens
}

// tokenSimilarity is the Jaccard similarity of the word sets of two strings.
func tokenSimilarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// dormFeatureVector is the feature space the nearest-neighbor bonus works in.
func dormFeatureVector(d Dorm) []float64 {
	return []float64{d.Price, d.Rating, float64(len(d.Amenities)), d.LocationLat, d.LocationLon}
}

func meanVector(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i := range mean {
			mean[i] += v[i]
		}
	}
	for i := range mean {
		mean[i] /= float64(len(vectors))
	}
	return mean
}

func euclideanDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// nearestDormIDs fits on the candidate set and returns the IDs of the k
// candidates closest to the query vector. Ties break on lower dorm ID.
func nearestDormIDs(candidates []Dorm, query []float64, k int) map[int]bool {
	if len(query) == 0 || k <= 0 {
		return nil
	}
	type neighbor struct {
		id   int
		dist float64
	}
	neighbors := make([]neighbor, 0, len(candidates))
	for _, d := range candidates {
		neighbors = append(neighbors, neighbor{id: d.ID, dist: euclideanDistance(dormFeatureVector(d), query)})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].dist != neighbors[j].dist {
			return neighbors[i].dist < neighbors[j].dist
		}
		return neighbors[i].id < neighbors[j].id
	})
	if k > len(neighbors) {
		k = len(neighbors)
	}
	nearest := make(map[int]bool, k)
	for _, n := range neighbors[:k] {
		nearest[n.id] = true
	}
	return nearest
}

// topCollaborativeIDs keeps the topN listings ranked by how many other
// students with overlapping favorites also favorited them.
func topCollaborativeIDs(coFavoriters map[int]int, topN int) map[int]bool {
	if len(coFavoriters) == 0 || topN <= 0 {
		return nil
	}
	type ranked struct {
		id    int
		count int
	}
	all := make([]ranked, 0, len(coFavoriters))
	for id, count := range coFavoriters {
		all = append(all, ranked{id: id, count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].id < all[j].id
	})
	if topN > len(all) {
		topN = len(all)
	}
	top := make(map[int]bool, topN)
	for _, r := range all[:topN] {
		top[r.id] = true
	}
	return top
}
