package learning

import (
	"fmt"
	"sort"
	"time"
)

// RecommendationRequest narrows which events feed a recommendation run.
type RecommendationRequest struct {
	Industry    string `json:"industry,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Recommendation is a derived, read-only view: recomputed from stored
// events on every request, never persisted.
type Recommendation struct {
	Kind       string  `json:"kind"`
	Value      string  `json:"value"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
	SampleSize int     `json:"sampleSize"`
}

// IndustryInsight summarizes activity for one industry.
type IndustryInsight struct {
	Industry           string    `json:"industry"`
	EventCount         int       `json:"eventCount"`
	TopContentTypes    []string  `json:"topContentTypes"`
	TopProviders       []string  `json:"topProviders"`
	ResearchQueries    int       `json:"researchQueries"`
	CampaignsCompleted int       `json:"campaignsCompleted"`
	GeneratedAt        time.Time `json:"generatedAt"`
}

// Recommendations aggregates content-generation events matching the request
// and surfaces the dominant provider, tone and content type.
func (e *Engine) Recommendations(req RecommendationRequest) []Recommendation {
	providers := make(map[string]int)
	tones := make(map[string]int)
	contentTypes := make(map[string]int)
	total := 0

	for _, ev := range e.snapshot() {
		data := ev.Data.ContentGenerated
		if data == nil {
			continue
		}
		if req.Industry != "" && data.Industry != req.Industry {
			continue
		}
		if req.ContentType != "" && data.ContentType != req.ContentType {
			continue
		}
		total++
		if data.Provider != "" {
			providers[data.Provider]++
		}
		if data.Tone != "" {
			tones[data.Tone]++
		}
		if data.ContentType != "" {
			contentTypes[data.ContentType]++
		}
	}

	if total == 0 {
		return nil
	}

	var recs []Recommendation
	if value, count := topEntry(providers); value != "" {
		recs = append(recs, Recommendation{
			Kind:       "provider",
			Value:      value,
			Rationale:  fmt.Sprintf("used in %d of %d matching generations", count, total),
			Confidence: float64(count) / float64(total),
			SampleSize: total,
		})
	}
	if value, count := topEntry(tones); value != "" {
		recs = append(recs, Recommendation{
			Kind:       "tone",
			Value:      value,
			Rationale:  fmt.Sprintf("chosen in %d of %d matching generations", count, total),
			Confidence: float64(count) / float64(total),
			SampleSize: total,
		})
	}
	if req.ContentType == "" {
		if value, count := topEntry(contentTypes); value != "" {
			recs = append(recs, Recommendation{
				Kind:       "content_type",
				Value:      value,
				Rationale:  fmt.Sprintf("generated %d of %d times", count, total),
				Confidence: float64(count) / float64(total),
				SampleSize: total,
			})
		}
	}
	return recs
}

// Insights computes the per-industry view on demand.
func (e *Engine) Insights(industry string) IndustryInsight {
	insight := IndustryInsight{
		Industry:    industry,
		GeneratedAt: time.Now().UTC(),
	}

	providers := make(map[string]int)
	contentTypes := make(map[string]int)

	for _, ev := range e.snapshot() {
		if ev.industry() != industry {
			continue
		}
		insight.EventCount++

		switch {
		case ev.Data.ContentGenerated != nil:
			providers[ev.Data.ContentGenerated.Provider]++
			contentTypes[ev.Data.ContentGenerated.ContentType]++
		case ev.Data.ResearchQuery != nil:
			insight.ResearchQueries++
			providers[ev.Data.ResearchQuery.Provider]++
		case ev.Data.CampaignCompleted != nil:
			insight.CampaignsCompleted++
		}
	}

	insight.TopProviders = topN(providers, 3)
	insight.TopContentTypes = topN(contentTypes, 3)
	return insight
}

func topEntry(counts map[string]int) (string, int) {
	best, bestCount := "", 0
	for k, v := range counts {
		if v > bestCount || (v == bestCount && k < best) {
			best, bestCount = k, v
		}
	}
	return best, bestCount
}

func topN(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
