package service

import (
	"fmt"
	"sort"
)

// ResultService maps a completed session's total score to a reported result
// label. The mapping is a per-test-type band table so new questionnaires can
// ship their own rubric without touching the engine; text answers contribute
// nothing to the total until an explicit rubric exists.
type ResultService interface {
	Evaluate(testType string, totalScore float64) string
}

// ScoreBand labels every total at or above Min, up to the next band's Min.
type ScoreBand struct {
	Min   float64
	Label string
}

type resultService struct {
	bands map[string][]ScoreBand
}

// Default bands for the built-in questionnaires. Bands are kept sorted by Min
// ascending; Evaluate picks the highest band the score reaches.
var defaultBands = map[string][]ScoreBand{
	"procrastination": {
		{Min: 0, Label: "low procrastination tendency"},
		{Min: 15, Label: "moderate procrastination tendency"},
		{Min: 30, Label: "high procrastination tendency"},
		{Min: 45, Label: "severe procrastination tendency"},
	},
	"personality": {
		{Min: 0, Label: "reserved"},
		{Min: 20, Label: "balanced"},
		{Min: 40, Label: "expressive"},
	},
}

var fallbackBands = []ScoreBand{
	{Min: 0, Label: "low"},
	{Min: 20, Label: "medium"},
	{Min: 40, Label: "high"},
}

func NewResultService() ResultService {
	bands := make(map[string][]ScoreBand, len(defaultBands))
	for testType, tb := range defaultBands {
		sorted := make([]ScoreBand, len(tb))
		copy(sorted, tb)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })
		bands[testType] = sorted
	}
	return &resultService{bands: bands}
}

func (s *resultService) Evaluate(testType string, totalScore float64) string {
	if totalScore < 0 {
		totalScore = 0
	}
	bands, ok := s.bands[testType]
	if !ok {
		bands = fallbackBands
	}
	label := bands[0].Label
	for _, b := range bands {
		if totalScore >= b.Min {
			label = b.Label
		}
	}
	return fmt.Sprintf("%s (score %.0f)", label, totalScore)
}
