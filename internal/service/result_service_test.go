package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultService_Bands(t *testing.T) {
	svc := NewResultService()

	tests := []struct {
		name     string
		testType string
		score    float64
		want     string
	}{
		{name: "low band start", testType: "procrastination", score: 0, want: "low procrastination tendency (score 0)"},
		{name: "below band boundary", testType: "procrastination", score: 14, want: "low procrastination tendency (score 14)"},
		{name: "at band boundary", testType: "procrastination", score: 15, want: "moderate procrastination tendency (score 15)"},
		{name: "high band", testType: "procrastination", score: 44, want: "high procrastination tendency (score 44)"},
		{name: "top band", testType: "procrastination", score: 90, want: "severe procrastination tendency (score 90)"},
		{name: "personality table", testType: "personality", score: 25, want: "balanced (score 25)"},
		{name: "unknown type falls back", testType: "mystery", score: 25, want: "medium (score 25)"},
		{name: "negative clamped", testType: "procrastination", score: -3, want: "low procrastination tendency (score 0)"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, svc.Evaluate(tc.testType, tc.score))
		})
	}
}
