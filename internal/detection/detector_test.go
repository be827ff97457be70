package detection

import (
	"testing"

	"github.com/psicapp/riskwatch/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDetector_Detect(t *testing.T) {
	detector := NewDetector(config.DefaultRiskKeywords)

	tests := []struct {
		name     string
		message  string
		expected []string
	}{
		{
			name:     "Two phrases in list order",
			message:  "ya no aguanto más y quiero desaparecer para siempre",
			expected: []string{"ya no aguanto más", "desaparecer para siempre"},
		},
		{
			name:     "Case insensitive",
			message:  "A veces pienso en el SUICIDIO",
			expected: []string{"suicidio"},
		},
		{
			name:     "List order, not message order",
			message:  "mejor morir, no quiero vivir",
			expected: []string{"no quiero vivir", "mejor morir"},
		},
		{
			name:     "Embedded in a longer word still matches",
			message:  "antisuicidiologia",
			expected: []string{"suicidio"},
		},
		{
			name:     "Overlapping phrases are all reported",
			message:  "quiero suicidarme",
			expected: []string{"suicidarme"},
		},
		{
			name:     "No indicators",
			message:  "Hoy tuve un buen día en la universidad",
			expected: []string{},
		},
		{
			name:     "Empty message",
			message:  "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := detector.Detect(tt.message)
			assert.Equal(t, tt.expected, result.DetectedKeywords)
			assert.Equal(t, len(tt.expected) > 0, result.IsAtRisk)
		})
	}
}

func TestNewDetector_NormalizesPhrases(t *testing.T) {
	detector := NewDetector([]string{"  Terminar Con Todo ", "", "MATARME"})

	assert.Equal(t, []string{"terminar con todo", "matarme"}, detector.Phrases())

	result := detector.Detect("quiero terminar con todo")
	assert.True(t, result.IsAtRisk)
	assert.Equal(t, []string{"terminar con todo"}, result.DetectedKeywords)
}
