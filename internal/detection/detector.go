package detection

import (
	"strings"

	"github.com/psicapp/riskwatch/internal/models"
)

// Detector scans free text for risk indicator phrases
type Detector struct {
	phrases []string // lowercased, declared order
}

// NewDetector creates a detector for the given phrases. Matches are
// reported in the order the phrases are given here.
func NewDetector(phrases []string) *Detector {
	lowered := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}
	return &Detector{phrases: lowered}
}

// Phrases returns the configured phrases in match order
func (d *Detector) Phrases() []string {
	out := make([]string, len(d.phrases))
	copy(out, d.phrases)
	return out
}

// Detect reports every configured phrase contained in message.
// Plain substring containment: no tokenization, no negation handling.
func (d *Detector) Detect(message string) models.Detection {
	content := strings.ToLower(message)

	detected := []string{}
	for _, phrase := range d.phrases {
		if strings.Contains(content, phrase) {
			detected = append(detected, phrase)
		}
	}

	return models.Detection{
		IsAtRisk:         len(detected) > 0,
		DetectedKeywords: detected,
	}
}
