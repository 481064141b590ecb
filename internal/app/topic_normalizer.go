package app

import (
	"strings"

	"studymate/internal/pkg/similarity"
)

const DefaultTopicMatchThreshold = 0.8

// TopicNormalizer folds near-duplicate topic names ("Ohm's Law", "Ohms law")
// onto the spelling already in a user's vocabulary.
type TopicNormalizer struct {
	Threshold float64
}

func NewTopicNormalizer(threshold float64) TopicNormalizer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTopicMatchThreshold
	}
	return TopicNormalizer{Threshold: threshold}
}

// Normalize returns the vocabulary entry that topic matches, or topic
// itself. Applying it twice gives the same result as applying it once.
func (n TopicNormalizer) Normalize(topic string, vocabulary []string) string {
	topic = strings.TrimSpace(topic)
	for _, v := range vocabulary {
		if strings.EqualFold(strings.TrimSpace(v), topic) {
			return v
		}
	}
	if best, score, ok := similarity.BestMatch(topic, vocabulary); ok && score > n.Threshold {
		return best
	}
	return topic
}
