package agent

// Strategy scores a request for one agent type.
type Strategy interface {
	ID() string
	Score(text string) int
}

// Classification is the outcome of choosing an agent for a request.
type Classification struct {
	AgentID string `json:"agentId"`
	Score   int    `json:"score"`
	Reason  string `json:"reason"`
}

// Classification reasons.
const (
	ReasonExplicit = "explicit"
	ReasonScored   = "scored"
	ReasonDefault  = "default"
)

// Classifier picks the highest-scoring strategy at or above the threshold.
// Strategies are held in priority order and an equal score goes to the
// earlier one, so query intent wins ties against action intent.
type Classifier struct {
	strategies []Strategy
	threshold  int
	fallback   string
}

// NewClassifier creates a classifier. A threshold below 1 is raised to 1 so
// that a zero score never selects an agent.
func NewClassifier(threshold int, fallback string, strategies ...Strategy) *Classifier {
	if threshold < 1 {
		threshold = 1
	}
	return &Classifier{strategies: strategies, threshold: threshold, fallback: fallback}
}

// Classify chooses an agent ID for text.
func (c *Classifier) Classify(text string) Classification {
	best := Classification{AgentID: c.fallback, Reason: ReasonDefault}
	for _, s := range c.strategies {
		score := s.Score(text)
		if score >= c.threshold && score > best.Score {
			best = Classification{AgentID: s.ID(), Score: score, Reason: ReasonScored}
		}
	}
	return best
}
