package domain

import "time"

// UserInterestProfile is the derived interest vector for one user: an
// exponentially weighted aggregate of the embeddings the user engaged with.
// The vector is always defined; a zero vector means "no history".
type UserInterestProfile struct {
	UserID         string
	InterestVector []float32
	LastUpdatedAt  time.Time
}

// NewUserInterestProfile creates an empty profile with a zero interest vector
// of the given dimension.
func NewUserInterestProfile(userID string, dimension int) *UserInterestProfile {
	return &UserInterestProfile{
		UserID:         userID,
		InterestVector: make([]float32, dimension),
		LastUpdatedAt:  time.Now().UTC(),
	}
}

// HasHistory reports whether the profile carries any engagement signal.
func (p *UserInterestProfile) HasHistory() bool {
	for _, v := range p.InterestVector {
		if v != 0 {
			return true
		}
	}
	return false
}

// EngagementSignal identifies the kind of usage event that reinforced an
// instance and contributed to a user's interest vector.
type EngagementSignal string

const (
	SignalSearchSelection        EngagementSignal = "search_selection"
	SignalRecommendationAccepted EngagementSignal = "recommendation_accepted"
	SignalExplicitFeedback       EngagementSignal = "explicit_feedback"
)

// IsValidEngagementSignal checks if an EngagementSignal is a known value
func IsValidEngagementSignal(s EngagementSignal) bool {
	switch s {
	case SignalSearchSelection, SignalRecommendationAccepted, SignalExplicitFeedback:
		return true
	}
	return false
}

// Engagement is a persisted usage event linking a user to an instance.
type Engagement struct {
	ID         string
	UserID     string
	InstanceID string
	Signal     EngagementSignal
	Weight     float64
	CreatedAt  time.Time
}
