package domain

// SearchFilters restrict the candidate set before similarity ranking.
// Empty fields match everything; DIKWLevel is a pointer so the zero filter
// does not accidentally pin a level.
type SearchFilters struct {
	DepartmentID string
	CategoryID   string
	DIKWLevel    *DIKWLevel
}

// Matches reports whether an instance passes the filters.
func (f SearchFilters) Matches(k *KnowledgeInstance) bool {
	if f.DepartmentID != "" && k.DepartmentID != f.DepartmentID {
		return false
	}
	if f.CategoryID != "" && k.CategoryID != f.CategoryID {
		return false
	}
	if f.DIKWLevel != nil && k.DIKWLevel != *f.DIKWLevel {
		return false
	}
	return true
}

// SearchQuery is an ephemeral top-K similarity query.
type SearchQuery struct {
	Vector  []float32
	Filters SearchFilters
	TopK    int
}

// DefaultTopK is used when a query leaves TopK unset.
const DefaultTopK = 10

// RecommendationReason names the signal that dominated a recommendation.
type RecommendationReason string

const (
	ReasonInterest  RecommendationReason = "interest"
	ReasonFreshness RecommendationReason = "freshness"
)

// Recommendation is an ephemeral ranked push candidate.
type Recommendation struct {
	InstanceID string
	Score      float64
	Reason     RecommendationReason
}
