package domain

import (
	"time"
)

// DIKWLevel places an instance on the data/information/knowledge/wisdom
// pyramid. Higher levels represent more distilled content and decay slower.
type DIKWLevel string

const (
	DIKWData        DIKWLevel = "data"
	DIKWInformation DIKWLevel = "information"
	DIKWKnowledge   DIKWLevel = "knowledge"
	DIKWWisdom      DIKWLevel = "wisdom"
)

// Rank returns the ordinal position of the level, with data lowest.
// Unknown levels rank below data.
func (l DIKWLevel) Rank() int {
	switch l {
	case DIKWData:
		return 1
	case DIKWInformation:
		return 2
	case DIKWKnowledge:
		return 3
	case DIKWWisdom:
		return 4
	}
	return 0
}

// IsValidDIKWLevel checks if a DIKWLevel is one of the known values
func IsValidDIKWLevel(l DIKWLevel) bool {
	switch l {
	case DIKWData, DIKWInformation, DIKWKnowledge, DIKWWisdom:
		return true
	}
	return false
}

// KnowledgeInstance is a unit of retrievable knowledge: an embedding plus the
// structured metadata used for filtering and decay scoring.
type KnowledgeInstance struct {
	ID               string
	Embedding        []float32
	DepartmentID     string
	CategoryID       string
	DIKWLevel        DIKWLevel
	SourceFileIDs    []string
	CreatedAt        time.Time
	LastReinforcedAt time.Time
	DecayScore       float64 // [0,1], 1 = fully fresh; written only by the decay scorer
}

// NewKnowledgeInstance creates a fully fresh KnowledgeInstance.
func NewKnowledgeInstance(
	id, departmentID, categoryID string,
	level DIKWLevel,
	embedding []float32,
	sourceFileIDs []string,
	createdAt time.Time,
) *KnowledgeInstance {
	return &KnowledgeInstance{
		ID:               id,
		Embedding:        embedding,
		DepartmentID:     departmentID,
		CategoryID:       categoryID,
		DIKWLevel:        level,
		SourceFileIDs:    sourceFileIDs,
		CreatedAt:        createdAt,
		LastReinforcedAt: createdAt,
		DecayScore:       1.0,
	}
}

// ValidateInstance validates a KnowledgeInstance against the configured
// embedding dimension. All violations are INVALID_ARGUMENT: they originate
// from the ingestion pipeline and are never retried.
func ValidateInstance(k *KnowledgeInstance, dimension int) error {
	if k == nil {
		return NewDomainError(ErrCodeInvalidArgument, "instance cannot be nil")
	}
	if k.ID == "" {
		return ErrMissingInstanceID
	}
	if len(k.Embedding) != dimension {
		return ErrDimensionMismatch
	}
	if len(k.SourceFileIDs) == 0 {
		return ErrEmptySourceFiles
	}
	if !IsValidDIKWLevel(k.DIKWLevel) {
		return ErrInvalidDIKWLevel
	}
	if k.DecayScore < 0 || k.DecayScore > 1 {
		return NewDomainError(ErrCodeInvalidArgument, "decay score out of [0,1]")
	}
	return nil
}
