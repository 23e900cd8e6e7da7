package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInstance() *KnowledgeInstance {
	return NewKnowledgeInstance(
		"inst-1", "dept-1", "cat-1",
		DIKWKnowledge,
		[]float32{0.1, 0.2, 0.3},
		[]string{"file-1"},
		time.Now().UTC(),
	)
}

func TestValidateInstance(t *testing.T) {
	t.Run("valid instance passes", func(t *testing.T) {
		require.NoError(t, ValidateInstance(validInstance(), 3))
	})

	t.Run("nil instance rejected", func(t *testing.T) {
		err := ValidateInstance(nil, 3)
		require.Error(t, err)
	})

	t.Run("missing id rejected", func(t *testing.T) {
		k := validInstance()
		k.ID = ""
		assert.ErrorIs(t, ValidateInstance(k, 3), ErrMissingInstanceID)
	})

	t.Run("wrong dimension rejected", func(t *testing.T) {
		k := validInstance()
		assert.ErrorIs(t, ValidateInstance(k, 5), ErrDimensionMismatch)
	})

	t.Run("empty source files rejected", func(t *testing.T) {
		k := validInstance()
		k.SourceFileIDs = nil
		assert.ErrorIs(t, ValidateInstance(k, 3), ErrEmptySourceFiles)
	})

	t.Run("unknown dikw level rejected", func(t *testing.T) {
		k := validInstance()
		k.DIKWLevel = "opinion"
		assert.ErrorIs(t, ValidateInstance(k, 3), ErrInvalidDIKWLevel)
	})

	t.Run("decay score out of range rejected", func(t *testing.T) {
		k := validInstance()
		k.DecayScore = 1.2
		require.Error(t, ValidateInstance(k, 3))
	})
}

func TestNewKnowledgeInstance(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	k := NewKnowledgeInstance("inst-1", "dept-1", "cat-1", DIKWData, []float32{1, 0}, []string{"f1"}, created)

	assert.Equal(t, created, k.LastReinforcedAt)
	assert.Equal(t, 1.0, k.DecayScore)
}

func TestDIKWLevel_Rank(t *testing.T) {
	assert.Less(t, DIKWData.Rank(), DIKWInformation.Rank())
	assert.Less(t, DIKWInformation.Rank(), DIKWKnowledge.Rank())
	assert.Less(t, DIKWKnowledge.Rank(), DIKWWisdom.Rank())
	assert.Equal(t, 0, DIKWLevel("opinion").Rank())
}

func TestIsValidDIKWLevel(t *testing.T) {
	for _, l := range []DIKWLevel{DIKWData, DIKWInformation, DIKWKnowledge, DIKWWisdom} {
		assert.True(t, IsValidDIKWLevel(l))
	}
	assert.False(t, IsValidDIKWLevel(""))
	assert.False(t, IsValidDIKWLevel("Wisdom"))
}
