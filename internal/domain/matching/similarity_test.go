package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

func TestLevenshteinSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, levenshteinSimilarity("", ""))
	assert.Equal(t, 1.0, levenshteinSimilarity("P12345", "P12345"))
	assert.InDelta(t, 5.0/6.0, levenshteinSimilarity("P12345", "P12346"), 1e-9)
	assert.Equal(t, 0.0, levenshteinSimilarity("abc", "xyz"))
}

func TestSimilarityMatcher_AlgorithmsIdentityScoresOne(t *testing.T) {
	for _, alg := range []Algorithm{AlgorithmJaroWinkler, AlgorithmSorensenDice, AlgorithmJaccard, AlgorithmLevenshtein} {
		sm, err := NewSimilarityMatcher(SimilarityConfig{Algorithm: alg, Threshold: 0.5}, nil)
		require.NoError(t, err, alg)
		assert.InDelta(t, 1.0, sm.Similarity("glucose", "GLUCOSE"), 1e-9, alg)
	}
}

func TestSimilarityMatcher_OneToOne(t *testing.T) {
	sm, err := NewSimilarityMatcher(SimilarityConfig{Algorithm: AlgorithmLevenshtein, Threshold: 0.8}, nil)
	require.NoError(t, err)

	out, err := sm.Match(
		ids(t, false, "HMDB0000122", "ZZZ"),
		ids(t, false, "HMDB00122", "HMDB0000123", "HMDB0000122XY"),
		3, mapping.MatchModeOneToOne,
	)
	require.NoError(t, err)

	require.Len(t, out.Matches, 1)
	m := out.Matches[0]
	assert.Equal(t, "HMDB0000122", m.SourceID)
	assert.Equal(t, "HMDB0000123", m.TargetID)
	assert.Equal(t, 3, m.Stage)
	assert.Equal(t, mapping.MethodSimilarity, m.Method)
	assert.InDelta(t, 10.0/11.0, m.Confidence, 1e-9)
	assert.Equal(t, []string{"ZZZ"}, rawOf(out.UnmappedSource))
}

func TestSimilarityMatcher_ManyToManyCap(t *testing.T) {
	sm, err := NewSimilarityMatcher(SimilarityConfig{Algorithm: AlgorithmLevenshtein, Threshold: 0.5, MaxCandidates: 2}, nil)
	require.NoError(t, err)

	out, err := sm.Match(
		ids(t, false, "ABCD"),
		ids(t, false, "ABCE", "ABCD1", "ABXY", "QQQQ"),
		1, mapping.MatchModeManyToMany,
	)
	require.NoError(t, err)
	require.Len(t, out.Matches, 2)
	for _, m := range out.Matches {
		assert.GreaterOrEqual(t, m.Confidence, 0.5)
		assert.LessOrEqual(t, m.Confidence, 1.0)
	}
}

func TestSimilarityConfig_Validate(t *testing.T) {
	_, err := NewSimilarityMatcher(SimilarityConfig{Algorithm: "soundex", Threshold: 0.5}, nil)
	assert.True(t, errors.IsConfiguration(err))

	_, err = NewSimilarityMatcher(SimilarityConfig{Algorithm: AlgorithmJaccard, Threshold: 1.5}, nil)
	assert.True(t, errors.IsConfiguration(err))

	assert.NoError(t, DefaultSimilarityConfig().Validate())
}

//Personal.AI order the ending
