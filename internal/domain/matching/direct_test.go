package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/internal/domain/identifier"
	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

func ids(t *testing.T, composite bool, raws ...string) []mapping.Identifier {
	t.Helper()
	n := identifier.NewNormalizer(identifier.DefaultConfig(), nil)
	out := make([]mapping.Identifier, 0, len(raws))
	for _, raw := range raws {
		var (
			id  mapping.Identifier
			err error
		)
		if composite {
			id, err = n.NormalizeComposite(raw, "")
		} else {
			id, err = n.Normalize(raw, "")
		}
		require.NoError(t, err)
		out = append(out, id)
	}
	return out
}

func rawOf(list []mapping.Identifier) []string {
	out := make([]string, 0, len(list))
	for _, id := range list {
		out = append(out, id.Raw)
	}
	return out
}

func TestMatcher_DirectWhole(t *testing.T) {
	m := NewMatcher(nil)

	out, err := m.Match(
		ids(t, false, "P12345", "Q99895", "P0CG05"),
		ids(t, false, "P12345", "O00000"),
		MatchOptions{Stage: 1, Mode: mapping.MatchModeOneToOne, CompositeHandling: mapping.CompositeMatchWhole},
	)
	require.NoError(t, err)

	require.Len(t, out.Matches, 1)
	assert.Equal(t, mapping.Match{SourceID: "P12345", TargetID: "P12345", Stage: 1, Method: mapping.MethodDirect, Confidence: 1.0}, out.Matches[0])
	assert.Equal(t, []string{"Q99895", "P0CG05"}, rawOf(out.UnmappedSource))
	assert.Equal(t, []string{"O00000"}, rawOf(out.UnmappedTarget))
}

func TestMatcher_CompositeSplitAndMatch(t *testing.T) {
	m := NewMatcher(nil)

	out, err := m.Match(
		ids(t, true, "Q14213_Q8NEV9"),
		ids(t, false, "Q8NEV9"),
		MatchOptions{Stage: 2, Mode: mapping.MatchModeManyToMany, CompositeHandling: mapping.CompositeSplitAndMatch},
	)
	require.NoError(t, err)

	require.Len(t, out.Matches, 1)
	assert.Equal(t, "Q14213_Q8NEV9", out.Matches[0].SourceID)
	assert.Equal(t, "Q8NEV9", out.Matches[0].TargetID)
	assert.Equal(t, mapping.MethodComposite, out.Matches[0].Method)
	assert.Equal(t, 0.95, out.Matches[0].Confidence)
	assert.Empty(t, out.UnmappedSource)
	assert.Empty(t, out.UnmappedTarget)
}

func TestMatcher_CompositeMatchWholeDoesNotSplit(t *testing.T) {
	m := NewMatcher(nil)

	out, err := m.Match(
		ids(t, true, "Q14213_Q8NEV9"),
		ids(t, false, "Q8NEV9"),
		MatchOptions{Stage: 1, Mode: mapping.MatchModeManyToMany, CompositeHandling: mapping.CompositeMatchWhole},
	)
	require.NoError(t, err)
	assert.Empty(t, out.Matches)
	assert.Equal(t, []string{"Q14213_Q8NEV9"}, rawOf(out.UnmappedSource))
}

func TestMatcher_ManyToManyEmitsPerDistinctTarget(t *testing.T) {
	m := NewMatcher(nil)

	out, err := m.Match(
		ids(t, true, "Q14213_Q8NEV9_Q8NEV9"),
		ids(t, false, "Q14213", "Q8NEV9"),
		MatchOptions{Stage: 1, Mode: mapping.MatchModeManyToMany, CompositeHandling: mapping.CompositeSplitAndMatch},
	)
	require.NoError(t, err)

	require.Len(t, out.Matches, 2)
	assert.Equal(t, "Q14213", out.Matches[0].TargetID)
	assert.Equal(t, "Q8NEV9", out.Matches[1].TargetID)
}

func TestMatcher_OneToOnePrefersWholeOverSplit(t *testing.T) {
	m := NewMatcher(nil)

	out, err := m.Match(
		ids(t, true, "A_B"),
		ids(t, false, "B", "A_B", "A"),
		MatchOptions{Stage: 1, Mode: mapping.MatchModeOneToOne, CompositeHandling: mapping.CompositeBoth},
	)
	require.NoError(t, err)

	require.Len(t, out.Matches, 1)
	assert.Equal(t, "A_B", out.Matches[0].TargetID)
	assert.Equal(t, mapping.MethodDirect, out.Matches[0].Method)
	assert.Equal(t, []string{"B", "A"}, rawOf(out.UnmappedTarget))
}

func TestMatcher_OneToOneSplitTieGoesToFirstPart(t *testing.T) {
	m := NewMatcher(nil)

	out, err := m.Match(
		ids(t, true, "A_B"),
		ids(t, false, "B", "A"),
		MatchOptions{Stage: 1, Mode: mapping.MatchModeOneToOne, CompositeHandling: mapping.CompositeSplitAndMatch},
	)
	require.NoError(t, err)

	require.Len(t, out.Matches, 1)
	assert.Equal(t, "A", out.Matches[0].TargetID)
}

func TestMatcher_Deterministic(t *testing.T) {
	m := NewMatcher(nil)
	src := ids(t, true, "A_B", "C", "D_E")
	tgt := ids(t, false, "E", "C", "A", "B")
	opts := MatchOptions{Stage: 1, Mode: mapping.MatchModeManyToMany, CompositeHandling: mapping.CompositeBoth}

	first, err := m.Match(src, tgt, opts)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := m.Match(src, tgt, opts)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMatcher_InvalidOptions(t *testing.T) {
	m := NewMatcher(nil)

	_, err := m.Match(nil, nil, MatchOptions{Stage: 1, Mode: "sideways", CompositeHandling: mapping.CompositeBoth})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownMatchMode))

	_, err = m.Match(nil, nil, MatchOptions{Stage: 1, Mode: mapping.MatchModeOneToOne, CompositeHandling: "explode"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownCompositeHandling))

	_, err = m.Match(nil, nil, MatchOptions{Stage: 0, Mode: mapping.MatchModeOneToOne, CompositeHandling: mapping.CompositeBoth})
	assert.Error(t, err)
}

//Personal.AI order the ending
