package resolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

func TestClassify(t *testing.T) {
	entries := []Entry{
		{Primary: "P12345", Secondary: []string{"Q99895", "Q00001"}},
		{Primary: "P0DOY2", Secondary: []string{"P0CG05"}},
		{Primary: "P0DOY3", Secondary: []string{"P0CG05"}},
		{Primary: "P0DOY2", Secondary: []string{"P0CG05"}},
		{Primary: "A00001", Secondary: []string{"A00002"}},
		{Primary: "A00002"},
	}

	tests := []struct {
		id         string
		wantType   mapping.ResolutionType
		wantIDs    []string
		confidence float64
	}{
		{"P12345", mapping.ResolutionPrimary, []string{"P12345"}, 1.0},
		{"Q99895", mapping.ResolutionSecondary, []string{"P12345"}, 0.9},
		{"P0CG05", mapping.ResolutionDemerged, []string{"P0DOY2", "P0DOY3"}, 0.85},
		{"A00002", mapping.ResolutionPrimary, []string{"A00002"}, 1.0},
		{"X99999", mapping.ResolutionObsolete, []string{}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rec := Classify(tt.id, entries, nil)
			assert.Equal(t, tt.id, rec.InputID)
			assert.Equal(t, tt.wantType, rec.Type)
			assert.Equal(t, tt.wantIDs, rec.ResolvedIDs)
			assert.Equal(t, tt.confidence, rec.Confidence)
			assert.False(t, rec.ResolutionFailed)
			require.NoError(t, rec.Validate())
		})
	}
}

func TestClassify_EmptyResponse(t *testing.T) {
	rec := Classify("P12345", nil, nil)
	assert.Equal(t, mapping.ResolutionObsolete, rec.Type)
	assert.Empty(t, rec.ResolvedIDs)
	assert.Zero(t, rec.Confidence)
}

func TestFailedRecord(t *testing.T) {
	rec := FailedRecord("P12345", DiagnosticCircuitOpen)
	assert.Equal(t, mapping.ResolutionObsolete, rec.Type)
	assert.True(t, rec.ResolutionFailed)
	assert.Equal(t, DiagnosticCircuitOpen, rec.Diagnostic)
	require.NoError(t, rec.Validate())
}

//Personal.AI order the ending
