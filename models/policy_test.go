package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInclusionPolicy_Admits(t *testing.T) {
	tests := []struct {
		policy   InclusionPolicy
		hasText  bool
		hasCover bool
		want     bool
	}{
		{IncludeRequireText, true, false, true},
		{IncludeRequireText, false, true, false},
		{IncludeRequireCover, false, true, true},
		{IncludeRequireCover, true, false, false},
		{IncludeRequireAny, false, false, false},
		{IncludeRequireAny, false, true, true},
		{IncludeRequireAny, true, false, true},
		{IncludeAlways, false, false, true},
	}
	for _, tt := range tests {
		got := tt.policy.Admits(tt.hasText, tt.hasCover)
		assert.Equal(t, tt.want, got, "%s text=%v cover=%v", tt.policy, tt.hasText, tt.hasCover)
	}
}

func TestParseInclusionPolicy(t *testing.T) {
	p, err := ParseInclusionPolicy("")
	require.NoError(t, err)
	assert.Equal(t, IncludeRequireText, p)

	p, err = ParseInclusionPolicy(" Cover ")
	require.NoError(t, err)
	assert.Equal(t, IncludeRequireCover, p)

	_, err = ParseInclusionPolicy("both")
	assert.Error(t, err)
}

func TestParseManifestMode(t *testing.T) {
	m, err := ParseManifestMode("")
	require.NoError(t, err)
	assert.Equal(t, ManifestTruncate, m)

	m, err = ParseManifestMode("APPEND")
	require.NoError(t, err)
	assert.Equal(t, ManifestAppend, m)

	_, err = ParseManifestMode("overwrite")
	assert.Error(t, err)
}
