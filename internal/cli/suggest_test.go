// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggestSlashCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/hlep", "/help"},
		{"/sesions", "/sessions"},
		{"/RENAM", "/rename"},
		{"/regenrate", "/regenerate"},
		{"/help", ""},       // exact
		{"/x", ""},          // too short
		{"/frobnicate", ""}, // nothing close
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestSlashCommand(tt.input))
		})
	}
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshteinDistance("open", "open"))
	assert.Equal(t, 3, levenshteinDistance("", "new"))
	assert.Equal(t, 1, levenshteinDistance("/pik", "/pick"))
	assert.Equal(t, 3, levenshteinDistance("kitten", "sitting"))
}
