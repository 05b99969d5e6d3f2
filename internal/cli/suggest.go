// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Typo correction for chat slash commands.
package cli

import (
	"strings"
)

// slashCommands lists every slash command and alias the chat accepts.
var slashCommands = []string{
	"/help", "/quit", "/exit",
	"/new", "/sessions", "/open", "/pick", "/show", "/transcript",
	"/edit", "/edit!", "/delete", "/regen", "/regenerate",
	"/rename", "/archive", "/pause", "/activate", "/public", "/project", "/export",
	"/status",
}

// SuggestSlashCommand returns the slash command closest to input, or "" when
// none is close enough. Longer inputs tolerate more edits.
func SuggestSlashCommand(input string) string {
	input = strings.ToLower(input)
	if len(input) < 3 {
		return ""
	}

	maxDistance := 1
	if len(input) >= 5 {
		maxDistance = 2
	}
	if len(input) > 9 {
		maxDistance = 3
	}

	bestMatch := ""
	bestDistance := -1
	for _, cmd := range slashCommands {
		distance := levenshteinDistance(input, cmd)
		if distance == 0 {
			return ""
		}
		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			bestDistance = distance
			bestMatch = cmd
		}
	}
	return bestMatch
}

// levenshteinDistance is the number of single-character insertions,
// deletions or substitutions turning s1 into s2.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// Two rows instead of the full matrix.
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}
