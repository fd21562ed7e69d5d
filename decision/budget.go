package decision

import (
	"sort"
	"strings"
)

// PromptSection is one candidate block of the LLM prompt.
type PromptSection struct {
	Name     string
	Content  string
	Priority int // 1 = must, 2 = important, 3 = optional
}

// EstimateTokens approximates token usage of mixed CJK/Latin text:
// CJK chars count ~1.5 tokens each, the rest ~1.3 tokens per 4 chars.
// The constants match across ports so prompt sizes stay comparable.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	cjk := 0
	total := 0
	for _, r := range text {
		total++
		if r >= 0x4e00 && r <= 0x9fff {
			cjk++
		}
	}
	nonCJK := total - cjk
	words := float64(nonCJK) / 4
	return int(float64(cjk)*1.5 + words*1.3)
}

// BuildPrompt greedily fits sections by priority under the token
// budget. Priority-1 sections that do not fit are cut to a prefix sized
// to the remaining budget (ending at its last newline when that newline
// lies in the second half of the prefix) and annotated; dropped
// sections are reported in a trailing budget line.
func BuildPrompt(sections []PromptSection, maxTokens int) string {
	sorted := make([]PromptSection, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	var parts []string
	var dropped []string
	used := 0

	for _, s := range sorted {
		if s.Content == "" {
			continue
		}
		tokens := EstimateTokens(s.Content)
		remaining := maxTokens - used

		switch {
		case tokens <= remaining:
			parts = append(parts, s.Content)
			used += tokens
		case s.Priority == 1:
			// Must-have: force a prefix in.
			ratio := float64(remaining) / float64(max(tokens, 1))
			cutLen := int(float64(len(s.Content)) * ratio)
			if cutLen > len(s.Content) {
				cutLen = len(s.Content)
			}
			cut := s.Content[:cutLen]
			if lastNL := strings.LastIndexByte(cut, '\n'); lastNL > len(cut)/2 {
				cut = cut[:lastNL]
			}
			parts = append(parts, cut+"\n[truncated]")
			used = maxTokens
		default:
			dropped = append(dropped, s.Name)
		}
	}

	if len(dropped) > 0 {
		parts = append(parts, "\n[budget: omitted "+strings.Join(dropped, ", ")+"]")
	}
	return strings.Join(parts, "\n\n")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
