package shell

import (
	"github.com/sahilm/fuzzy"
)

// maxEditDistance を超える候補は提案しない
const maxEditDistance = 3

// suggest は unknown に最も近い候補を返す。
// まず部分列一致（fuzzy）を試し、無ければ編集距離で typo を拾う。
func suggest(unknown string, candidates []string) string {
	if unknown == "" || len(candidates) == 0 {
		return ""
	}
	if matches := fuzzy.Find(unknown, candidates); len(matches) > 0 {
		return matches[0].Str
	}

	best := ""
	bestDistance := maxEditDistance + 1
	for _, c := range candidates {
		if d := levenshtein(unknown, c); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	return best
}

// levenshtein は2文字列間の編集距離を1行分の DP で求める
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cur := row[j]
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			row[j] = min(row[j]+1, row[j-1]+1, prev+cost)
			prev = cur
		}
	}
	return row[len(rb)]
}

// Suggest は candidates から unknown に最も近いものを返す。候補が無ければ空文字列。
func Suggest(unknown string, candidates []string) string {
	return suggest(unknown, candidates)
}
