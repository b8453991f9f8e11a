// Package tokenest provides a fast, deterministic heuristic for estimating
// how many model tokens a piece of text will occupy. It is used for progress
// reporting and context budgeting only; it is not a tokenizer and must not be
// used to enforce a model's actual context window.
package tokenest

// cjkRange is an inclusive [lo, hi] rune range treated as CJK for
// estimation purposes.
type cjkRange struct {
	lo, hi rune
}

var cjkRanges = [...]cjkRange{
	{0x4E00, 0x9FFF},
	{0x3400, 0x4DBF},
	{0x20000, 0x2A6DF},
}

func isCJK(r rune) bool {
	for _, rg := range cjkRanges {
		if r >= rg.lo && r <= rg.hi {
			return true
		}
	}
	return false
}

// Estimate returns a deterministic integer token estimate for text.
//
// CJK code points are weighted at 1/1.5 tokens each, all other code points
// at 1/4 token each, and the result is floored. The estimate is intentionally
// crude: it exists for progress bars and rough context budgeting, not for
// truncating input to a model's vocabulary.
func Estimate(text string) int {
	var cjk, other int
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}
	return int(float64(cjk)/1.5 + float64(other)/4.0)
}
