package ocr

import (
	"math"
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{1,2}/\d{1,2}(/\d{2,4})?\b`)
	reCurr   = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud)\b|[$£€]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
	reBalKW  = regexp.MustCompile(`\b(balance|deposit|withdrawal|statement)\b`)
)

func hasDatePattern(s string) bool     { return reDate.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }
func hasStatementWords(s string) bool  { return reBalKW.MatchString(s) }

// heuristicConfidence scores decoded text by statement artifacts it contains.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if hasDatePattern(txtL) {
		score += 0.2
	}
	if hasCurrencyPattern(txtL) {
		score += 0.1
	}
	if hasAmountPattern(txtL) {
		score += 0.2
	}
	if hasStatementWords(txtL) {
		score += 0.1
	}
	if len(txt) > 200 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blendConfidence weights an engine-reported confidence over the heuristic when present.
func blendConfidence(engine float32, text string) float32 {
	heur := heuristicConfidence(text)
	conf := heur
	if engine > 0 {
		conf = 0.7*engine + 0.3*heur
	}
	return clamp01(conf)
}

// confidenceFromLogprobs turns a mean token log-probability into 0..1.
func confidenceFromLogprobs(avg float64) float32 {
	if avg == 0 || math.IsNaN(avg) {
		return 0
	}
	return clamp01(float32(math.Exp(avg)))
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func meanConfidence(vals []float32) float32 {
	var sum float32
	var n int
	for _, v := range vals {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}
