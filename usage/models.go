package usage

import (
	"regexp"
	"strings"
)

// modelShortNames maps known model ids to display names. Ids missing
// here fall through to the generic shortening below.
var modelShortNames = map[string]string{
	"claude-opus-4-5-20250514":   "Opus 4.5",
	"claude-sonnet-4-5-20250929": "Sonnet 4.5",
	"claude-sonnet-4-5-20250514": "Sonnet 4.5",
	"claude-haiku-4-5-20251001":  "Haiku 4.5",
	"claude-sonnet-4-20250514":   "Sonnet 4",
}

var dateSuffixRe = regexp.MustCompile(`-\d{8}$`)

// ShortModelName converts a model id to a short display name:
// alias table first, then strip the vendor prefix and date suffix
// and title-case the rest.
func ShortModelName(modelID string) string {
	if short, ok := modelShortNames[modelID]; ok {
		return short
	}
	name := strings.TrimPrefix(modelID, "claude-")
	name = dateSuffixRe.ReplaceAllString(name, "")
	words := strings.Split(name, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// modelRate is cost per million tokens in USD.
type modelRate struct {
	Input  float64
	Output float64
}

// modelRates keys are matched by substring against the lowercased
// short model name. Unrecognized models cost zero — an estimate gap,
// not an error.
var modelRates = map[string]modelRate{
	"opus":   {15.0, 75.0},
	"sonnet": {3.0, 15.0},
	"haiku":  {0.25, 1.25},
}

// EstimateCost returns the estimated USD cost for the given model and
// token counts, or 0 for unrecognized models.
func EstimateCost(modelID string, tokens Tokens) float64 {
	short := strings.ToLower(ShortModelName(modelID))
	for key, rate := range modelRates {
		if strings.Contains(short, key) {
			return (float64(tokens.Input)*rate.Input + float64(tokens.Output)*rate.Output) / 1_000_000
		}
	}
	return 0
}

// totalCost sums estimated cost across a per-model breakdown.
func totalCost(byModel map[string]Tokens) float64 {
	var total float64
	for model, tokens := range byModel {
		total += EstimateCost(model, tokens)
	}
	return total
}
