package parse

import (
	"encoding/json"
	"strings"
)

// Input is one backend invocation's output, reduced to what normalization
// needs. Confidence is the engine-reported score when the backend provides
// one, zero otherwise.
type Input struct {
	Text       string
	Structured json.RawMessage
	Engine     string
	Confidence float64
}

// Normalize converts a backend result into the canonical record. The
// structured mapper is preferred; the heuristic extractors only run when no
// structured payload is present or the mapper cannot identify any section.
// The two paths are mutually exclusive for a given result.
//
// Normalize always returns a record when the backend succeeded, even for
// empty text: raw text (possibly empty) with all fields unset and
// confidence zero is still a valid outcome, not an error.
func Normalize(in Input) *ParsedReceipt {
	if rec := MapSections(in.Structured); rec != nil {
		rec.RawText = in.Text
		rec.Engine = in.Engine
		rec.Confidence = structuredConfidence(in.Confidence)
		return rec
	}

	rec := &ParsedReceipt{
		RawText: in.Text,
		Engine:  in.Engine,
	}
	if strings.TrimSpace(in.Text) == "" {
		return rec
	}

	lines := SplitLines(in.Text)
	rec.Merchant = ExtractMerchant(lines)
	rec.Date = ExtractDate(in.Text)
	rec.Total = ExtractTotal(lines)
	rec.Items = ExtractItems(lines)
	rec.Confidence = heuristicConfidence(rec, in.Confidence)
	return rec
}

func structuredConfidence(engineScore float64) float64 {
	if engineScore > 0 && engineScore <= 1 {
		return engineScore
	}
	// Structured output implies the engine understood the document layout.
	return 0.9
}

// heuristicConfidence scores by field coverage, scaled down when the engine
// itself reported low recognition confidence.
func heuristicConfidence(rec *ParsedReceipt, engineScore float64) float64 {
	score := 0.0
	if rec.Merchant != "" {
		score += 0.25
	}
	if rec.Date != nil {
		score += 0.15
	}
	if rec.Total != nil {
		score += 0.3
	}
	if len(rec.Items) > 0 {
		score += 0.2
	}
	if engineScore > 0 && engineScore < 1 {
		score *= engineScore
	}
	return score
}
