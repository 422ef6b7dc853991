package matching

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ParseErrorKind string

const (
	// KindNotJSON: no balanced, syntactically valid JSON object in the text.
	KindNotJSON ParseErrorKind = "not_json"
	// KindSchemaViolation: required field missing or of the wrong type.
	KindSchemaViolation ParseErrorKind = "schema_violation"
	// KindEmptyResult: every entry was dropped during validation.
	KindEmptyResult ParseErrorKind = "empty_result"
)

type ParseError struct {
	Kind ParseErrorKind
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Kind, e.Msg)
}

func parseErrorf(kind ParseErrorKind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

type ParsedRecommendation struct {
	DatasetID   int64
	DatastoreID int64
	Confidence  float64
	Reason      string
}

// ParsedResult preserves the model's original recommendation order so the
// ranker's sort stays stable against it.
type ParsedResult struct {
	Recommendations   []ParsedRecommendation
	OverallConfidence *float64
	Summary           string
	Warnings          []string
}

// ParseOptions carries the request context the validator checks entries
// against.
type ParseOptions struct {
	DatasetIDs   map[int64]struct{}
	DatastoreIDs map[int64]struct{}
	MaxReasonLen int
}

// wire shapes for the extracted object
type wirePayload struct {
	Recommendations   []wireRecommendation `json:"recommendations"`
	OverallConfidence *json.Number         `json:"overall_confidence"`
	Summary           *string              `json:"summary"`
}

type wireRecommendation struct {
	DatasetID   *json.Number `json:"dataset_id"`
	DatastoreID *json.Number `json:"datastore_id"`
	Confidence  *json.Number `json:"confidence"`
	Reason      *string      `json:"reason"`
}

// Parse extracts and validates the recommendation payload from raw model
// output. The raw text may wrap the JSON object in commentary; the first
// balanced, syntactically valid top-level object wins.
func Parse(raw string, opts ParseOptions) (*ParsedResult, error) {
	objText, ok := extractJSONObject(raw)
	if !ok {
		return nil, parseErrorf(KindNotJSON, "no balanced JSON object found in model output")
	}

	dec := json.NewDecoder(strings.NewReader(objText))
	dec.UseNumber()
	var payload wirePayload
	if err := dec.Decode(&payload); err != nil {
		// The object was syntactically valid JSON but does not bind to the
		// expected shape (e.g. recommendations is a string).
		return nil, parseErrorf(KindSchemaViolation, "payload does not match schema: %v", err)
	}

	if payload.Recommendations == nil {
		return nil, parseErrorf(KindSchemaViolation, "missing required field \"recommendations\"")
	}
	if len(payload.Recommendations) == 0 {
		return nil, parseErrorf(KindSchemaViolation, "\"recommendations\" must be a non-empty array")
	}

	out := &ParsedResult{}

	if payload.OverallConfidence != nil {
		v, err := payload.OverallConfidence.Float64()
		if err != nil {
			return nil, parseErrorf(KindSchemaViolation, "\"overall_confidence\" is not a number")
		}
		out.OverallConfidence = &v
	}
	if payload.Summary != nil {
		out.Summary = *payload.Summary
	}

	for i, rec := range payload.Recommendations {
		datasetID, err := requireInt(rec.DatasetID)
		if err != nil {
			return nil, parseErrorf(KindSchemaViolation, "recommendations[%d].dataset_id: %v", i, err)
		}
		datastoreID, err := requireInt(rec.DatastoreID)
		if err != nil {
			return nil, parseErrorf(KindSchemaViolation, "recommendations[%d].datastore_id: %v", i, err)
		}
		if rec.Confidence == nil {
			return nil, parseErrorf(KindSchemaViolation, "recommendations[%d].confidence: missing", i)
		}
		confidence, err := rec.Confidence.Float64()
		if err != nil {
			return nil, parseErrorf(KindSchemaViolation, "recommendations[%d].confidence: not a number", i)
		}
		if rec.Reason == nil || strings.TrimSpace(*rec.Reason) == "" {
			return nil, parseErrorf(KindSchemaViolation, "recommendations[%d].reason: missing or empty", i)
		}

		// Unknown references are dropped, not fatal; the caller only fails
		// when nothing survives.
		if _, known := opts.DatasetIDs[datasetID]; !known {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("dropped recommendations[%d]: dataset_id %d not in request", i, datasetID))
			continue
		}
		if _, known := opts.DatastoreIDs[datastoreID]; !known {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("dropped recommendations[%d]: datastore_id %d not in request", i, datastoreID))
			continue
		}

		if confidence < 0 {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("clamped recommendations[%d].confidence %v to 0", i, confidence))
			confidence = 0
		} else if confidence > 100 {
			out.Warnings = append(out.Warnings,
				fmt.Sprintf("clamped recommendations[%d].confidence %v to 100", i, confidence))
			confidence = 100
		}

		reason := strings.TrimSpace(*rec.Reason)
		if opts.MaxReasonLen > 0 && len(reason) > opts.MaxReasonLen {
			reason = reason[:opts.MaxReasonLen]
		}

		out.Recommendations = append(out.Recommendations, ParsedRecommendation{
			DatasetID:   datasetID,
			DatastoreID: datastoreID,
			Confidence:  confidence,
			Reason:      reason,
		})
	}

	if len(out.Recommendations) == 0 {
		return nil, parseErrorf(KindEmptyResult,
			"all %d entries referenced IDs outside the request", len(payload.Recommendations))
	}
	return out, nil
}

func requireInt(n *json.Number) (int64, error) {
	if n == nil {
		return 0, fmt.Errorf("missing")
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", n.String())
	}
	return v, nil
}

// extractJSONObject scans for the first balanced top-level JSON object in the
// text. Balance tracking is string-aware so braces inside string values do
// not confuse it; each candidate is verified with the real decoder before it
// is accepted.
func extractJSONObject(raw string) (string, bool) {
	for start := 0; start < len(raw); start++ {
		if raw[start] != '{' {
			continue
		}
		end, ok := scanBalanced(raw, start)
		if !ok {
			continue
		}
		candidate := raw[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

func scanBalanced(raw string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
