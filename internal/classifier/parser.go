package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"mailclassifier/internal/model"
)

// ParseVerdict extracts a verdict from free-form gateway output. The payload is taken as the
// span from the first '{' to the last '}', so prose and code fences around it are tolerated.
// Any failure is reported as ErrVerdictUnparseable and no partial verdict is returned.
// Confidence is clamped to [0,1].
func ParseVerdict(raw string) (model.Verdict, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return model.Verdict{}, fmt.Errorf("%w: no JSON object found", ErrVerdictUnparseable)
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrVerdictUnparseable, err)
	}

	name, ok := fields["category"].(string)
	if !ok {
		return model.Verdict{}, fmt.Errorf("%w: category missing or not a string", ErrVerdictUnparseable)
	}
	category, err := model.ParseCategory(name)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %v", ErrVerdictUnparseable, err)
	}

	confidence, ok := fields["confidence"].(float64)
	if !ok {
		return model.Verdict{}, fmt.Errorf("%w: confidence missing or not a number", ErrVerdictUnparseable)
	}

	// reason 缺失或不是字符串时取空串
	reason, _ := fields["reason"].(string)

	return model.Verdict{
		Category:   category,
		Confidence: clamp(confidence),
		Reason:     reason,
	}, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
