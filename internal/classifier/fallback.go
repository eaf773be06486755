package classifier

import (
	"errors"

	"mailclassifier/internal/model"
)

const (
	FallbackCategory   = model.CategoryWork
	FallbackConfidence = 0.5

	ReasonGatewayUnavailable  = "gateway unavailable"
	ReasonUnparseableResponse = "unparseable response"
)

// Fallback returns the fixed low-confidence verdict used when classification cannot complete.
// The reason names the failure: parser failures map to ReasonUnparseableResponse, everything
// else (including unknown errors) to ReasonGatewayUnavailable.
func Fallback(err error) model.Verdict {
	reason := ReasonGatewayUnavailable
	if errors.Is(err, ErrVerdictUnparseable) {
		reason = ReasonUnparseableResponse
	}
	return model.Verdict{
		Category:   FallbackCategory,
		Confidence: FallbackConfidence,
		Reason:     reason,
	}
}
