package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// RejectReason is the closed set of rejection reasons this system recognizes
// in the ledger protocol's result enumeration.
type RejectReason string

const (
	ReasonNone              RejectReason = ""
	ReasonExists            RejectReason = "exists"
	ReasonInsufficientFunds RejectReason = "insufficient_funds"
	ReasonAccountNotFound   RejectReason = "account_not_found"
	ReasonInvalidAmount     RejectReason = "invalid_amount"
	ReasonValidationFailed  RejectReason = "validation_failed"
	// ReasonUnknown is assigned to result codes outside the configured
	// mapping. Unknown codes are always rejections, never success.
	ReasonUnknown RejectReason = "unknown"
)

var knownReasons = map[RejectReason]bool{
	ReasonExists:            true,
	ReasonInsufficientFunds: true,
	ReasonAccountNotFound:   true,
	ReasonInvalidAmount:     true,
	ReasonValidationFailed:  true,
}

// CodeMap translates the ledger protocol's numeric result codes into reasons.
// The defaults follow the protocol documentation; deployments validate and
// override them against the cluster they actually run with.
type CodeMap struct {
	codes map[int]RejectReason
}

// okCode is the protocol's success result.
const okCode = 0

// DefaultCodeMap returns the documented protocol mapping.
func DefaultCodeMap() CodeMap {
	return CodeMap{codes: map[int]RejectReason{
		21: ReasonExists,
		40: ReasonAccountNotFound,
		41: ReasonInvalidAmount,
		42: ReasonInsufficientFunds,
		43: ReasonValidationFailed,
	}}
}

// ParseCodeMap applies overrides in "code=reason,code=reason" form on top of
// the defaults. Reasons outside the closed set are a configuration error.
func ParseCodeMap(overrides string) (CodeMap, error) {
	cm := DefaultCodeMap()
	if overrides == "" {
		return cm, nil
	}
	for _, pair := range strings.Split(overrides, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		codeStr, reasonStr, ok := strings.Cut(pair, "=")
		if !ok {
			return CodeMap{}, fmt.Errorf("reject code mapping %q: want code=reason", pair)
		}
		code, err := strconv.Atoi(strings.TrimSpace(codeStr))
		if err != nil {
			return CodeMap{}, fmt.Errorf("reject code mapping %q: %w", pair, err)
		}
		reason := RejectReason(strings.TrimSpace(reasonStr))
		if !knownReasons[reason] {
			return CodeMap{}, fmt.Errorf("reject code mapping %q: unknown reason %q", pair, reason)
		}
		cm.codes[code] = reason
	}
	return cm, nil
}

// Outcome maps a protocol result code into a gateway outcome.
func (cm CodeMap) Outcome(code int) Outcome {
	if code == okCode {
		return Outcome{Status: Accepted}
	}
	reason, ok := cm.codes[code]
	if !ok {
		return Outcome{Status: Rejected, Reason: ReasonUnknown}
	}
	if reason == ReasonExists {
		return Outcome{Status: Exists}
	}
	return Outcome{Status: Rejected, Reason: reason}
}
