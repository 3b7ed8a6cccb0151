package domain

import (
	"fmt"
	"time"
)

// NarrativeStatus classifies how an entry was produced.
type NarrativeStatus string

const (
	// NarrativeRecorded marks entries written by the clearing path itself.
	NarrativeRecorded NarrativeStatus = "RECORDED"
	// NarrativeObserved marks entries derived from provider callbacks.
	NarrativeObserved NarrativeStatus = "OBSERVED"
	// NarrativeFailed marks entries describing a failed downstream step.
	NarrativeFailed NarrativeStatus = "FAILED"
)

// LineDirection is the side of a double-entry narrative line.
type LineDirection string

const (
	Debit  LineDirection = "debit"
	Credit LineDirection = "credit"
)

// NarrativeLine is one side of a double-entry observation.
type NarrativeLine struct {
	Account   AccountID
	Direction LineDirection
	Amount    Amount
}

// NarrativeEntry is an append-only observation mirroring a lifecycle event.
// Never authoritative: balances implied by entries are advisory only and are
// never fed back into clearing decisions.
type NarrativeEntry struct {
	ID          string
	ClaimID     string
	Description string
	Source      string
	Status      NarrativeStatus
	Lines       []NarrativeLine
	Metadata    map[string]string
	RecordedAt  time.Time
}

// Balanced verifies that debits equal credits across the entry's lines.
func (e NarrativeEntry) Balanced() error {
	var debits, credits uint64
	for _, line := range e.Lines {
		switch line.Direction {
		case Debit:
			debits += uint64(line.Amount)
		case Credit:
			credits += uint64(line.Amount)
		default:
			return fmt.Errorf("line on account %s: unknown direction %q", line.Account, line.Direction)
		}
	}
	if debits != credits {
		return fmt.Errorf("entry %s unbalanced: debits %d != credits %d", e.ID, debits, credits)
	}
	return nil
}
