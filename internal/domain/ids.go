package domain

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"valcore/pkg/micro"
)

// Amount aliases the shared micro-unit amount so domain signatures stay short.
type Amount = micro.Amount

// ID128 is a 128-bit identifier in the ledger protocol's ID range. Accounts
// and transfers are both keyed this way.
type ID128 [16]byte

// ParseID128 decodes a 32-character hex identifier.
func ParseID128(s string) (ID128, error) {
	var id ID128
	if len(s) != 32 {
		return id, fmt.Errorf("id %q: want 32 hex chars", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("id %q: %w", s, err)
	}
	copy(id[:], b)
	return id, nil
}

func (id ID128) String() string { return hex.EncodeToString(id[:]) }

// IsZero reports whether the identifier is unset.
func (id ID128) IsZero() bool { return id == ID128{} }

// AccountID identifies a ledger account.
type AccountID = ID128

// TransferID identifies a ledger transfer. Derived deterministically from the
// claim ID so replays of the same claim always reach the same transfer.
type TransferID = ID128

// DeriveTransferID maps a claim ID onto the ledger's 128-bit transfer ID
// space. The derivation is a stable hash, never random, so the idempotency
// invariant survives replays and process restarts.
func DeriveTransferID(claimID string) TransferID {
	sum := blake2b.Sum256([]byte("valcore.transfer.v1:" + claimID))
	var id TransferID
	copy(id[:], sum[:16])
	return id
}

// DeriveAccountID maps a subject identifier onto the ledger's 128-bit account
// ID space. Accounts are created lazily on first use; the derivation keeps the
// mapping stable across restarts.
func DeriveAccountID(subject string) AccountID {
	sum := blake2b.Sum256([]byte("valcore.account.v1:" + subject))
	var id AccountID
	copy(id[:], sum[:16])
	return id
}

// DeriveExternalRef maps a transfer ID onto the idempotent reference sent to
// honoring providers, so a retried call is safe to repeat at the provider.
func DeriveExternalRef(transferID TransferID) string {
	sum := blake2b.Sum256([]byte("valcore.honoring.v1:" + transferID.String()))
	return "vc-" + hex.EncodeToString(sum[:12])
}
