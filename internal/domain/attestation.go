package domain

import "time"

// Proof lets a third party independently verify that a claim's field values
// resolve to the signed root without trusting this service.
type Proof struct {
	Root  []byte
	Path  [][]byte
	Nonce []byte
}

// Attestation binds the exact field values of one claim to a single
// signature. Any mutation of amount, subject, or kind after signing
// invalidates it.
type Attestation struct {
	ClaimID   string
	Signer    string
	Hash      []byte
	Signature []byte
	Proof     Proof
	SignedAt  time.Time
}
