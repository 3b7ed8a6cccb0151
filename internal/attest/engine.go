// Package attest produces and verifies signed proofs binding a claim's exact
// field values to a single signature. The engine is stateless and safe for
// concurrent use; verification runs before any ledger interaction and fails
// closed.
package attest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"valcore/internal/domain"
	"valcore/pkg/errs"
)

// amountLeaf is the leaf index whose sibling path is embedded in the proof.
// Amount is the field an attacker most wants to tamper with, so the proof
// lets a third party check it against the signed root without the other
// fields.
const amountLeaf = 3

// Engine signs and verifies attestations with a single ed25519 key.
type Engine struct {
	signer string
	priv   ed25519.PrivateKey
	pub    ed25519.PublicKey
}

// NewEngine builds an engine from a 32-byte ed25519 seed. An empty seed
// generates an ephemeral key, which is only acceptable for development and
// tests.
func NewEngine(signer string, seedHex string) (*Engine, error) {
	var priv ed25519.PrivateKey
	if seedHex == "" {
		_, generated, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		priv = generated
	} else {
		seed, err := hex.DecodeString(seedHex)
		if err != nil {
			return nil, fmt.Errorf("decode signing seed: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("signing seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}
	return &Engine{
		signer: signer,
		priv:   priv,
		pub:    priv.Public().(ed25519.PublicKey),
	}, nil
}

// Signer returns the signer identity embedded in attestations.
func (e *Engine) Signer() string { return e.signer }

// PublicKey exposes the verification key for external verifiers.
func (e *Engine) PublicKey() ed25519.PublicKey { return e.pub }

// Attest computes a canonical hash over the claim's essential fields, signs
// it, and returns an attestation with a verifiable proof path.
func (e *Engine) Attest(claim domain.CreditEvent) (domain.Attestation, error) {
	if claim.ID == "" {
		return domain.Attestation{}, errs.New(errs.CodeBadRequest, "claim id is required")
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return domain.Attestation{}, fmt.Errorf("generate proof nonce: %w", err)
	}

	leaves := fieldLeaves(claim, nonce)
	root := merkleRoot(leaves)
	path := merklePath(leaves, amountLeaf)

	return domain.Attestation{
		ClaimID:   claim.ID,
		Signer:    e.signer,
		Hash:      root,
		Signature: ed25519.Sign(e.priv, root),
		Proof: domain.Proof{
			Root:  root,
			Path:  path,
			Nonce: nonce,
		},
		SignedAt: time.Now().UTC(),
	}, nil
}

// Verify recomputes the canonical hash of the current claim fields and checks
// it against the attestation. Any tampering with amount, subject, or kind
// after signing is caught here, never downstream.
func (e *Engine) Verify(claim domain.CreditEvent, att domain.Attestation) error {
	if att.ClaimID != claim.ID {
		return errs.Newf(errs.CodeInvalidAttestation, "attestation is for claim %s, got %s", att.ClaimID, claim.ID)
	}
	if len(att.Proof.Nonce) == 0 {
		return errs.New(errs.CodeInvalidAttestation, "proof nonce missing")
	}

	leaves := fieldLeaves(claim, att.Proof.Nonce)
	root := merkleRoot(leaves)
	if !bytes.Equal(root, att.Hash) {
		return errs.New(errs.CodeInvalidAttestation, "claim fields do not match attested hash")
	}
	if !bytes.Equal(root, att.Proof.Root) {
		return errs.New(errs.CodeInvalidAttestation, "proof root does not match attested hash")
	}
	if !resolvePath(leaves[amountLeaf], att.Proof.Path, att.Proof.Root) {
		return errs.New(errs.CodeInvalidAttestation, "proof path does not resolve to root")
	}
	if !ed25519.Verify(e.pub, root, att.Signature) {
		return errs.New(errs.CodeInvalidAttestation, "signature verification failed")
	}
	return nil
}

// fieldLeaves hashes the claim's essential fields into Merkle leaves. The
// nonce salts every leaf so field values cannot be brute-forced from a
// published proof. Field order is fixed: id, kind, subject, amount, timestamp.
func fieldLeaves(claim domain.CreditEvent, nonce []byte) [][]byte {
	amount := make([]byte, 8)
	binary.BigEndian.PutUint64(amount, uint64(claim.Amount))
	createdAt := make([]byte, 8)
	binary.BigEndian.PutUint64(createdAt, uint64(claim.CreatedAt.UTC().UnixNano()))

	fields := [][]byte{
		[]byte(claim.ID),
		[]byte(claim.Kind),
		[]byte(claim.Subject),
		amount,
		createdAt,
	}
	leaves := make([][]byte, len(fields))
	for i, field := range fields {
		leaves[i] = leafHash(nonce, byte(i), field)
	}
	return leaves
}

func leafHash(nonce []byte, tag byte, value []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(nonce)
	h.Write([]byte{tag})
	h.Write(value)
	return h.Sum(nil)
}

func nodeHash(left, right []byte) []byte {
	h, _ := blake2b.New256(nil)
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// merkleRoot folds leaves pairwise; an odd node is paired with itself.
func merkleRoot(leaves [][]byte) []byte {
	level := leaves
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				next = append(next, nodeHash(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

// Path elements carry a one-byte side prefix: 0 means the sibling is on the
// left, 1 on the right.
const (
	sideLeft  byte = 0
	sideRight byte = 1
)

// merklePath collects the sibling hashes needed to recompute the root from
// one leaf.
func merklePath(leaves [][]byte, index int) [][]byte {
	var path [][]byte
	level := leaves
	for len(level) > 1 {
		sibling := index ^ 1
		if sibling >= len(level) {
			sibling = index // odd node pairs with itself
		}
		side := sideLeft
		if sibling > index || sibling == index {
			side = sideRight
		}
		elem := make([]byte, 0, 1+len(level[sibling]))
		elem = append(elem, side)
		elem = append(elem, level[sibling]...)
		path = append(path, elem)

		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				next = append(next, nodeHash(level[i], level[i]))
			}
		}
		level = next
		index /= 2
	}
	return path
}

// resolvePath walks a proof path from a leaf up and compares against root.
func resolvePath(leaf []byte, path [][]byte, root []byte) bool {
	current := leaf
	for _, elem := range path {
		if len(elem) < 2 {
			return false
		}
		side, sibling := elem[0], elem[1:]
		switch side {
		case sideLeft:
			current = nodeHash(sibling, current)
		case sideRight:
			current = nodeHash(current, sibling)
		default:
			return false
		}
	}
	return bytes.Equal(current, root)
}
