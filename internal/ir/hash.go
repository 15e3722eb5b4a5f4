package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainStep  = "vault/step/v1"
	DomainState = "vault/state/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StepID computes the content-addressed ID of a step.
// The output case is excluded: the ID names what was asked for, so a
// replayed step keeps its identity whatever the outcome.
func StepID(s Step) (string, error) {
	obj := IRObject{
		"vault_id":    IRString(s.VaultID),
		"seq":         IRInt(s.Seq),
		"operation":   IRString(s.Operation),
		"actor":       IRString(s.Actor),
		"amount":      IRString(FormatAmount(s.Amount)),
		"source":      IRString(s.Source),
		"destination": IRString(s.Destination),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("StepID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStep, canonical), nil
}

// StateHash computes a digest of a vault snapshot.
// Two snapshots hash equal iff manager, holding, capacity, total and every
// balance entry agree. Balances are hashed in snapshot order, which is
// sorted by depositor.
func StateHash(snap VaultSnapshot) (string, error) {
	balances := make(IRArray, len(snap.Balances))
	for i, b := range snap.Balances {
		balances[i] = IRArray{IRString(b.Depositor), IRString(FormatAmount(b.Amount))}
	}

	obj := IRObject{
		"id":            IRString(snap.ID),
		"manager":       IRString(snap.Manager),
		"holding":       IRString(snap.Holding),
		"capacity":      IRInt(snap.Capacity),
		"total_balance": IRString(FormatAmount(snap.TotalBalance)),
		"balances":      balances,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MustStepID is like StepID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStepID(s Step) string {
	id, err := StepID(s)
	if err != nil {
		panic(err)
	}
	return id
}
