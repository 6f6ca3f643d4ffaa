package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed digests.
// Version suffix enables future algorithm migration.
const (
	DomainBatch = "sweeptrace/batch/v1"
	DomainFrame = "sweeptrace/frame/v1"
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

// SamplesValue converts a batch to its canonical array form.
func SamplesValue(batch []Sample) []any {
	out := make([]any, len(batch))
	for i, s := range batch {
		out[i] = map[string]any{"t": NumberValue(s.TimestampMs), "y": NumberValue(s.Value)}
	}
	return out
}

// BatchDigest computes the content digest of an ingested batch.
// The digest is stable across restarts and replays given the same samples.
func BatchDigest(batch []Sample) (string, error) {
	canonical, err := MarshalCanonical(SamplesValue(batch))
	if err != nil {
		return "", fmt.Errorf("BatchDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBatch, canonical), nil
}

// FrameDigest computes the content digest of a frame's draw instructions.
// Two engines fed the same batches produce identical digests, which is what
// replay verification relies on.
func FrameDigest(f Frame) (string, error) {
	canonical, err := MarshalCanonical(f)
	if err != nil {
		return "", fmt.Errorf("FrameDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainFrame, canonical), nil
}

// MustFrameDigest is like FrameDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFrameDigest(f Frame) string {
	d, err := FrameDigest(f)
	if err != nil {
		panic(err)
	}
	return d
}
