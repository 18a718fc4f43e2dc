package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"note-lifecycle-lab/internal/domain"
)

// ComputeResultFingerprint hashes the canonical JSON of an evaluation result.
// encoding/json emits struct fields in declaration order and map keys sorted,
// so equal results always hash equally.
// Returns hex-encoded hash (64 characters).
func ComputeResultFingerprint(r *domain.EvaluationResult) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
