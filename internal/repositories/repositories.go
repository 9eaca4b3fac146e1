package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/akopylov/crosstune/internal/models"
)

// encodeCandidates renders a candidate list for its JSON column.
// Nil encodes as an empty array so the column is never NULL.
func encodeCandidates(candidates []models.Candidate) (string, error) {
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return "", fmt.Errorf("failed to encode candidates: %w", err)
	}
	return string(data), nil
}

// decodeCandidates parses a candidate JSON column.
func decodeCandidates(data string) ([]models.Candidate, error) {
	if data == "" {
		return nil, nil
	}
	var candidates []models.Candidate
	if err := json.Unmarshal([]byte(data), &candidates); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return candidates, nil
}
