package store

import (
	"encoding/json"
	"fmt"

	"github.com/credible/credit-service/internal/domain"
)

// normalizeFactors keeps an empty factor list encoded as [] rather than null.
func normalizeFactors(factors []domain.ScoreFactor) []domain.ScoreFactor {
	if factors == nil {
		return []domain.ScoreFactor{}
	}
	return factors
}

func decodeFactors(raw []byte) ([]domain.ScoreFactor, error) {
	factors := []domain.ScoreFactor{}
	if len(raw) == 0 || string(raw) == "null" {
		return factors, nil
	}
	if err := json.Unmarshal(raw, &factors); err != nil {
		return nil, fmt.Errorf("decode credit score factors: %w", err)
	}
	return factors, nil
}
