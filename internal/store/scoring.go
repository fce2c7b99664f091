package store

import "github.com/Abrechen2/sublarr/internal/domain"

// ScoringRepo persists the tunable weights and per-provider modifiers that
// feed the scoring engine's cached snapshot (§4.3, I3). Grounded on
// jatassi-SlipStream's ScoringContext table layout (score_type + key/value).
type ScoringRepo struct{ s *Store }

func (s *Store) Scoring() *ScoringRepo { return &ScoringRepo{s} }

func (r *ScoringRepo) SetWeight(w domain.ScoringWeight) error {
	_, err := r.s.db.Exec(`
		INSERT INTO scoring_weights (score_type, weight_key, weight_value) VALUES (?, ?, ?)
		ON CONFLICT(score_type, weight_key) DO UPDATE SET weight_value = excluded.weight_value
	`, string(w.ScoreType), w.WeightKey, w.WeightValue)
	return wrapDBErr("scoring.set_weight", err)
}

func (r *ScoringRepo) Weights(scoreType domain.ScoreType) (map[string]float64, error) {
	rows, err := r.s.db.Query(`
		SELECT weight_key, weight_value FROM scoring_weights WHERE score_type = ?
	`, string(scoreType))
	if err != nil {
		return nil, wrapDBErr("scoring.weights", err)
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, wrapDBErr("scoring.weights.scan", err)
		}
		out[key] = value
	}
	return out, nil
}

func (r *ScoringRepo) SetProviderModifier(provider string, modifier int) error {
	_, err := r.s.db.Exec(`
		INSERT INTO scoring_provider_modifiers (provider_name, modifier) VALUES (?, ?)
		ON CONFLICT(provider_name) DO UPDATE SET modifier = excluded.modifier
	`, provider, modifier)
	return wrapDBErr("scoring.set_modifier", err)
}

func (r *ScoringRepo) ProviderModifiers() (map[string]int, error) {
	rows, err := r.s.db.Query(`SELECT provider_name, modifier FROM scoring_provider_modifiers`)
	if err != nil {
		return nil, wrapDBErr("scoring.modifiers", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var name string
		var modifier int
		if err := rows.Scan(&name, &modifier); err != nil {
			return nil, wrapDBErr("scoring.modifiers.scan", err)
		}
		out[name] = modifier
	}
	return out, nil
}
