package coordinator

import (
	"context"
	"fmt"
)

// BackfillResult counts what a backfill did for one entity type.
type BackfillResult struct {
	Entity    string `json:"entity"`
	Scanned   int    `json:"scanned"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Failed    int    `json:"failed"`
}

// Backfill copies every record from the primary to the secondary, creating
// missing records and overwriting divergent ones. Entity types are processed
// in dependency order. A record that fails to copy is logged and counted;
// only a failure to list the primary or a cancelled context stops the run.
func (s *Set) Backfill(ctx context.Context) ([]BackfillResult, error) {
	results := make([]BackfillResult, 0, len(s.entities))
	for _, e := range s.entities {
		res, err := e.backfill(ctx)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (e *entity[T, K]) backfill(ctx context.Context) (BackfillResult, error) {
	res := BackfillResult{Entity: e.name}
	records, err := e.repo.list(e.primary, ctx)
	if err != nil {
		return res, fmt.Errorf("list %s from primary: %w", e.name, err)
	}
	e.logger.Info().Int("records", len(records)).Msg("backfill start")

	for _, p := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		id := e.repo.id(p).String()

		result, err := e.copyOne(ctx, p)
		if err != nil {
			res.Failed++
			backfillRecords.WithLabelValues(e.name, "failed").Inc()
			e.logger.Error().Err(err).Str("entity_id", id).Msg("backfill record failed")
			continue
		}
		switch result {
		case "created":
			res.Created++
		case "updated":
			res.Updated++
		default:
			res.Unchanged++
		}
		backfillRecords.WithLabelValues(e.name, result).Inc()
	}

	e.logger.Info().
		Int("scanned", res.Scanned).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("unchanged", res.Unchanged).
		Int("failed", res.Failed).
		Msg("backfill complete")
	return res, nil
}

func (e *entity[T, K]) copyOne(ctx context.Context, p *T) (string, error) {
	s, err := e.repo.get(e.secondary, ctx, e.repo.id(p))
	if err != nil {
		return "", err
	}
	switch {
	case s == nil:
		return "created", e.repo.create(e.secondary, ctx, e.repo.clone(p))
	case e.agree(p, s):
		return "unchanged", nil
	default:
		_, err := e.upsert(ctx, e.secondary, p)
		return "updated", err
	}
}
