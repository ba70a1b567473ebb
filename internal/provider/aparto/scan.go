package aparto

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"student-rooms/internal/logger"
	"student-rooms/internal/retry"
)

var errTransient = errors.New("transient probe failure")

func (p *Provider) termURL(portal string, id int) string {
	return fmt.Sprintf("%s/General/RoomSearch/RoomSearch/RedirectToMainFilter?roomSelectionModelID=361&filterID=1&option=RoomLocationArea&termID=%d", portal, id)
}

// probeTerm requests one term id. Transient answers are retried; once the
// retries are spent the id counts as invalid.
func (p *Provider) probeTerm(ctx context.Context, portal string, id int) (Term, bool) {
	url := p.termURL(portal, id)
	var (
		term  Term
		valid bool
	)
	cfg := retry.Config{
		MaxAttempts:  1 + p.cfg.TransientRetries,
		InitialDelay: p.cfg.RetryBackoff,
		Multiplier:   2,
		IsRetryable:  func(err error) bool { return errors.Is(err, errTransient) },
	}
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		resp, err := p.http.R().SetContext(ctx).Get(url)
		pr := ProbeResponse{Err: err}
		if err == nil {
			pr.Status = resp.StatusCode()
			pr.Body = resp.String()
		}
		switch Classify(pr) {
		case Valid:
			final := url
			if raw := resp.RawResponse; raw != nil && raw.Request != nil {
				final = raw.Request.URL.String()
			}
			term, valid = parseTerm(id, pr.Body, final), true
			return nil
		case Transient:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errTransient
		default:
			return nil
		}
	})
	if err != nil && ctx.Err() == nil {
		p.log.Debug("Term probe gave up", logger.Int("term_id", id), logger.Err(err))
	}
	return term, valid
}

// scanStats summarises a term scan for logging.
type scanStats struct {
	Probed  int
	Valid   int
	Stopped int
}

// scanTerms probes the configured id window in ordered batches and keeps
// the valid terms accepted by keep. Misses only count once a valid term
// has been seen; after that, scanning stops when more than
// MaxConsecutiveMisses ids in a row are invalid.
func (p *Provider) scanTerms(ctx context.Context, portal string, keep func(Term) bool) ([]Term, scanStats, error) {
	var (
		terms    []Term
		stats    scanStats
		misses   int
		lastHit  int
		hit      bool
		maxMiss  = p.cfg.MaxConsecutiveMisses
		batchLen = p.cfg.Concurrency
	)

	for batchStart := p.cfg.TermStart; batchStart <= p.cfg.TermEnd; batchStart += batchLen {
		ids := make([]int, 0, batchLen)
		for id := batchStart; id < batchStart+batchLen && id <= p.cfg.TermEnd; id++ {
			ids = append(ids, id)
		}

		type result struct {
			term  Term
			valid bool
		}
		results := make([]result, len(ids))
		var g errgroup.Group
		for i, id := range ids {
			g.Go(func() error {
				t, ok := p.probeTerm(ctx, portal, id)
				results[i] = result{term: t, valid: ok}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return terms, stats, err
		}

		for i, res := range results {
			id := ids[i]
			stats.Probed++
			if res.valid {
				stats.Valid++
				misses = 0
				lastHit = id
				hit = true
				if keep(res.term) {
					terms = append(terms, res.term)
				} else {
					p.log.Debug("Term outside target city", logger.Int("term_id", id), logger.String("term", res.term.Name))
				}
				continue
			}
			if !hit {
				continue
			}
			misses++
			if misses > maxMiss {
				stats.Stopped = id
				p.log.Debug("Stopping term scan",
					logger.Int("term_id", id),
					logger.Int("misses", misses),
					logger.Int("last_hit", lastHit))
				return terms, stats, nil
			}
		}
	}
	return terms, stats, nil
}
