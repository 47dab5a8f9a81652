package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrNoExtractor = errors.New("no extractor configured")

// Failback tries each extractor in order and returns the first success.
type Failback []Extractor

func (f Failback) Extract(ctx context.Context, text string, snap Snapshot) (Intent, error) {
	var errs []error
	for i, e := range f {
		in, err := e.Extract(ctx, text, snap)
		if err == nil {
			return in, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("extractor %d: %w", i, err))
	}
	if len(errs) == 0 {
		return nil, ErrNoExtractor
	}
	return nil, errors.Join(errs...)
}

// WithTimeout bounds a single extractor so a slow model still leaves time for
// the next one in a Failback.
func WithTimeout(e Extractor, d time.Duration) Extractor {
	return ExtractorFunc(func(ctx context.Context, text string, snap Snapshot) (Intent, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return e.Extract(ctx, text, snap)
	})
}

// Safe bounds an extractor with a timeout and never fails: errors, timeouts
// and nil results all become Ambiguous{extraction_failed}.
type Safe struct {
	Extractor Extractor
	Timeout   time.Duration
	Logger    *slog.Logger
	// OnFailure, if set, is called for every swallowed error.
	OnFailure func(error)
}

func (s Safe) Extract(ctx context.Context, text string, snap Snapshot) (Intent, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	in, err := s.Extractor.Extract(ctx, text, snap)
	if err == nil && in == nil {
		err = errors.New("extractor returned no intent")
	}
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("intent extraction failed", "error", err)
		}
		if s.OnFailure != nil {
			s.OnFailure(err)
		}
		return Ambiguous{Reason: ReasonExtractionFailed}, nil
	}
	return in, nil
}
