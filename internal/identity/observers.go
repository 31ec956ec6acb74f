package identity

import (
	"context"
	stderrors "errors"

	"github.com/rohankatakam/reviewscout/internal/models"
)

// Observers fans a merge out to several observers. Every observer is called
// even when an earlier one fails; the errors are joined.
type Observers []MergeObserver

func (o Observers) OnMerge(ctx context.Context, d models.MergeDecision) error {
	var errs []error
	for _, obs := range o {
		if err := obs.OnMerge(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
