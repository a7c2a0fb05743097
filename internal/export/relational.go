package export

import (
	"context"
	"fmt"

	"h2scenarios/internal/dataset"
	"h2scenarios/internal/metrics"
	"h2scenarios/internal/storage"
)

// WriteRelational opens one repository and replaces one relation per
// category, named after the category. The repository is closed on every
// path. Categories written before a failure stay written.
func WriteRelational(ctx context.Context, cfg storage.Config, tables []dataset.Category, logger Logger) error {
	repo, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: open: %w", cfg.Kind, err)
	}
	defer repo.Close()

	for _, t := range tables {
		spec, rows, err := storage.TableFromFrame(t.Name, t.Frame)
		if err != nil {
			return err
		}
		n, err := repo.ReplaceTable(ctx, spec, rows)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", cfg.Kind, t.Name, err)
		}
		metrics.IncCounter(metrics.RowsWrittenTotal, float64(n), metrics.Labels{"sink": cfg.Kind, "kind": t.Name})
		logf(logger, "stage=export sink=%s table=%s rows=%d", cfg.Kind, t.Name, n)
	}
	return nil
}
