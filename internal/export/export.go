package export

import (
	"context"
	"fmt"
	"sort"

	"h2scenarios/internal/dataset"
	"h2scenarios/internal/storage"
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

func logf(l Logger, format string, args ...any) {
	if l != nil {
		l.Printf(format, args...)
	}
}

// Target is a resolved sink plus where it writes.
type Target struct {
	Sink   Sink
	Output string
	// BatchSize bounds rows per INSERT for relational sinks.
	BatchSize int
	// Attrs are written as global attributes by the array sink.
	Attrs map[string]string
}

// Export writes tables (relational and xlsx sinks) or ds (array sink) to t.
// ds may be nil for sinks that do not need it.
func Export(ctx context.Context, t Target, tables []dataset.Category, ds *dataset.Dataset, logger Logger) error {
	if t.Output == "" {
		return fmt.Errorf("%s: no output location", t.Sink)
	}
	switch {
	case t.Sink == SinkArrayFile:
		if ds == nil {
			return fmt.Errorf("%s: no dataset to write", t.Sink)
		}
		if err := WriteNetCDF(t.Output, ds, t.Attrs); err != nil {
			return err
		}
		logf(logger, "stage=export sink=%s path=%s dims=%d vars=%d", t.Sink, t.Output, len(ds.Dims), len(ds.Vars))
		return nil

	case t.Sink == SinkXLSX:
		if err := WriteXLSX(t.Output, tables); err != nil {
			return err
		}
		logf(logger, "stage=export sink=%s path=%s sheets=%d", t.Sink, t.Output, len(tables))
		return nil

	case t.Sink.Relational():
		cfg := storage.Config{Kind: t.Sink.StorageKind(), DSN: t.Output, BatchSize: t.BatchSize}
		return WriteRelational(ctx, cfg, tables, logger)

	default:
		return fmt.Errorf("%w %q", ErrUnknownSink, t.Sink)
	}
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
