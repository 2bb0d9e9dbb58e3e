package arena

import (
	"context"
	"math/rand/v2"
	"sync"
)

// Source yields uniform draws in [0,1).
type Source interface {
	Draw(ctx context.Context) (float64, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (float64, error)

// Draw implements Source.
func (f SourceFunc) Draw(ctx context.Context) (float64, error) { return f(ctx) }

// LocalSource draws from the process-wide math/rand/v2 generator, which is
// safe for concurrent use.
type LocalSource struct{}

// Draw implements Source.
func (LocalSource) Draw(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return rand.Float64(), nil //nolint:gosec // contest outcomes are not security sensitive
}

// Fixed returns a Source that replays draws in order and then repeats the last one.
func Fixed(draws ...float64) Source {
	var (
		mu sync.Mutex
		i  int
	)
	return SourceFunc(func(context.Context) (float64, error) {
		if len(draws) == 0 {
			return 0, nil
		}
		mu.Lock()
		defer mu.Unlock()
		d := draws[min(i, len(draws)-1)]
		i++
		return d, nil
	})
}
