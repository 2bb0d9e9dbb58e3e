package dedupe

// Option applies a configuration option to the idempotency store.
type Option func(*inMemoryStore)

// WithMaxSize sets the maximum number of remembered results.
// Zero or negative values mean unbounded.
func WithMaxSize(size int) Option {
	return func(s *inMemoryStore) {
		s.maxSize = size
	}
}
