package api

import (
	"github.com/okian/arena/pkg/logger"
)

const defaultMaxLeaderboardLimit = 100

// Option configures a Server.
type Option func(*Server)

// WithMaxLeaderboardLimit caps the leaderboard limit parameter.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithRateLimit enables a per-client token bucket. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 {
			if burst < 1 {
				burst = 1
			}
			s.limiter = NewIPRateLimiter(rps, burst)
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
