package smoketest

import "time"

// Defaults used by the command line tool.
const (
	DefaultBaseURL = "http://localhost:9080"
	DefaultBoxers  = 8
	DefaultRounds  = 20
	DefaultWorkers = 4
	DefaultTimeout = 10 * time.Second
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL string        // Base URL of the service
	Boxers  int           // Number of boxers to register
	Rounds  int           // Number of fights to run
	Workers int           // Concurrent registrations
	Timeout time.Duration // HTTP request timeout
	Seed    uint64        // Seed for generated boxers, 0 picks a random one
	Verbose bool          // Log every fight
}

// Boxer is the registration payload.
type Boxer struct {
	Name   string  `json:"name"`
	Weight int     `json:"weight"`
	Height int     `json:"height"`
	Reach  float64 `json:"reach"`
	Age    int     `json:"age"`
}

// Entrant is an entrant as returned by the service.
type Entrant struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Weight      int     `json:"weight"`
	Height      int     `json:"height"`
	Reach       float64 `json:"reach"`
	Age         int     `json:"age"`
	WeightClass string  `json:"weight_class"`
	Fights      int64   `json:"fights"`
	Wins        int64   `json:"wins"`
	Losses      int64   `json:"losses"`
	WinPct      float64 `json:"win_pct"`
	Deleted     bool    `json:"deleted"`
}

// Arena is the arena state as returned by the service.
type Arena struct {
	State    string    `json:"state"`
	Entrants []Entrant `json:"entrants"`
}

// Fight is a resolved contest.
type Fight struct {
	WinnerID          int64   `json:"winner_id"`
	LoserID           int64   `json:"loser_id"`
	WinnerProbability float64 `json:"winner_probability"`
	Roll              float64 `json:"roll"`
	Replayed          bool    `json:"replayed"`
}

// Standing is one leaderboard row.
type Standing struct {
	Rank   int     `json:"rank"`
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Fights int64   `json:"fights"`
	Wins   int64   `json:"wins"`
	WinPct float64 `json:"win_pct"`
	Value  float64 `json:"value"`
}

// Stats holds run statistics.
type Stats struct {
	BoxersCreated int
	Fights        int
	Replays       int
	Deleted       int
	Standings     int
	StartTime     time.Time
	Duration      time.Duration
}
