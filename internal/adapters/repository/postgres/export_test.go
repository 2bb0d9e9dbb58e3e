package postgres

import "context"

// Truncate empties the entrants table and restarts the id sequence.
func Truncate(ctx context.Context, s *Store) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE entrants RESTART IDENTITY`)
	return err
}
