package store

import "shapeshift/internal/platform/logger"

// Option adjusts the Store before backends are opened
type Option func(*Store) error

// WithLogger sets the logger handed to backend clients
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log
		return nil
	}
}
