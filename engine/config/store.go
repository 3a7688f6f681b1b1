package config

import "sync"

// Store guards the live configuration shared between the UI thread and the pipeline goroutine.
// Readers take a Snapshot under the lock and never hold it across GPU work.
type Store struct {
	mu   sync.Mutex
	cfg  Config
	subs map[int]chan Config
	next int
}

// NewStore creates a Store holding cfg.
//
// Parameters:
//   - cfg: the initial configuration
//
// Returns:
//   - *Store: the new store
func NewStore(cfg Config) *Store {
	return &Store{
		cfg:  cfg,
		subs: make(map[int]chan Config),
	}
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Update applies fn to the configuration under the lock and publishes the result to subscribers.
//
// Parameters:
//   - fn: the mutation to apply
func (s *Store) Update(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
	for _, ch := range s.subs {
		publishLatest(ch, s.cfg)
	}
}

// Subscribe returns a channel that always holds the most recent configuration after an Update.
// A slow reader only ever sees the latest value. The returned cancel function unregisters the
// channel and closes it.
//
// Returns:
//   - <-chan Config: the latest-value channel
//   - func(): cancels the subscription
func (s *Store) Subscribe() (<-chan Config, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan Config, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// publishLatest replaces any unread value in ch with cfg. Callers hold the store lock so there is
// a single sender per channel.
func publishLatest(ch chan Config, cfg Config) {
	select {
	case <-ch:
	default:
	}
	ch <- cfg
}
