package players

import "sync"

// Store keeps players in join order; that order is the scoreboard order.
type Store struct {
	mu      sync.Mutex
	order   []string
	players map[string]*Player
}

func NewStore() *Store {
	return &Store{
		players: make(map[string]*Player),
	}
}

// Add inserts a player with a zero score. Re-adding an existing id renames
// the player and keeps its score and position.
func (s *Store) Add(id string, name string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[id]; ok {
		p.Name = name
		return p
	}
	player := &Player{ID: id, Name: name}
	s.players[id] = player
	s.order = append(s.order, id)
	return player
}

func (s *Store) Get(id string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.players[id]
}

func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[id]; !ok {
		return false
	}
	delete(s.players, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Standings copies the current scores in join order.
func (s *Store) Standings() []Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Standing, 0, len(s.order))
	for _, id := range s.order {
		p := s.players[id]
		out = append(out, Standing{PlayerID: p.ID, Name: p.Name, Score: p.Score})
	}
	return out
}

// IncrementScore adds one point. Scores never go down.
func (s *Store) IncrementScore(id string) *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, e := s.players[id]; e {
		p.Score++
		return p
	}
	return nil
}
