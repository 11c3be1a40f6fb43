package database

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"slowcoup/engine"
	"slowcoup/internal/models"
)

// Memory is an in-process Store with the same conflict and idempotence
// semantics as Postgres. Used by tests and local development.
type Memory struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.GameSession
	players  map[uuid.UUID][]*models.Player
	actions  map[uuid.UUID]map[uint32][]*models.ActionRow
	reacts   map[uuid.UUID]map[uint32][]*models.ReactionRow
	choices  map[uuid.UUID]map[uint32][]*models.ChoiceRow
	results  map[uuid.UUID]map[uint32]*models.TurnResultRow
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]*models.GameSession),
		players:  make(map[uuid.UUID][]*models.Player),
		actions:  make(map[uuid.UUID]map[uint32][]*models.ActionRow),
		reacts:   make(map[uuid.UUID]map[uint32][]*models.ReactionRow),
		choices:  make(map[uuid.UUID]map[uint32][]*models.ChoiceRow),
		results:  make(map[uuid.UUID]map[uint32]*models.TurnResultRow),
	}
}

func cloneSession(s *models.GameSession) *models.GameSession {
	c := *s
	c.DeckState = append([]engine.CardType(nil), s.DeckState...)
	c.Winners = append([]uuid.UUID(nil), s.Winners...)
	return &c
}

func clonePlayer(p *models.Player) *models.Player {
	c := *p
	c.Hand = append([]engine.CardType(nil), p.Hand...)
	c.Revealed = append([]engine.CardType(nil), p.Revealed...)
	return &c
}

func (m *Memory) CreateSession(_ context.Context, s *models.GameSession, host *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
	m.players[s.ID] = []*models.Player{clonePlayer(host)}
	return nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s), nil
}

func (m *Memory) UpdateSession(_ context.Context, s *models.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSessionLocked(s)
}

func (m *Memory) updateSessionLocked(s *models.GameSession) error {
	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != s.Version {
		return ErrConflict
	}
	s.Version++
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *Memory) ListActiveSessions(_ context.Context) ([]*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.GameSession
	for _, s := range m.sessions {
		if !s.Phase.Terminal() {
			out = append(out, cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AddPlayer(_ context.Context, p *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[p.SessionID]; !ok {
		return ErrNotFound
	}
	m.players[p.SessionID] = append(m.players[p.SessionID], clonePlayer(p))
	return nil
}

func (m *Memory) RemovePlayer(_ context.Context, sessionID, playerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.players[sessionID]
	for i, p := range list {
		if p.ID == playerID {
			m.players[sessionID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (m *Memory) GetPlayers(_ context.Context, sessionID uuid.UUID) ([]*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.players[sessionID]
	out := make([]*models.Player, len(list))
	for i, p := range list {
		out[i] = clonePlayer(p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out, nil
}

func (m *Memory) UpdatePlayers(_ context.Context, players []*models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePlayersLocked(players)
	return nil
}

func (m *Memory) updatePlayersLocked(players []*models.Player) {
	for _, p := range players {
		for i, cur := range m.players[p.SessionID] {
			if cur.ID == p.ID {
				m.players[p.SessionID][i] = clonePlayer(p)
				break
			}
		}
	}
}

func (m *Memory) UpsertAction(_ context.Context, a *models.ActionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTurn := m.actions[a.SessionID]
	if byTurn == nil {
		byTurn = make(map[uint32][]*models.ActionRow)
		m.actions[a.SessionID] = byTurn
	}
	cp := *a
	for i, cur := range byTurn[a.Turn] {
		if cur.Seat == a.Seat {
			if cur.Locked {
				return nil
			}
			byTurn[a.Turn][i] = &cp
			return nil
		}
	}
	byTurn[a.Turn] = append(byTurn[a.Turn], &cp)
	return nil
}

func (m *Memory) GetActions(_ context.Context, sessionID uuid.UUID, turn uint32) ([]*models.ActionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.actions[sessionID][turn]
	out := make([]*models.ActionRow, len(list))
	for i, a := range list {
		cp := *a
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].Seat < out[j].Seat
	})
	return out, nil
}

func (m *Memory) LockActions(_ context.Context, sessionID uuid.UUID, turn uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actions[sessionID][turn] {
		a.Locked = true
	}
	return nil
}

func (m *Memory) UpsertReaction(_ context.Context, r *models.ReactionRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTurn := m.reacts[r.SessionID]
	if byTurn == nil {
		byTurn = make(map[uint32][]*models.ReactionRow)
		m.reacts[r.SessionID] = byTurn
	}
	cp := *r
	for i, cur := range byTurn[r.Turn] {
		if cur.ReactorSeat == r.ReactorSeat && cur.ClaimantSeat == r.ClaimantSeat && cur.Action == r.Action {
			if cur.Locked {
				return nil
			}
			byTurn[r.Turn][i] = &cp
			return nil
		}
	}
	byTurn[r.Turn] = append(byTurn[r.Turn], &cp)
	return nil
}

func (m *Memory) GetReactions(_ context.Context, sessionID uuid.UUID, turn uint32) ([]*models.ReactionRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.reacts[sessionID][turn]
	out := make([]*models.ReactionRow, len(list))
	for i, r := range list {
		cp := *r
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].ReactorSeat < out[j].ReactorSeat
	})
	return out, nil
}

func (m *Memory) LockReactions(_ context.Context, sessionID uuid.UUID, turn uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reacts[sessionID][turn] {
		r.Locked = true
	}
	return nil
}

func (m *Memory) UpsertChoice(_ context.Context, c *models.ChoiceRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTurn := m.choices[c.SessionID]
	if byTurn == nil {
		byTurn = make(map[uint32][]*models.ChoiceRow)
		m.choices[c.SessionID] = byTurn
	}
	cp := *c
	cp.Cards = append([]engine.CardType(nil), c.Cards...)
	for i, cur := range byTurn[c.Turn] {
		if cur.Seat == c.Seat && cur.Kind == c.Kind {
			byTurn[c.Turn][i] = &cp
			return nil
		}
	}
	byTurn[c.Turn] = append(byTurn[c.Turn], &cp)
	return nil
}

func (m *Memory) GetChoices(_ context.Context, sessionID uuid.UUID, turn uint32) ([]*models.ChoiceRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.choices[sessionID][turn]
	out := make([]*models.ChoiceRow, len(list))
	for i, c := range list {
		cp := *c
		cp.Cards = append([]engine.CardType(nil), c.Cards...)
		out[i] = &cp
	}
	return out, nil
}

func (m *Memory) SaveResolution(_ context.Context, w *ResolutionWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byTurn := m.results[w.Result.SessionID]
	if byTurn == nil {
		byTurn = make(map[uint32]*models.TurnResultRow)
		m.results[w.Result.SessionID] = byTurn
	}
	if _, ok := byTurn[w.Result.Turn]; ok {
		return ErrAlreadyResolved
	}
	if err := m.updateSessionLocked(w.Session); err != nil {
		return err
	}
	m.updatePlayersLocked(w.Players)
	cp := *w.Result
	byTurn[w.Result.Turn] = &cp
	return nil
}

func (m *Memory) GetTurnResult(_ context.Context, sessionID uuid.UUID, turn uint32) (*models.TurnResultRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[sessionID][turn]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}
