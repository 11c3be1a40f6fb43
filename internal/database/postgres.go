package database

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"slowcoup/engine"
	"slowcoup/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// querier covers both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool against the DSN and verifies the connection.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// EnsureSchema applies the idempotent schema.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// ---------------------------------------------------------------------------
// card <-> text[] helpers
// ---------------------------------------------------------------------------

func cardsToNames(cards []engine.CardType) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func namesToCards(names []string) []engine.CardType {
	out := make([]engine.CardType, len(names))
	for i, n := range names {
		out[i] = engine.ParseCardType(n)
	}
	return out
}

// ---------------------------------------------------------------------------
// sessions
// ---------------------------------------------------------------------------

const sessionCols = `id, host_id, phase, turn, turn_limit, phase_ends_at,
	action_ms, reaction_ms, choices_ms, broadcast_ms, ending_ms,
	deck_state, rng_state, winners, rematch_count, version, created_at, updated_at`

func scanSession(row pgx.Row) (*models.GameSession, error) {
	var (
		s                               models.GameSession
		deck                            []string
		rng                             int64
		act, react, choices, bc, ending int64
	)
	err := row.Scan(&s.ID, &s.HostID, &s.Phase, &s.Turn, &s.TurnLimit, &s.PhaseEndsAt,
		&act, &react, &choices, &bc, &ending,
		&deck, &rng, &s.Winners, &s.RematchCount, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Durations = models.PhaseDurations{
		Action:    time.Duration(act) * time.Millisecond,
		Reaction:  time.Duration(react) * time.Millisecond,
		Choices:   time.Duration(choices) * time.Millisecond,
		Broadcast: time.Duration(bc) * time.Millisecond,
		Ending:    time.Duration(ending) * time.Millisecond,
	}
	s.DeckState = namesToCards(deck)
	s.RNGState = uint64(rng)
	return &s, nil
}

func (p *Postgres) CreateSession(ctx context.Context, s *models.GameSession, host *models.Player) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertSession(ctx, tx, s); err != nil {
		return err
	}
	if err := insertPlayer(ctx, tx, host); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertSession(ctx context.Context, q querier, s *models.GameSession) error {
	_, err := q.Exec(ctx, `
		INSERT INTO game_sessions (`+sessionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		s.ID, s.HostID, s.Phase, s.Turn, s.TurnLimit, s.PhaseEndsAt,
		s.Durations.Action.Milliseconds(), s.Durations.Reaction.Milliseconds(),
		s.Durations.Choices.Milliseconds(), s.Durations.Broadcast.Milliseconds(),
		s.Durations.Ending.Milliseconds(),
		cardsToNames(s.DeckState), int64(s.RNGState), s.Winners,
		s.RematchCount, s.Version, s.CreatedAt, s.UpdatedAt)
	return err
}

func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*models.GameSession, error) {
	return scanSession(p.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM game_sessions WHERE id = $1`, id))
}

func (p *Postgres) UpdateSession(ctx context.Context, s *models.GameSession) error {
	return updateSession(ctx, p.pool, s)
}

// updateSession bumps the version; ErrConflict when the read version is
// no longer current.
func updateSession(ctx context.Context, q querier, s *models.GameSession) error {
	tag, err := q.Exec(ctx, `
		UPDATE game_sessions SET
			phase = $2, turn = $3, turn_limit = $4, phase_ends_at = $5,
			deck_state = $6, rng_state = $7, winners = $8, rematch_count = $9,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $10`,
		s.ID, s.Phase, s.Turn, s.TurnLimit, s.PhaseEndsAt,
		cardsToNames(s.DeckState), int64(s.RNGState), s.Winners, s.RematchCount,
		s.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	s.Version++
	return nil
}

func (p *Postgres) ListActiveSessions(ctx context.Context) ([]*models.GameSession, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+sessionCols+` FROM game_sessions WHERE phase NOT IN ($1, $2)`,
		models.PhaseCompleted, models.PhaseCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.GameSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// players
// ---------------------------------------------------------------------------

const playerCols = `id, session_id, seat, display_name, coins, hand, revealed, alive, joined_at`

func insertPlayer(ctx context.Context, q querier, pl *models.Player) error {
	_, err := q.Exec(ctx, `
		INSERT INTO players (`+playerCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		pl.ID, pl.SessionID, int16(pl.Seat), pl.DisplayName, pl.Coins,
		cardsToNames(pl.Hand), cardsToNames(pl.Revealed), pl.Alive, pl.JoinedAt)
	return err
}

func (p *Postgres) AddPlayer(ctx context.Context, pl *models.Player) error {
	return insertPlayer(ctx, p.pool, pl)
}

func (p *Postgres) RemovePlayer(ctx context.Context, sessionID, playerID uuid.UUID) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM players WHERE session_id = $1 AND id = $2`, sessionID, playerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetPlayers(ctx context.Context, sessionID uuid.UUID) ([]*models.Player, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+playerCols+` FROM players WHERE session_id = $1 ORDER BY seat`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Player
	for rows.Next() {
		var (
			pl             models.Player
			seat           int16
			hand, revealed []string
		)
		if err := rows.Scan(&pl.ID, &pl.SessionID, &seat, &pl.DisplayName, &pl.Coins,
			&hand, &revealed, &pl.Alive, &pl.JoinedAt); err != nil {
			return nil, err
		}
		pl.Seat = uint8(seat)
		pl.Hand = namesToCards(hand)
		pl.Revealed = namesToCards(revealed)
		out = append(out, &pl)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdatePlayers(ctx context.Context, players []*models.Player) error {
	return updatePlayers(ctx, p.pool, players)
}

func updatePlayers(ctx context.Context, q querier, players []*models.Player) error {
	// Seat compaction only ever moves a seat down into a vacated slot,
	// so applying rows in ascending seat order keeps the UNIQUE
	// (session_id, seat) constraint satisfied at every step.
	sorted := make([]*models.Player, len(players))
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seat < sorted[j].Seat })
	for _, pl := range sorted {
		_, err := q.Exec(ctx, `
			UPDATE players SET seat = $3, coins = $4, hand = $5, revealed = $6, alive = $7
			WHERE session_id = $1 AND id = $2`,
			pl.SessionID, pl.ID, int16(pl.Seat), pl.Coins,
			cardsToNames(pl.Hand), cardsToNames(pl.Revealed), pl.Alive)
		if err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// ledgers
// ---------------------------------------------------------------------------

func (p *Postgres) UpsertAction(ctx context.Context, a *models.ActionRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO actions (session_id, turn, seat, action, target_seat, upgraded, submitted_at, locked)
		VALUES ($1,$2,$3,$4,$5,$6,$7,FALSE)
		ON CONFLICT (session_id, turn, seat) DO UPDATE SET
			action = EXCLUDED.action, target_seat = EXCLUDED.target_seat,
			upgraded = EXCLUDED.upgraded, submitted_at = EXCLUDED.submitted_at
		WHERE actions.locked = FALSE`,
		a.SessionID, a.Turn, int16(a.Seat), a.Action.String(), int16(a.TargetSeat),
		a.Upgraded, a.SubmittedAt)
	return err
}

func (p *Postgres) GetActions(ctx context.Context, sessionID uuid.UUID, turn uint32) ([]*models.ActionRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT session_id, turn, seat, action, target_seat, upgraded, submitted_at, locked
		FROM actions WHERE session_id = $1 AND turn = $2 ORDER BY submitted_at, seat`,
		sessionID, turn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ActionRow
	for rows.Next() {
		var (
			a            models.ActionRow
			seat, target int16
			action       string
		)
		if err := rows.Scan(&a.SessionID, &a.Turn, &seat, &action, &target,
			&a.Upgraded, &a.SubmittedAt, &a.Locked); err != nil {
			return nil, err
		}
		a.Seat = uint8(seat)
		a.TargetSeat = uint8(target)
		a.Action = engine.ParseActionType(action)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (p *Postgres) LockActions(ctx context.Context, sessionID uuid.UUID, turn uint32) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE actions SET locked = TRUE WHERE session_id = $1 AND turn = $2`,
		sessionID, turn)
	return err
}

func (p *Postgres) UpsertReaction(ctx context.Context, r *models.ReactionRow) error {
	role := ""
	if r.Role != engine.EmptyCard {
		role = r.Role.String()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO reactions (session_id, turn, reactor_seat, claimant_seat, action, kind, role, submitted_at, locked)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,FALSE)
		ON CONFLICT (session_id, turn, reactor_seat, claimant_seat, action) DO UPDATE SET
			kind = EXCLUDED.kind, role = EXCLUDED.role, submitted_at = EXCLUDED.submitted_at
		WHERE reactions.locked = FALSE`,
		r.SessionID, r.Turn, int16(r.ReactorSeat), int16(r.ClaimantSeat),
		r.Action.String(), r.Kind.String(), role, r.SubmittedAt)
	return err
}

func (p *Postgres) GetReactions(ctx context.Context, sessionID uuid.UUID, turn uint32) ([]*models.ReactionRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT session_id, turn, reactor_seat, claimant_seat, action, kind, role, submitted_at, locked
		FROM reactions WHERE session_id = $1 AND turn = $2 ORDER BY submitted_at, reactor_seat`,
		sessionID, turn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ReactionRow
	for rows.Next() {
		var (
			r                  models.ReactionRow
			reactor, claimant  int16
			action, kind, role string
		)
		if err := rows.Scan(&r.SessionID, &r.Turn, &reactor, &claimant,
			&action, &kind, &role, &r.SubmittedAt, &r.Locked); err != nil {
			return nil, err
		}
		r.ReactorSeat = uint8(reactor)
		r.ClaimantSeat = uint8(claimant)
		r.Action = engine.ParseActionType(action)
		r.Kind = engine.ParseReactionType(kind)
		r.Role = engine.EmptyCard
		if role != "" {
			r.Role = engine.ParseCardType(role)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (p *Postgres) LockReactions(ctx context.Context, sessionID uuid.UUID, turn uint32) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE reactions SET locked = TRUE WHERE session_id = $1 AND turn = $2`,
		sessionID, turn)
	return err
}

func (p *Postgres) UpsertChoice(ctx context.Context, c *models.ChoiceRow) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO choices (session_id, turn, seat, kind, cards, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id, turn, seat, kind) DO UPDATE SET
			cards = EXCLUDED.cards, submitted_at = EXCLUDED.submitted_at`,
		c.SessionID, c.Turn, int16(c.Seat), c.Kind.String(),
		cardsToNames(c.Cards), c.SubmittedAt)
	return err
}

func (p *Postgres) GetChoices(ctx context.Context, sessionID uuid.UUID, turn uint32) ([]*models.ChoiceRow, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT session_id, turn, seat, kind, cards, submitted_at
		FROM choices WHERE session_id = $1 AND turn = $2`,
		sessionID, turn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ChoiceRow
	for rows.Next() {
		var (
			c     models.ChoiceRow
			seat  int16
			kind  string
			cards []string
		)
		if err := rows.Scan(&c.SessionID, &c.Turn, &seat, &kind, &cards, &c.SubmittedAt); err != nil {
			return nil, err
		}
		c.Seat = uint8(seat)
		k, ok := engine.ParseChoiceKind(kind)
		if !ok {
			continue
		}
		c.Kind = k
		c.Cards = namesToCards(cards)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// resolution
// ---------------------------------------------------------------------------

func (p *Postgres) SaveResolution(ctx context.Context, w *ResolutionWrite) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	payload, err := json.Marshal(w.Result.Result)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO turn_results (session_id, turn, result, created_at)
		VALUES ($1,$2,$3,$4) ON CONFLICT DO NOTHING`,
		w.Result.SessionID, w.Result.Turn, payload, w.Result.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResolved
	}
	if err := updatePlayers(ctx, tx, w.Players); err != nil {
		return err
	}
	if err := updateSession(ctx, tx, w.Session); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) GetTurnResult(ctx context.Context, sessionID uuid.UUID, turn uint32) (*models.TurnResultRow, error) {
	var (
		row     models.TurnResultRow
		payload []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT session_id, turn, result, created_at FROM turn_results
		 WHERE session_id = $1 AND turn = $2`, sessionID, turn).
		Scan(&row.SessionID, &row.Turn, &payload, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &row.Result); err != nil {
		return nil, err
	}
	return &row, nil
}
