package engine

import (
	"fmt"
	"sort"
)

// Intent is a locked action-ledger entry: one per living seat per turn.
type Intent struct {
	Actor    uint8
	Action   ActionType
	Target   uint8 // SeatNone when untargeted
	Upgraded bool
	Order    uint32 // submission sequence within the turn
}

// Reaction is a locked reaction-ledger entry. For a challenge of a block,
// Claimant is the blocker's seat rather than the original actor's.
type Reaction struct {
	Reactor  uint8
	Kind     ReactionType
	Claimant uint8      // seat whose claim is reacted to
	Action   ActionType // action the reaction belongs to
	Role     CardType   // claimed blocking role; EmptyCard for challenges
	At       int64      // unix millis of submission
}

// ChoiceKind names the player decisions resolution may need.
type ChoiceKind uint8

const (
	ChoiceInfluenceLoss ChoiceKind = iota
	ChoiceExchangeKeep
	ChoiceAssassinPick
)

func (k ChoiceKind) String() string {
	switch k {
	case ChoiceInfluenceLoss:
		return "influence_loss"
	case ChoiceExchangeKeep:
		return "exchange_keep"
	case ChoiceAssassinPick:
		return "assassin_pick"
	}
	return "?"
}

// ParseChoiceKind maps a wire/storage name back to a ChoiceKind.
func ParseChoiceKind(s string) (ChoiceKind, bool) {
	switch s {
	case "influence_loss":
		return ChoiceInfluenceLoss, true
	case "exchange_keep":
		return ChoiceExchangeKeep, true
	case "assassin_pick":
		return ChoiceAssassinPick, true
	}
	return 0, false
}

// Choices carries the per-seat card selections submitted before the
// lockout resolved. Any missing entry falls back to the deterministic
// default policy and is recorded on the TurnResult.
type Choices struct {
	InfluenceLoss map[uint8]CardType
	ExchangeKeep  map[uint8][]CardType
	AssassinPick  map[uint8]CardType
}

// Reveal records one face-up influence loss.
type Reveal struct {
	Seat uint8
	Card CardType
}

// DefaultedChoice records a decision resolution made on a player's behalf.
type DefaultedChoice struct {
	Seat uint8
	Kind ChoiceKind
	Card CardType
}

// ActionResult is the authoritative outcome of one resolved action.
type ActionResult struct {
	Actor            uint8
	Action           ActionType
	Target           uint8
	Outcome          Outcome
	CardsRevealed    []Reveal
	CoinsTransferred int
	Description      string
}

// TurnResult is the full outcome of one turn's resolution.
type TurnResult struct {
	Turn       uint32
	Results    []ActionResult
	Eliminated []uint8
	Defaulted  []DefaultedChoice
}

// ResolveTurn resolves every locked intent against the locked reactions,
// mutating the state. Intents apply in submission order; per visible
// action the effective challenge resolves first, then the effective
// block (itself subject to one challenge round), then effects.
//
// Deterministic: the same state, ledgers and choices always produce the
// same TurnResult. The caller persists state and result atomically and
// advances the turn afterwards.
func (g *State) ResolveTurn(intents []Intent, reactions []Reaction, choices Choices) TurnResult {
	res := TurnResult{Turn: g.Turn}

	ordered := make([]Intent, len(intents))
	copy(ordered, intents)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	for _, in := range ordered {
		res.Results = append(res.Results, g.resolveOne(in, reactions, &choices, &res))
	}
	return res
}

func (g *State) resolveOne(in Intent, reactions []Reaction, choices *Choices, res *TurnResult) ActionResult {
	ar := ActionResult{Actor: in.Actor, Action: in.Action, Target: in.Target}
	actor := &g.Players[in.Actor]
	spec := Specs[in.Action]

	if !actor.Alive() {
		ar.Outcome = Failed
		ar.Description = fmt.Sprintf("seat %d's %s failed (already eliminated)", in.Actor, in.Action)
		return ar
	}
	cost := TotalCost(in.Action, in.Upgraded)
	if int(actor.Coins) < cost {
		ar.Outcome = Failed
		ar.Description = fmt.Sprintf("seat %d's %s failed (insufficient coins)", in.Actor, in.Action)
		return ar
	}

	challenged := false
	if spec.Challengeable() {
		if ch, ok := g.effectiveReaction(reactions, Challenge, in.Actor, in.Action); ok {
			challenged = true
			if actor.HandHas(spec.Claims) {
				// Claim proven: challenger loses influence, actor
				// reshuffles the shown card back and draws a replacement.
				card := g.loseInfluence(ch.Reactor, choices, res)
				ar.CardsRevealed = append(ar.CardsRevealed, Reveal{Seat: ch.Reactor, Card: card})
				g.swapProvenCard(in.Actor, spec.Claims)
				ar.Description = fmt.Sprintf("seat %d's %s was challenged by seat %d, claim proven", in.Actor, in.Action, ch.Reactor)
			} else {
				card := g.loseInfluence(in.Actor, choices, res)
				ar.CardsRevealed = append(ar.CardsRevealed, Reveal{Seat: in.Actor, Card: card})
				ar.Outcome = ChallengedLost
				ar.Description = fmt.Sprintf("seat %d's %s was challenged by seat %d, bluff caught", in.Actor, in.Action, ch.Reactor)
				return ar
			}
		}
	}
	if !actor.Alive() {
		// Lost the last influence to an earlier action this turn.
		ar.Outcome = Failed
		ar.Description = fmt.Sprintf("seat %d's %s failed (already eliminated)", in.Actor, in.Action)
		return ar
	}

	if spec.Blockable() {
		if bl, ok := g.effectiveBlock(reactions, in.Actor, in.Action); ok {
			holds := g.resolveBlockChallenge(bl, reactions, choices, res, &ar)
			if holds {
				// Block stands: effect cancelled, committed coins still spent.
				actor.Coins -= uint8(cost)
				ar.Outcome = Blocked
				ar.Description = fmt.Sprintf("seat %d's %s was blocked by seat %d claiming %s", in.Actor, in.Action, bl.Reactor, bl.Role)
				return ar
			}
		}
	}

	g.applyEffects(in, cost, challenged, choices, res, &ar)
	return ar
}

// effectiveReaction picks the earliest live reaction of the given kind
// against the claimant's action, tie-broken by timestamp then seat order.
func (g *State) effectiveReaction(reactions []Reaction, kind ReactionType, claimant uint8, action ActionType) (Reaction, bool) {
	var best Reaction
	found := false
	for _, r := range reactions {
		if r.Kind != kind || r.Claimant != claimant || r.Action != action {
			continue
		}
		if r.Reactor == claimant || r.Reactor >= g.NumPlayers || !g.Players[r.Reactor].Alive() {
			continue
		}
		if !found || r.At < best.At || (r.At == best.At && r.Reactor < best.Reactor) {
			best = r
			found = true
		}
	}
	return best, found
}

// effectiveBlock picks the earliest valid block against the action.
func (g *State) effectiveBlock(reactions []Reaction, claimant uint8, action ActionType) (Reaction, bool) {
	var best Reaction
	found := false
	for _, r := range reactions {
		if r.Kind != Block || r.Claimant != claimant || r.Action != action {
			continue
		}
		if r.Reactor == claimant || r.Reactor >= g.NumPlayers || !g.Players[r.Reactor].Alive() {
			continue
		}
		if !CanBlockWith(action, r.Role) {
			continue
		}
		if !found || r.At < best.At || (r.At == best.At && r.Reactor < best.Reactor) {
			best = r
			found = true
		}
	}
	return best, found
}

// resolveBlockChallenge runs the single challenge round against the
// blocker's claimed role. Returns true when the block stands.
func (g *State) resolveBlockChallenge(bl Reaction, reactions []Reaction, choices *Choices, res *TurnResult, ar *ActionResult) bool {
	ch, ok := g.effectiveReaction(reactions, Challenge, bl.Reactor, bl.Action)
	if !ok {
		return true
	}
	blocker := &g.Players[bl.Reactor]
	if blocker.HandHas(bl.Role) {
		card := g.loseInfluence(ch.Reactor, choices, res)
		ar.CardsRevealed = append(ar.CardsRevealed, Reveal{Seat: ch.Reactor, Card: card})
		g.swapProvenCard(bl.Reactor, bl.Role)
		return true
	}
	card := g.loseInfluence(bl.Reactor, choices, res)
	ar.CardsRevealed = append(ar.CardsRevealed, Reveal{Seat: bl.Reactor, Card: card})
	return false
}

// applyEffects spends the committed coins and applies the action.
func (g *State) applyEffects(in Intent, cost int, challenged bool, choices *Choices, res *TurnResult, ar *ActionResult) {
	actor := &g.Players[in.Actor]
	actor.Coins -= uint8(cost)
	if challenged {
		ar.Outcome = ChallengedWon
	} else {
		ar.Outcome = Success
	}

	switch in.Action {
	case Income:
		actor.Coins++
		ar.CoinsTransferred = 1
		ar.Description = fmt.Sprintf("seat %d took income", in.Actor)

	case ForeignAid:
		actor.Coins += 2
		ar.CoinsTransferred = 2
		ar.Description = fmt.Sprintf("seat %d took foreign aid", in.Actor)

	case Tax:
		actor.Coins += 3
		ar.CoinsTransferred = 3
		ar.Description = fmt.Sprintf("seat %d collected tax", in.Actor)

	case Steal:
		target := &g.Players[in.Target]
		if !target.Alive() {
			ar.Outcome = Failed
			ar.Description = fmt.Sprintf("seat %d's steal failed (no valid target)", in.Actor)
			return
		}
		max := uint8(2)
		if in.Upgraded {
			max = 3
		}
		amt := target.Coins
		if amt > max {
			amt = max
		}
		target.Coins -= amt
		actor.Coins += amt
		ar.CoinsTransferred = int(amt)
		ar.Description = fmt.Sprintf("seat %d stole %d coins from seat %d", in.Actor, amt, in.Target)

	case Assassinate:
		target := &g.Players[in.Target]
		if !target.Alive() {
			ar.Outcome = Failed
			ar.Description = fmt.Sprintf("seat %d's assassination failed (no valid target)", in.Actor)
			return
		}
		if in.Upgraded {
			if pick, ok := choices.AssassinPick[in.Actor]; ok && target.HandHas(pick) {
				g.revealCard(in.Target, pick, res)
				ar.CardsRevealed = append(ar.CardsRevealed, Reveal{Seat: in.Target, Card: pick})
				ar.Description = fmt.Sprintf("seat %d assassinated seat %d", in.Actor, in.Target)
				return
			}
		}
		card := g.loseInfluence(in.Target, choices, res)
		ar.CardsRevealed = append(ar.CardsRevealed, Reveal{Seat: in.Target, Card: card})
		ar.Description = fmt.Sprintf("seat %d assassinated seat %d", in.Actor, in.Target)

	case Exchange:
		g.applyExchange(in, choices, res, ar)

	case Coup:
		target := &g.Players[in.Target]
		if !target.Alive() {
			ar.Outcome = Failed
			ar.Description = fmt.Sprintf("seat %d's coup failed (no valid target)", in.Actor)
			return
		}
		card := g.loseInfluence(in.Target, choices, res)
		ar.CardsRevealed = append(ar.CardsRevealed, Reveal{Seat: in.Target, Card: card})
		ar.Description = fmt.Sprintf("seat %d couped seat %d", in.Actor, in.Target)
	}
}

// applyExchange draws two (three upgraded) cards, keeps the original hand
// size from the union, and reshuffles the rest into the stock.
func (g *State) applyExchange(in Intent, choices *Choices, res *TurnResult, ar *ActionResult) {
	actor := &g.Players[in.Actor]
	keepN := actor.HandLen

	draw := uint8(2)
	if in.Upgraded {
		draw = 3
	}
	pool := make([]CardType, 0, MaxHandSize+3)
	for i := uint8(0); i < actor.HandLen; i++ {
		pool = append(pool, actor.Hand[i])
	}
	for i := uint8(0); i < draw && g.StockLen > 0; i++ {
		pool = append(pool, g.drawCard())
	}

	kept := pickKeepers(pool, choices.ExchangeKeep[in.Actor], keepN)
	if choices.ExchangeKeep[in.Actor] == nil {
		for _, c := range kept {
			res.Defaulted = append(res.Defaulted, DefaultedChoice{Seat: in.Actor, Kind: ChoiceExchangeKeep, Card: c})
		}
	}

	// Remove kept cards from the pool; the remainder goes back.
	rest := pool
	for _, k := range kept {
		for i, c := range rest {
			if c == k {
				rest = append(rest[:i], rest[i+1:]...)
				break
			}
		}
	}
	actor.HandLen = 0
	for _, c := range kept {
		actor.Hand[actor.HandLen] = c
		actor.HandLen++
	}
	for _, c := range rest {
		g.Stock[g.StockLen] = c
		g.StockLen++
	}
	g.shuffleStock()

	ar.Description = fmt.Sprintf("seat %d exchanged cards with the court deck", in.Actor)
}

// pickKeepers selects keepN cards from pool. A submitted choice is
// honored card-by-card where the pool contains it; any shortfall and the
// no-choice case fall back to lowest-enum-value first.
func pickKeepers(pool, chosen []CardType, keepN uint8) []CardType {
	kept := make([]CardType, 0, keepN)
	avail := make([]CardType, len(pool))
	copy(avail, pool)

	for _, want := range chosen {
		if uint8(len(kept)) == keepN {
			break
		}
		for i, c := range avail {
			if c == want {
				kept = append(kept, c)
				avail = append(avail[:i], avail[i+1:]...)
				break
			}
		}
	}
	sort.Slice(avail, func(i, j int) bool { return avail[i] < avail[j] })
	for uint8(len(kept)) < keepN && len(avail) > 0 {
		kept = append(kept, avail[0])
		avail = avail[1:]
	}
	return kept
}

// revealCard moves a specific role from the seat's hand to its face-up
// pile, marking elimination when the hand empties.
func (g *State) revealCard(seat uint8, card CardType, res *TurnResult) {
	p := &g.Players[seat]
	if !g.removeFromHand(seat, card) {
		return
	}
	p.Revealed[p.RevealedLen] = card
	p.RevealedLen++
	if !p.Alive() {
		res.Eliminated = append(res.Eliminated, seat)
	}
}

// loseInfluence makes the seat reveal one card: the submitted choice when
// held, otherwise the deterministic default (lowest enum value first).
func (g *State) loseInfluence(seat uint8, choices *Choices, res *TurnResult) CardType {
	p := &g.Players[seat]
	if p.HandLen == 0 {
		return EmptyCard
	}
	card, chosen := choices.InfluenceLoss[seat]
	if !chosen || !p.HandHas(card) {
		card = g.lowestInHand(seat)
		res.Defaulted = append(res.Defaulted, DefaultedChoice{Seat: seat, Kind: ChoiceInfluenceLoss, Card: card})
	}
	g.revealCard(seat, card, res)
	return card
}

// swapProvenCard returns the shown role to the stock, reshuffles and
// draws a replacement into the prover's hand.
func (g *State) swapProvenCard(seat uint8, role CardType) {
	if !g.removeFromHand(seat, role) {
		return
	}
	g.returnCard(role)
	p := &g.Players[seat]
	p.Hand[p.HandLen] = g.drawCard()
	p.HandLen++
}
