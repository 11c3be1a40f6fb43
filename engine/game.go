// Package engine implements the bluffing-game rules core.
//
// The package is pure and deterministic: no I/O, no clocks, no allocation
// on the hot path. Given the same seed and the same ledgers, ResolveTurn
// produces the same TurnResult, which is what lets the service layer
// replay a resolution after a crash and get an identical outcome.
package engine

// PlayerState holds one seat's coins, hidden hand and face-up reveals.
type PlayerState struct {
	Hand        [MaxHandSize]CardType
	HandLen     uint8
	Revealed    [CardsPerPlayer]CardType
	RevealedLen uint8
	Coins       uint8
}

// Alive reports whether the seat still holds hidden influence.
func (p *PlayerState) Alive() bool { return p.HandLen > 0 }

// HandHas reports whether the hidden hand contains the given role.
func (p *PlayerState) HandHas(role CardType) bool {
	for i := uint8(0); i < p.HandLen; i++ {
		if p.Hand[i] == role {
			return true
		}
	}
	return false
}

// State is the complete, self-contained game state. Flat value type so
// snapshots are plain copies.
type State struct {
	Players    [MaxPlayers]PlayerState
	NumPlayers uint8
	Stock      [DeckSize]CardType
	StockLen   uint8
	Turn       uint32
	RNG        uint64
}

// ---------------------------------------------------------------------------
// xorshift64 RNG, inline, no interface
// ---------------------------------------------------------------------------

func (g *State) nextRand() uint64 {
	x := g.RNG
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	g.RNG = x
	return x
}

// randN returns a random number in [0, n).
func (g *State) randN(n uint64) uint64 {
	return g.nextRand() % n
}

// ---------------------------------------------------------------------------
// NewGame and Deal
// ---------------------------------------------------------------------------

// NewGame initializes a State with the given seed. The fifteen-card deck
// (three copies of each role) is built but not yet shuffled or dealt.
func NewGame(numPlayers uint8, seed uint64) State {
	var g State
	g.RNG = seed
	if g.RNG == 0 {
		g.RNG = 1 // xorshift can't start at 0
	}
	g.NumPlayers = numPlayers
	g.Turn = 1

	idx := 0
	for role := Duke; role < NumCardTypes; role++ {
		for c := 0; c < DeckCopies; c++ {
			g.Stock[idx] = role
			idx++
		}
	}
	g.StockLen = uint8(DeckSize)
	return g
}

// Deal shuffles the deck and gives each seat two cards and two coins.
func (g *State) Deal() {
	g.shuffleStock()
	for p := uint8(0); p < g.NumPlayers; p++ {
		for c := 0; c < CardsPerPlayer; c++ {
			g.Players[p].Hand[c] = g.drawCard()
		}
		g.Players[p].HandLen = CardsPerPlayer
		g.Players[p].Coins = StartingCoins
	}
}

// shuffleStock performs a Fisher-Yates shuffle over the live stock.
func (g *State) shuffleStock() {
	for i := int(g.StockLen) - 1; i > 0; i-- {
		j := int(g.randN(uint64(i + 1)))
		g.Stock[i], g.Stock[j] = g.Stock[j], g.Stock[i]
	}
}

// drawCard removes and returns the top stock card. Caller must ensure the
// stock is non-empty; with a fifteen-card deck and at most six two-card
// hands the resolution paths never exhaust it.
func (g *State) drawCard() CardType {
	g.StockLen--
	c := g.Stock[g.StockLen]
	g.Stock[g.StockLen] = EmptyCard
	return c
}

// returnCard puts a card back into the stock and reshuffles.
func (g *State) returnCard(c CardType) {
	g.Stock[g.StockLen] = c
	g.StockLen++
	g.shuffleStock()
}

// removeFromHand removes the first copy of role from the seat's hand.
// Returns false if the seat does not hold the role.
func (g *State) removeFromHand(seat uint8, role CardType) bool {
	p := &g.Players[seat]
	for i := uint8(0); i < p.HandLen; i++ {
		if p.Hand[i] == role {
			p.HandLen--
			p.Hand[i] = p.Hand[p.HandLen]
			p.Hand[p.HandLen] = EmptyCard
			return true
		}
	}
	return false
}

// lowestInHand returns the lowest-valued role in the seat's hand. It is
// the deterministic fallback when a player never chose which card to give
// up. EmptyCard for an empty hand.
func (g *State) lowestInHand(seat uint8) CardType {
	p := &g.Players[seat]
	best := EmptyCard
	for i := uint8(0); i < p.HandLen; i++ {
		if best == EmptyCard || p.Hand[i] < best {
			best = p.Hand[i]
		}
	}
	return best
}

// AliveCount returns the number of seats still holding influence.
func (g *State) AliveCount() uint8 {
	n := uint8(0)
	for p := uint8(0); p < g.NumPlayers; p++ {
		if g.Players[p].Alive() {
			n++
		}
	}
	return n
}

// CardCount sums cards across hands, reveals and stock. It must always
// equal DeckSize.
func (g *State) CardCount() int {
	n := int(g.StockLen)
	for p := uint8(0); p < g.NumPlayers; p++ {
		n += int(g.Players[p].HandLen) + int(g.Players[p].RevealedLen)
	}
	return n
}
