// engine_state.go bridges stored rows and the rules core.
package game

import (
	"slowcoup/engine"
	"slowcoup/internal/models"
)

// buildEngineState reconstructs the rules-core state from the session
// row and its players. Seat order is authoritative.
func buildEngineState(sess *models.GameSession, players []*models.Player) engine.State {
	var st engine.State
	st.NumPlayers = uint8(len(players))
	st.Turn = sess.Turn
	st.RNG = sess.RNGState
	if st.RNG == 0 {
		st.RNG = 1
	}
	for i, c := range sess.DeckState {
		st.Stock[i] = c
	}
	st.StockLen = uint8(len(sess.DeckState))

	for _, p := range players {
		ep := &st.Players[p.Seat]
		for i, c := range p.Hand {
			ep.Hand[i] = c
		}
		ep.HandLen = uint8(len(p.Hand))
		for i, c := range p.Revealed {
			ep.Revealed[i] = c
		}
		ep.RevealedLen = uint8(len(p.Revealed))
		ep.Coins = uint8(p.Coins)
	}
	return st
}

// writePlayerFromEngine copies a seat's engine state back onto the row.
func writePlayerFromEngine(p *models.Player, ep *engine.PlayerState) {
	p.Coins = int(ep.Coins)
	p.Hand = append(p.Hand[:0], ep.Hand[:ep.HandLen]...)
	p.Revealed = append(p.Revealed[:0], ep.Revealed[:ep.RevealedLen]...)
	p.Alive = ep.Alive()
}

// writeSessionFromEngine copies the deck and RNG state back onto the row.
func writeSessionFromEngine(sess *models.GameSession, st *engine.State) {
	sess.DeckState = append(sess.DeckState[:0], st.Stock[:st.StockLen]...)
	sess.RNGState = st.RNG
}
