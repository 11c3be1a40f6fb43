package engine

import (
	"reflect"
	"testing"
)

// testState builds a State with fixed hands; the rest of the fifteen-card
// deck goes to the stock unshuffled.
func testState(t *testing.T, hands ...[]CardType) State {
	t.Helper()
	var g State
	g.RNG = 1
	g.Turn = 1
	g.NumPlayers = uint8(len(hands))

	remaining := [NumCardTypes]int{}
	for r := Duke; r < NumCardTypes; r++ {
		remaining[r] = DeckCopies
	}
	for seat, hand := range hands {
		for i, c := range hand {
			g.Players[seat].Hand[i] = c
			remaining[c]--
		}
		g.Players[seat].HandLen = uint8(len(hand))
		g.Players[seat].Coins = StartingCoins
	}
	for r := Duke; r < NumCardTypes; r++ {
		if remaining[r] < 0 {
			t.Fatalf("test hands use more than %d copies of %s", DeckCopies, r)
		}
		for i := 0; i < remaining[r]; i++ {
			g.Stock[g.StockLen] = r
			g.StockLen++
		}
	}
	return g
}

func checkConservation(t *testing.T, g *State) {
	t.Helper()
	if got := g.CardCount(); got != DeckSize {
		t.Errorf("card conservation broken: counted %d, want %d", got, DeckSize)
	}
}

func TestResolveTaxUnchallenged(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Contessa},
		[]CardType{Captain, Assassin},
	)
	res := g.ResolveTurn([]Intent{{Actor: 0, Action: Tax, Target: SeatNone, Order: 1}}, nil, Choices{})

	if len(res.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(res.Results))
	}
	r := res.Results[0]
	if r.Outcome != Success {
		t.Errorf("expected success, got %s", r.Outcome)
	}
	if g.Players[0].Coins != StartingCoins+3 {
		t.Errorf("expected %d coins, got %d", StartingCoins+3, g.Players[0].Coins)
	}
	if len(r.CardsRevealed) != 0 {
		t.Errorf("no card should be revealed, got %v", r.CardsRevealed)
	}
	checkConservation(t, &g)
}

func TestResolveIncomeSilent(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Contessa},
		[]CardType{Captain, Assassin},
	)
	res := g.ResolveTurn([]Intent{{Actor: 1, Action: Income, Target: SeatNone, Order: 1}}, nil, Choices{})
	if res.Results[0].Outcome != Success {
		t.Errorf("expected success, got %s", res.Results[0].Outcome)
	}
	if g.Players[1].Coins != StartingCoins+1 {
		t.Errorf("expected %d coins, got %d", StartingCoins+1, g.Players[1].Coins)
	}
}

func TestResolveStealChallengedBluffCaught(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Contessa}, // claims captain without one
		[]CardType{Captain, Assassin},
	)
	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Steal, Target: 1, Order: 1}},
		[]Reaction{{Reactor: 1, Kind: Challenge, Claimant: 0, Action: Steal, At: 10}},
		Choices{},
	)

	r := res.Results[0]
	if r.Outcome != ChallengedLost {
		t.Fatalf("expected challenged_lost, got %s", r.Outcome)
	}
	if g.Players[0].Coins != StartingCoins || g.Players[1].Coins != StartingCoins {
		t.Errorf("coins must be unchanged, got %d and %d", g.Players[0].Coins, g.Players[1].Coins)
	}
	if g.Players[0].HandLen != 1 {
		t.Errorf("actor should have lost one influence, hand len %d", g.Players[0].HandLen)
	}
	if len(r.CardsRevealed) != 1 || r.CardsRevealed[0].Seat != 0 {
		t.Errorf("expected one reveal from the actor, got %v", r.CardsRevealed)
	}
	checkConservation(t, &g)
}

func TestResolveTaxChallengeProven(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Contessa},
		[]CardType{Captain, Assassin},
	)
	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Tax, Target: SeatNone, Order: 1}},
		[]Reaction{{Reactor: 1, Kind: Challenge, Claimant: 0, Action: Tax, At: 10}},
		Choices{},
	)

	r := res.Results[0]
	if r.Outcome != ChallengedWon {
		t.Fatalf("expected challenged_won, got %s", r.Outcome)
	}
	// Effects still apply after a proven claim.
	if g.Players[0].Coins != StartingCoins+3 {
		t.Errorf("expected %d coins, got %d", StartingCoins+3, g.Players[0].Coins)
	}
	if g.Players[1].HandLen != 1 {
		t.Errorf("challenger should have lost one influence, hand len %d", g.Players[1].HandLen)
	}
	// The proven Duke went back to the stock and a replacement was drawn.
	if g.Players[0].HandLen != 2 {
		t.Errorf("actor hand should stay at 2, got %d", g.Players[0].HandLen)
	}
	checkConservation(t, &g)
}

func TestResolveAssassinateBlockedByContessa(t *testing.T) {
	g := testState(t,
		[]CardType{Assassin, Duke},
		[]CardType{Contessa, Captain},
	)
	g.Players[0].Coins = AssassinateCost

	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Assassinate, Target: 1, Order: 1}},
		[]Reaction{{Reactor: 1, Kind: Block, Claimant: 0, Action: Assassinate, Role: Contessa, At: 10}},
		Choices{},
	)

	r := res.Results[0]
	if r.Outcome != Blocked {
		t.Fatalf("expected blocked, got %s", r.Outcome)
	}
	if g.Players[0].Coins != 0 {
		t.Errorf("blocked assassination still spends its cost, coins %d", g.Players[0].Coins)
	}
	if g.Players[1].HandLen != 2 {
		t.Errorf("target must keep both cards, hand len %d", g.Players[1].HandLen)
	}
	if len(r.CardsRevealed) != 0 {
		t.Errorf("no card should be revealed, got %v", r.CardsRevealed)
	}
	checkConservation(t, &g)
}

func TestResolveBlockDisproven(t *testing.T) {
	g := testState(t,
		[]CardType{Assassin, Duke},
		[]CardType{Captain, Captain}, // blocks claiming contessa without one
	)
	g.Players[0].Coins = AssassinateCost

	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Assassinate, Target: 1, Order: 1}},
		[]Reaction{
			{Reactor: 1, Kind: Block, Claimant: 0, Action: Assassinate, Role: Contessa, At: 10},
			{Reactor: 0, Kind: Challenge, Claimant: 1, Action: Assassinate, At: 20},
		},
		Choices{},
	)

	r := res.Results[0]
	if r.Outcome != Success {
		t.Fatalf("expected success after disproven block, got %s", r.Outcome)
	}
	// One influence for the failed block, one for the assassination.
	if g.Players[1].HandLen != 0 {
		t.Errorf("target should be eliminated, hand len %d", g.Players[1].HandLen)
	}
	if len(res.Eliminated) != 1 || res.Eliminated[0] != 1 {
		t.Errorf("expected seat 1 eliminated, got %v", res.Eliminated)
	}
	if g.Players[0].Coins != 0 {
		t.Errorf("assassination cost must be spent, coins %d", g.Players[0].Coins)
	}
	checkConservation(t, &g)
}

func TestResolveBlockProvenAgainstChallenge(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Duke},
		[]CardType{Contessa, Contessa},
		[]CardType{Captain, Assassin},
	)
	g.Players[0].Coins = AssassinateCost

	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Assassinate, Target: 1, Order: 1}},
		[]Reaction{
			{Reactor: 1, Kind: Block, Claimant: 0, Action: Assassinate, Role: Contessa, At: 10},
			{Reactor: 2, Kind: Challenge, Claimant: 1, Action: Assassinate, At: 20},
		},
		Choices{},
	)

	r := res.Results[0]
	if r.Outcome != Blocked {
		t.Fatalf("expected blocked, got %s", r.Outcome)
	}
	if g.Players[2].HandLen != 1 {
		t.Errorf("challenger of the proven block should lose influence, hand len %d", g.Players[2].HandLen)
	}
	if g.Players[1].HandLen != 2 {
		t.Errorf("blocker keeps a full hand after proving, got %d", g.Players[1].HandLen)
	}
	checkConservation(t, &g)
}

func TestResolveForeignAidBlockedByDukeClaim(t *testing.T) {
	g := testState(t,
		[]CardType{Captain, Contessa},
		[]CardType{Assassin, Ambassador}, // the claim need not be held when unchallenged
	)
	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: ForeignAid, Target: SeatNone, Order: 1}},
		[]Reaction{{Reactor: 1, Kind: Block, Claimant: 0, Action: ForeignAid, Role: Duke, At: 10}},
		Choices{},
	)
	if res.Results[0].Outcome != Blocked {
		t.Fatalf("expected blocked, got %s", res.Results[0].Outcome)
	}
	if g.Players[0].Coins != StartingCoins {
		t.Errorf("blocked foreign aid must not pay out, coins %d", g.Players[0].Coins)
	}
}

func TestResolveStealFromZeroCoinTarget(t *testing.T) {
	g := testState(t,
		[]CardType{Captain, Contessa},
		[]CardType{Duke, Assassin},
	)
	g.Players[1].Coins = 0

	res := g.ResolveTurn([]Intent{{Actor: 0, Action: Steal, Target: 1, Order: 1}}, nil, Choices{})
	r := res.Results[0]
	if r.Outcome != Success {
		t.Fatalf("expected success, got %s", r.Outcome)
	}
	if r.CoinsTransferred != 0 {
		t.Errorf("expected 0 coins transferred, got %d", r.CoinsTransferred)
	}
	if g.Players[0].Coins != StartingCoins || g.Players[1].Coins != 0 {
		t.Errorf("coins wrong: %d and %d", g.Players[0].Coins, g.Players[1].Coins)
	}
}

func TestResolveUpgradedStealTakesThree(t *testing.T) {
	g := testState(t,
		[]CardType{Captain, Contessa},
		[]CardType{Duke, Assassin},
	)
	g.Players[0].Coins = StealUpgradeCost
	g.Players[1].Coins = 5

	res := g.ResolveTurn([]Intent{{Actor: 0, Action: Steal, Target: 1, Upgraded: true, Order: 1}}, nil, Choices{})
	r := res.Results[0]
	if r.CoinsTransferred != 3 {
		t.Errorf("upgraded steal should take 3, got %d", r.CoinsTransferred)
	}
	// Upgrade cost spent, three stolen.
	if g.Players[0].Coins != 3 {
		t.Errorf("actor coins: expected 3, got %d", g.Players[0].Coins)
	}
	if g.Players[1].Coins != 2 {
		t.Errorf("target coins: expected 2, got %d", g.Players[1].Coins)
	}
}

func TestResolveDoubleCoupSecondFails(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Duke},
		[]CardType{Captain, Captain},
		[]CardType{Contessa}, // one influence left
	)
	g.Players[0].Coins = CoupCost
	g.Players[1].Coins = CoupCost

	res := g.ResolveTurn(
		[]Intent{
			{Actor: 0, Action: Coup, Target: 2, Order: 1},
			{Actor: 1, Action: Coup, Target: 2, Order: 2},
		},
		nil, Choices{},
	)

	if res.Results[0].Outcome != Success {
		t.Errorf("first coup: expected success, got %s", res.Results[0].Outcome)
	}
	if res.Results[1].Outcome != Failed {
		t.Errorf("second coup: expected failed, got %s", res.Results[1].Outcome)
	}
	// Both coups spend their coins regardless.
	if g.Players[0].Coins != 0 || g.Players[1].Coins != 0 {
		t.Errorf("both coups must spend %d coins, got %d and %d", CoupCost, g.Players[0].Coins, g.Players[1].Coins)
	}
	if len(res.Eliminated) != 1 || res.Eliminated[0] != 2 {
		t.Errorf("expected seat 2 eliminated once, got %v", res.Eliminated)
	}
	checkConservation(t, &g)
}

func TestResolveEliminatedActorSkipped(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Duke},
		[]CardType{Captain}, // dies to the coup before their own steal resolves
	)
	g.Players[0].Coins = CoupCost

	res := g.ResolveTurn(
		[]Intent{
			{Actor: 0, Action: Coup, Target: 1, Order: 1},
			{Actor: 1, Action: Steal, Target: 0, Order: 2},
		},
		nil, Choices{},
	)
	if res.Results[1].Outcome != Failed {
		t.Errorf("eliminated actor's action should fail, got %s", res.Results[1].Outcome)
	}
	if g.Players[0].Coins != 0 {
		t.Errorf("nothing should be stolen back, coins %d", g.Players[0].Coins)
	}
}

func TestResolveExchangeKeepsHandSize(t *testing.T) {
	g := testState(t,
		[]CardType{Ambassador, Duke},
		[]CardType{Captain, Contessa},
	)
	res := g.ResolveTurn([]Intent{{Actor: 0, Action: Exchange, Target: SeatNone, Order: 1}}, nil, Choices{})

	if res.Results[0].Outcome != Success {
		t.Fatalf("expected success, got %s", res.Results[0].Outcome)
	}
	if g.Players[0].HandLen != 2 {
		t.Errorf("hand size must be preserved, got %d", g.Players[0].HandLen)
	}
	if len(res.Defaulted) == 0 {
		t.Error("missing keeper choice must be recorded as defaulted")
	}
	checkConservation(t, &g)
}

func TestResolveExchangeHonorsKeeperChoice(t *testing.T) {
	g := testState(t,
		[]CardType{Ambassador, Duke},
		[]CardType{Captain, Contessa},
	)
	// Stock top two cards are what the exchange draws.
	drawn := [2]CardType{g.Stock[g.StockLen-1], g.Stock[g.StockLen-2]}

	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Exchange, Target: SeatNone, Order: 1}},
		nil,
		Choices{ExchangeKeep: map[uint8][]CardType{0: {drawn[0], drawn[1]}}},
	)
	if res.Results[0].Outcome != Success {
		t.Fatalf("expected success, got %s", res.Results[0].Outcome)
	}
	got := map[CardType]int{}
	for i := uint8(0); i < g.Players[0].HandLen; i++ {
		got[g.Players[0].Hand[i]]++
	}
	want := map[CardType]int{}
	want[drawn[0]]++
	want[drawn[1]]++
	if !reflect.DeepEqual(got, want) {
		t.Errorf("kept cards %v, want %v", got, want)
	}
	if len(res.Defaulted) != 0 {
		t.Errorf("explicit choice must not be recorded as defaulted: %v", res.Defaulted)
	}
	checkConservation(t, &g)
}

func TestResolveUpgradedAssassinationPicksCard(t *testing.T) {
	g := testState(t,
		[]CardType{Assassin, Duke},
		[]CardType{Duke, Contessa},
	)
	g.Players[0].Coins = AssassinateCost + AssassinateUpgradeCost

	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Assassinate, Target: 1, Upgraded: true, Order: 1}},
		nil,
		Choices{AssassinPick: map[uint8]CardType{0: Contessa}},
	)
	r := res.Results[0]
	if r.Outcome != Success {
		t.Fatalf("expected success, got %s", r.Outcome)
	}
	if len(r.CardsRevealed) != 1 || r.CardsRevealed[0].Card != Contessa {
		t.Errorf("upgrade should strike the picked card, got %v", r.CardsRevealed)
	}
	if g.Players[0].Coins != 0 {
		t.Errorf("base and upgrade cost must be spent, coins %d", g.Players[0].Coins)
	}
	if !g.Players[1].HandHas(Duke) {
		t.Error("target should keep the unpicked card")
	}
}

func TestResolveInfluenceLossDefaultsToLowest(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Duke},
		[]CardType{Contessa, Captain},
	)
	g.Players[0].Coins = CoupCost

	res := g.ResolveTurn([]Intent{{Actor: 0, Action: Coup, Target: 1, Order: 1}}, nil, Choices{})
	r := res.Results[0]
	if r.CardsRevealed[0].Card != Captain {
		t.Errorf("default policy reveals the lowest enum value, got %s", r.CardsRevealed[0].Card)
	}
	found := false
	for _, d := range res.Defaulted {
		if d.Seat == 1 && d.Kind == ChoiceInfluenceLoss && d.Card == Captain {
			found = true
		}
	}
	if !found {
		t.Errorf("defaulted choice not recorded: %v", res.Defaulted)
	}
}

func TestResolveEarliestReactionWins(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Duke},
		[]CardType{Contessa, Captain},
		[]CardType{Assassin, Ambassador},
	)
	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Tax, Target: SeatNone, Order: 1}},
		[]Reaction{
			{Reactor: 2, Kind: Challenge, Claimant: 0, Action: Tax, At: 30},
			{Reactor: 1, Kind: Challenge, Claimant: 0, Action: Tax, At: 10},
		},
		Choices{},
	)
	r := res.Results[0]
	if r.Outcome != ChallengedWon {
		t.Fatalf("expected challenged_won, got %s", r.Outcome)
	}
	if r.CardsRevealed[0].Seat != 1 {
		t.Errorf("earliest challenger should be effective, reveal came from seat %d", r.CardsRevealed[0].Seat)
	}
	if g.Players[2].HandLen != 2 {
		t.Errorf("later challenger must be untouched, hand len %d", g.Players[2].HandLen)
	}
}

func TestResolveTieBreakByRosterOrder(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Duke},
		[]CardType{Contessa, Captain},
		[]CardType{Assassin, Ambassador},
	)
	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Tax, Target: SeatNone, Order: 1}},
		[]Reaction{
			{Reactor: 2, Kind: Challenge, Claimant: 0, Action: Tax, At: 10},
			{Reactor: 1, Kind: Challenge, Claimant: 0, Action: Tax, At: 10},
		},
		Choices{},
	)
	if res.Results[0].CardsRevealed[0].Seat != 1 {
		t.Errorf("equal timestamps break by roster order, reveal came from seat %d",
			res.Results[0].CardsRevealed[0].Seat)
	}
}

func TestResolveDeterministicReplay(t *testing.T) {
	build := func() State {
		return testState(t,
			[]CardType{Ambassador, Duke},
			[]CardType{Captain, Contessa},
			[]CardType{Assassin, Assassin},
		)
	}
	intents := []Intent{
		{Actor: 0, Action: Exchange, Target: SeatNone, Order: 1},
		{Actor: 1, Action: Steal, Target: 2, Order: 2},
		{Actor: 2, Action: Income, Target: SeatNone, Order: 3},
	}
	reactions := []Reaction{
		{Reactor: 2, Kind: Challenge, Claimant: 1, Action: Steal, At: 5},
	}

	a := build()
	ra := a.ResolveTurn(intents, reactions, Choices{})
	b := build()
	rb := b.ResolveTurn(intents, reactions, Choices{})

	if a != b {
		t.Error("replay against identical inputs must produce identical state")
	}
	if !reflect.DeepEqual(ra, rb) {
		t.Errorf("replay must produce identical results:\n%+v\n%+v", ra, rb)
	}
	checkConservation(t, &a)
}

func TestResolvePassReactionIgnored(t *testing.T) {
	g := testState(t,
		[]CardType{Duke, Duke},
		[]CardType{Contessa, Captain},
	)
	res := g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Tax, Target: SeatNone, Order: 1}},
		[]Reaction{{Reactor: 1, Kind: Pass, Claimant: 0, Action: Tax, At: 10}},
		Choices{},
	)
	if res.Results[0].Outcome != Success {
		t.Errorf("pass must not affect resolution, got %s", res.Results[0].Outcome)
	}
}

func TestResolveCoinsNeverNegative(t *testing.T) {
	g := testState(t,
		[]CardType{Assassin, Duke},
		[]CardType{Contessa, Captain},
	)
	g.Players[0].Coins = AssassinateCost

	g.ResolveTurn(
		[]Intent{{Actor: 0, Action: Assassinate, Target: 1, Order: 1}},
		[]Reaction{{Reactor: 1, Kind: Block, Claimant: 0, Action: Assassinate, Role: Contessa, At: 1}},
		Choices{},
	)
	if g.Players[0].Coins != 0 {
		t.Errorf("coins should land exactly at zero, got %d", g.Players[0].Coins)
	}
}
