package engine

import "testing"

func TestNewGameDeckComposition(t *testing.T) {
	g := NewGame(4, 42)
	if g.StockLen != uint8(DeckSize) {
		t.Fatalf("expected %d cards in stock, got %d", DeckSize, g.StockLen)
	}
	counts := map[CardType]int{}
	for i := uint8(0); i < g.StockLen; i++ {
		counts[g.Stock[i]]++
	}
	for role := Duke; role < NumCardTypes; role++ {
		if counts[role] != DeckCopies {
			t.Errorf("role %s: expected %d copies, got %d", role, DeckCopies, counts[role])
		}
	}
}

func TestDealGivesTwoCardsAndTwoCoins(t *testing.T) {
	g := NewGame(4, 42)
	g.Deal()
	for p := uint8(0); p < 4; p++ {
		if g.Players[p].HandLen != CardsPerPlayer {
			t.Errorf("player %d: expected %d cards, got %d", p, CardsPerPlayer, g.Players[p].HandLen)
		}
		if g.Players[p].Coins != StartingCoins {
			t.Errorf("player %d: expected %d coins, got %d", p, StartingCoins, g.Players[p].Coins)
		}
		if !g.Players[p].Alive() {
			t.Errorf("player %d should be alive after deal", p)
		}
	}
	if g.StockLen != uint8(DeckSize-4*CardsPerPlayer) {
		t.Errorf("stock after deal: expected %d, got %d", DeckSize-4*CardsPerPlayer, g.StockLen)
	}
	if got := g.CardCount(); got != DeckSize {
		t.Errorf("card conservation broken after deal: %d", got)
	}
}

func TestDealDeterministicUnderSeed(t *testing.T) {
	a := NewGame(5, 99)
	a.Deal()
	b := NewGame(5, 99)
	b.Deal()
	if a != b {
		t.Fatal("same seed should produce identical state after deal")
	}

	c := NewGame(5, 100)
	c.Deal()
	if a == c {
		t.Error("different seeds should produce different deals")
	}
}

func TestZeroSeedIsReplaced(t *testing.T) {
	g := NewGame(2, 0)
	if g.RNG == 0 {
		t.Fatal("RNG state must never be zero")
	}
}

func TestReturnCardKeepsConservation(t *testing.T) {
	g := NewGame(3, 7)
	g.Deal()
	c := g.drawCard()
	g.returnCard(c)
	if got := g.CardCount(); got != DeckSize {
		t.Errorf("card conservation broken after draw/return: %d", got)
	}
}

func TestAliveCount(t *testing.T) {
	g := NewGame(3, 7)
	g.Deal()
	if got := g.AliveCount(); got != 3 {
		t.Fatalf("expected 3 alive, got %d", got)
	}
	g.Players[1].HandLen = 0
	if got := g.AliveCount(); got != 2 {
		t.Errorf("expected 2 alive, got %d", got)
	}
}

func TestLowestInHand(t *testing.T) {
	g := NewGame(2, 1)
	g.Players[0].Hand[0] = Contessa
	g.Players[0].Hand[1] = Captain
	g.Players[0].HandLen = 2
	if got := g.lowestInHand(0); got != Captain {
		t.Errorf("expected captain, got %s", got)
	}
	g.Players[1].HandLen = 0
	if got := g.lowestInHand(1); got != EmptyCard {
		t.Errorf("expected EmptyCard for empty hand, got %v", got)
	}
}
