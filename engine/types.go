package engine

// CardType identifies one of the five court roles.
type CardType uint8

const (
	Duke CardType = iota
	Assassin
	Captain
	Ambassador
	Contessa
	NumCardTypes
)

// EmptyCard represents the absence of a card.
const EmptyCard CardType = 0xFF

func (c CardType) String() string {
	switch c {
	case Duke:
		return "duke"
	case Assassin:
		return "assassin"
	case Captain:
		return "captain"
	case Ambassador:
		return "ambassador"
	case Contessa:
		return "contessa"
	}
	return "?"
}

// ParseCardType maps a wire/storage name back to a CardType.
// Returns EmptyCard for unknown names.
func ParseCardType(s string) CardType {
	switch s {
	case "duke":
		return Duke
	case "assassin":
		return Assassin
	case "captain":
		return Captain
	case "ambassador":
		return Ambassador
	case "contessa":
		return Contessa
	}
	return EmptyCard
}

// ActionType identifies a turn action.
type ActionType uint8

const (
	Income ActionType = iota
	ForeignAid
	Tax
	Steal
	Assassinate
	Exchange
	Coup
	NumActionTypes
)

func (a ActionType) String() string {
	switch a {
	case Income:
		return "income"
	case ForeignAid:
		return "foreign_aid"
	case Tax:
		return "tax"
	case Steal:
		return "steal"
	case Assassinate:
		return "assassinate"
	case Exchange:
		return "exchange"
	case Coup:
		return "coup"
	}
	return "?"
}

// ParseActionType maps a wire/storage name back to an ActionType.
// Returns NumActionTypes for unknown names.
func ParseActionType(s string) ActionType {
	switch s {
	case "income":
		return Income
	case "foreign_aid":
		return ForeignAid
	case "tax":
		return Tax
	case "steal":
		return Steal
	case "assassinate":
		return Assassinate
	case "exchange":
		return Exchange
	case "coup":
		return Coup
	}
	return NumActionTypes
}

// ReactionType identifies a reaction against a visible action.
type ReactionType uint8

const (
	Challenge ReactionType = iota
	Block
	// Pass is recorded for auditability; resolution ignores it.
	Pass
)

func (r ReactionType) String() string {
	switch r {
	case Challenge:
		return "challenge"
	case Block:
		return "block"
	case Pass:
		return "pass"
	}
	return "?"
}

// ParseReactionType maps a wire/storage name back to a ReactionType.
// Returns Pass for unknown names.
func ParseReactionType(s string) ReactionType {
	switch s {
	case "challenge":
		return Challenge
	case "block":
		return Block
	}
	return Pass
}

// Outcome is the resolved result of one action.
type Outcome uint8

const (
	Success Outcome = iota
	Blocked
	ChallengedWon  // actor proved the claim; challenger lost influence
	ChallengedLost // actor could not prove; action cancelled
	Failed         // action could not apply (actor or target already out)
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Blocked:
		return "blocked"
	case ChallengedWon:
		return "challenged_won"
	case ChallengedLost:
		return "challenged_lost"
	case Failed:
		return "failed"
	}
	return "?"
}

const (
	MaxPlayers     = 6
	DeckCopies     = 3
	DeckSize       = int(NumCardTypes) * DeckCopies // 15
	CardsPerPlayer = 2
	// MaxHandSize covers an upgraded exchange: 2 held + 3 drawn.
	MaxHandSize = 5

	StartingCoins       = 2
	ForcedCoupThreshold = 10

	CoupCost        = 7
	AssassinateCost = 3

	StealUpgradeCost       = 1
	AssassinateUpgradeCost = 2
	ExchangeUpgradeCost    = 4
)

// SeatNone marks the absence of a target seat.
const SeatNone uint8 = 0xFF
