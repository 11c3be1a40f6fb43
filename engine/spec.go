package engine

// ActionSpec describes the fixed rules of one action type.
type ActionSpec struct {
	Cost        int
	Claims      CardType // role the actor asserts; EmptyCard for unclaimed actions
	BlockedBy   []CardType
	Targeted    bool
	Visible     bool // silent actions stay hidden until resolution
	UpgradeCost int  // 0 when the action has no upgrade
}

// Challengeable reports whether the action asserts a role a challenger
// can call out.
func (s ActionSpec) Challengeable() bool { return s.Claims != EmptyCard }

// Blockable reports whether any role can block the action.
func (s ActionSpec) Blockable() bool { return len(s.BlockedBy) > 0 }

// Reactable reports whether the action accepts any reaction at all.
// Coup is visible but accepts none.
func (s ActionSpec) Reactable() bool { return s.Challengeable() || s.Blockable() }

// Specs is the fixed rule table, indexed by ActionType.
var Specs = [NumActionTypes]ActionSpec{
	Income: {
		Claims:  EmptyCard,
		Visible: false,
	},
	ForeignAid: {
		Claims:    EmptyCard,
		BlockedBy: []CardType{Duke},
		Visible:   true,
	},
	Tax: {
		Claims:  Duke,
		Visible: true,
	},
	Steal: {
		Claims:      Captain,
		BlockedBy:   []CardType{Captain, Ambassador},
		Targeted:    true,
		Visible:     true,
		UpgradeCost: StealUpgradeCost,
	},
	Assassinate: {
		Cost:        AssassinateCost,
		Claims:      Assassin,
		BlockedBy:   []CardType{Contessa},
		Targeted:    true,
		Visible:     true,
		UpgradeCost: AssassinateUpgradeCost,
	},
	Exchange: {
		Claims:      Ambassador,
		Visible:     true,
		UpgradeCost: ExchangeUpgradeCost,
	},
	Coup: {
		Cost:     CoupCost,
		Targeted: true,
		Claims:   EmptyCard,
		Visible:  true,
	},
}

// CanBlockWith reports whether claiming role blocks the given action.
func CanBlockWith(a ActionType, role CardType) bool {
	for _, b := range Specs[a].BlockedBy {
		if b == role {
			return true
		}
	}
	return false
}

// TotalCost is the coin commitment of an intent including its upgrade.
func TotalCost(a ActionType, upgraded bool) int {
	c := Specs[a].Cost
	if upgraded {
		c += Specs[a].UpgradeCost
	}
	return c
}
