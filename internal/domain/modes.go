package domain

// Cafe stock items.
const (
	ItemToast         = "toast"
	ItemYogurt        = "yogurt"
	ItemApple         = "apple"
	ItemBreakfastBowl = "breakfast_bowl"
)

// Cafe upgrade identifiers.
const (
	UpgradeMultiplier          = "multiplier"
	UpgradeUnlockYogurt        = "unlock_yogurt"
	UpgradeUnlockApple         = "unlock_apple"
	UpgradeUnlockBreakfastBowl = "unlock_breakfast_bowl"
	UpgradeFasterPrep          = "faster_prep"
)

// CafeItemPrices is the sale price of one unit before the multiplier.
var CafeItemPrices = map[string]int{
	ItemToast:         5,
	ItemYogurt:        10,
	ItemApple:         15,
	ItemBreakfastBowl: 30,
}

// CafeUpgradePrices is the fixed cost of each upgrade.
var CafeUpgradePrices = map[string]int{
	UpgradeMultiplier:          100,
	UpgradeUnlockYogurt:        50,
	UpgradeUnlockApple:         150,
	UpgradeUnlockBreakfastBowl: 300,
	UpgradeFasterPrep:          200,
}

// CafeUnlocks maps unlock upgrades to the item they make available.
var CafeUnlocks = map[string]string{
	UpgradeUnlockYogurt:        ItemYogurt,
	UpgradeUnlockApple:         ItemApple,
	UpgradeUnlockBreakfastBowl: ItemBreakfastBowl,
}

// CafeItemOrder fixes iteration order over items for deterministic random picks.
var CafeItemOrder = []string{ItemToast, ItemYogurt, ItemApple, ItemBreakfastBowl}

const (
	// FullPatience is the patience of a freshly seated customer.
	FullPatience = 100.0
	// MinCafeCustomers is the number of orders kept waiting per storefront.
	MinCafeCustomers = 3
)

// Customer is one waiting cafe order.
type Customer struct {
	ID       string  `json:"id"`
	Item     string  `json:"item"`
	Patience float64 `json:"patience"`
}

// CafeUpgrades holds purchased capabilities.
type CafeUpgrades struct {
	Multiplier int             `json:"multiplier"`
	FasterPrep bool            `json:"faster_prep"`
	Unlocked   map[string]bool `json:"unlocked"`
}

// CafeState is one player's storefront.
type CafeState struct {
	Money           int            `json:"money"`
	CustomersServed int            `json:"customersServed"`
	Stock           map[string]int `json:"stock"`
	Upgrades        CafeUpgrades   `json:"upgrades"`
	Customers       []Customer     `json:"customers"`
}

// Clone returns a deep copy for snapshots.
func (c *CafeState) Clone() CafeState {
	out := *c
	out.Stock = make(map[string]int, len(c.Stock))
	for k, v := range c.Stock {
		out.Stock[k] = v
	}
	out.Upgrades.Unlocked = make(map[string]bool, len(c.Upgrades.Unlocked))
	for k, v := range c.Upgrades.Unlocked {
		out.Upgrades.Unlocked[k] = v
	}
	out.Customers = append([]Customer(nil), c.Customers...)
	return out
}

// ServedCustomer is a room-wide log line shown to the host.
type ServedCustomer struct {
	ID       string `json:"id"`
	ServedBy string `json:"servedBy"`
}

// Tower types.
const (
	TowerArcher = "archer"
	TowerMage   = "mage"
	TowerCannon = "cannon"
)

// TowerBuildCosts is the token price of placing a tower.
var TowerBuildCosts = map[string]int{
	TowerArcher: 10,
	TowerMage:   20,
	TowerCannon: 30,
}

// TowerUpgradeBaseCosts is multiplied by the current level to price an upgrade.
var TowerUpgradeBaseCosts = map[string]int{
	TowerArcher: 15,
	TowerMage:   25,
	TowerCannon: 40,
}

const (
	StartingTokens        = 15
	StartingHealth        = 10
	TokensPerCorrect      = 10
	TokensPerWaveMultiple = 5
)

// Tower is a placed defense.
type Tower struct {
	Type  string  `json:"type"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Level int     `json:"level"`
}

// TowerDefenseState is one player's economy in TowerDefense mode.
type TowerDefenseState struct {
	Tokens int     `json:"tokens"`
	Health int     `json:"health"`
	Wave   int     `json:"wave"`
	Towers []Tower `json:"towers"`
}

// Clone returns a deep copy for snapshots.
func (t *TowerDefenseState) Clone() TowerDefenseState {
	out := *t
	out.Towers = append([]Tower(nil), t.Towers...)
	return out
}
