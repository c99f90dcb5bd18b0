package app

import (
	"fmt"

	"quiz-room-service/internal/domain"
)

const (
	cafeRestockUnits   = 3
	patienceDecay      = 0.5
	fasterPrepFraction = 0.5
)

func (s *Session) newCafeLocked() *domain.CafeState {
	c := &domain.CafeState{
		Stock: map[string]int{domain.ItemToast: 5, domain.ItemYogurt: 0, domain.ItemApple: 0},
		Upgrades: domain.CafeUpgrades{
			Multiplier: 1,
			Unlocked:   map[string]bool{domain.ItemToast: true},
		},
		Customers: make([]domain.Customer, 0, domain.MinCafeCustomers),
	}
	for i := 0; i < domain.MinCafeCustomers; i++ {
		c.Customers = append(c.Customers, s.newCustomerLocked(domain.ItemToast))
	}
	return c
}

func (s *Session) newCustomerLocked(item string) domain.Customer {
	s.customerSeq++
	return domain.Customer{ID: fmt.Sprintf("c%d", s.customerSeq), Item: item, Patience: domain.FullPatience}
}

func unlockedItems(c *domain.CafeState) []string {
	items := make([]string, 0, len(domain.CafeItemOrder))
	for _, item := range domain.CafeItemOrder {
		if c.Upgrades.Unlocked[item] {
			items = append(items, item)
		}
	}
	return items
}

func (s *Session) randomItemLocked(c *domain.CafeState) string {
	items := unlockedItems(c)
	if len(items) == 0 {
		return domain.ItemToast
	}
	return items[s.rnd.Intn(len(items))]
}

// restockLocked credits a correct answer: three units of a random unlocked item, and a full queue.
func (s *Session) restockLocked(c *domain.CafeState) {
	c.Stock[s.randomItemLocked(c)] += cafeRestockUnits
	s.topUpCustomersLocked(c)
}

func (s *Session) topUpCustomersLocked(c *domain.CafeState) {
	for len(c.Customers) < domain.MinCafeCustomers {
		c.Customers = append(c.Customers, s.newCustomerLocked(s.randomItemLocked(c)))
	}
}

// Serve sells one unit of the customer's item. Missing stock or an unknown customer is a no-op.
func (s *Session) Serve(playerID, customerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.mode != domain.ModeCafe || s.status == domain.StatusEnded {
		return false
	}
	c, ok := s.cafe[playerID]
	if !ok || !s.players[playerID].Present() {
		return false
	}
	idx := -1
	for i, cust := range c.Customers {
		if cust.ID == customerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	item := c.Customers[idx].Item
	if c.Stock[item] <= 0 {
		return false
	}
	price := domain.CafeItemPrices[item]
	c.Stock[item]--
	c.Money += price * c.Upgrades.Multiplier
	c.CustomersServed++
	c.Customers = append(c.Customers[:idx], c.Customers[idx+1:]...)
	s.topUpCustomersLocked(c)

	s.cafeMoney += price
	s.cafeServed = append(s.cafeServed, domain.ServedCustomer{ID: customerID, ServedBy: s.players[playerID].Nickname})
	s.touchLocked()
	s.syncLocked()
	return true
}

// PurchaseUpgrade checks and deducts the fixed price, then applies the upgrade. Insufficient money,
// an unknown id or an already-owned unlock is a no-op.
func (s *Session) PurchaseUpgrade(playerID, upgradeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.mode != domain.ModeCafe || s.status == domain.StatusEnded {
		return false
	}
	c, ok := s.cafe[playerID]
	if !ok || !s.players[playerID].Present() {
		return false
	}
	price, ok := domain.CafeUpgradePrices[upgradeID]
	if !ok || c.Money < price {
		return false
	}
	if item, unlock := domain.CafeUnlocks[upgradeID]; unlock && c.Upgrades.Unlocked[item] {
		return false
	}
	if upgradeID == domain.UpgradeFasterPrep && c.Upgrades.FasterPrep {
		return false
	}

	c.Money -= price
	switch upgradeID {
	case domain.UpgradeMultiplier:
		c.Upgrades.Multiplier++
	case domain.UpgradeFasterPrep:
		c.Upgrades.FasterPrep = true
	default:
		item := domain.CafeUnlocks[upgradeID]
		c.Upgrades.Unlocked[item] = true
		if _, ok := c.Stock[item]; !ok {
			c.Stock[item] = 0
		}
	}
	s.touchLocked()
	s.syncLocked()
	return true
}

// tickCafe decays patience of every waiting customer while a question is open. Customers that run
// out of patience are replaced with a fresh random order.
func (s *Session) tickCafe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.mode != domain.ModeCafe || s.status != domain.StatusQuestion {
		return false
	}
	replaced := false
	for _, id := range s.order {
		c, ok := s.cafe[id]
		if !ok {
			continue
		}
		decay := patienceDecay
		if c.Upgrades.FasterPrep {
			decay *= fasterPrepFraction
		}
		for i := range c.Customers {
			c.Customers[i].Patience -= decay
			if c.Customers[i].Patience <= 0 {
				c.Customers[i] = s.newCustomerLocked(s.randomItemLocked(c))
				replaced = true
			}
		}
	}
	if replaced {
		s.syncLocked()
	}
	return replaced
}
