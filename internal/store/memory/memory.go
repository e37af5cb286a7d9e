package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"gestorpro/backend/internal/domain"
	"gestorpro/backend/internal/store"
	"gestorpro/backend/internal/xid"
)

// Store keeps the four entity collections plus the configuration record behind
// one lock. Movements and debts are append-only slices so insertion order is
// preserved (the debt-settlement tiebreak depends on it).
type Store struct {
	mu        sync.RWMutex
	products  map[string]domain.Product
	movements []domain.StockMovement
	debts     []domain.Debt
	clients   []string
	config    domain.SystemConfig
}

func DefaultConfig() domain.SystemConfig {
	return domain.SystemConfig{
		ShopName:              "Mi Negocio",
		CurrencySymbol:        "$",
		TaxRatePercent:        16,
		Categories:            []string{"General", "Electronica", "Alimentos", "Ropa", "Hogar"},
		EnableLowStockWarning: true,
		LowStockThreshold:     5,
	}
}

func New() *Store {
	return &Store{
		products:  make(map[string]domain.Product),
		movements: make([]domain.StockMovement, 0, 128),
		debts:     make([]domain.Debt, 0, 32),
		clients:   make([]string, 0, 16),
		config:    DefaultConfig(),
	}
}

// NewSeeded builds a demo store. Every seeded quantity is backed by an
// opening adjustment movement so the ledger invariant holds from genesis.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	seed := []struct {
		name     string
		sku      string
		category string
		qty      int
		price    int64
		bulk     int
	}{
		{"Refresco Cola 2L", "8X29-A1", "Alimentos", 48, 2500, 12},
		{"Jabon de Bano", "K3M1-B2", "Hogar", 60, 1200, 24},
		{"Cargador USB-C", "Q7P4-C3", "Electronica", 15, 9900, 0},
		{"Arroz 1kg", "T2N8-D4", "Alimentos", 80, 1800, 20},
		{"Camiseta Basica", "V5R1-E5", "Ropa", 25, 7500, 0},
	}

	for _, p := range seed {
		id := xid.New("prod")
		s.products[id] = domain.Product{
			ID:              id,
			Name:            p.name,
			SKU:             p.sku,
			Category:        p.category,
			Quantity:        p.qty,
			PriceCents:      p.price,
			DefaultBulkSize: p.bulk,
			UpdatedAt:       now,
		}
		s.movements = append(s.movements, domain.StockMovement{
			ID:            xid.New("mv"),
			ProductID:     id,
			Kind:          domain.MovementAdjustment,
			QuantityDelta: p.qty,
			Note:          "Opening stock",
			CreatedAt:     now,
		})
	}

	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product, opening *domain.StockMovement) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" || product.Name == "" || product.Category == "" || product.PriceCents < 0 {
		return nil, store.ErrValidation
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrValidation
	}

	// The quantity column is a view over the movement log: an opening stock
	// must arrive as a movement, never as a bare quantity.
	product.Quantity = 0
	if opening != nil {
		if opening.ProductID != product.ID || opening.QuantityDelta <= 0 {
			return nil, store.ErrValidation
		}
		if opening.ID == "" {
			opening.ID = xid.New("mv")
		}
		product.Quantity = opening.QuantityDelta
		s.movements = append(s.movements, *opening)
	}
	s.products[product.ID] = product

	if !slices.Contains(s.config.Categories, product.Category) {
		s.config.Categories = append(s.config.Categories, product.Category)
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Category == "" || product.PriceCents < 0 {
		return nil, store.ErrValidation
	}
	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}

	// Quantity is owned by the ledger; an update never touches it.
	product.Quantity = existing.Quantity
	s.products[product.ID] = product

	if !slices.Contains(s.config.Categories, product.Category) {
		s.config.Categories = append(s.config.Categories, product.Category)
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[id]; !exists {
		return store.ErrNotFound
	}
	// Movement rows for the product are kept: the ledger is an audit trail,
	// not a join table.
	delete(s.products, id)
	return nil
}

func (s *Store) ListMovements(_ context.Context, productID string) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockMovement, 0, 16)
	for _, m := range s.movements {
		if productID == "" || m.ProductID == productID {
			result = append(result, m)
		}
	}
	// Newest first for display.
	slices.Reverse(result)
	return result, nil
}

func (s *Store) AppendMovements(_ context.Context, movements []domain.StockMovement, debt *domain.Debt) ([]domain.Product, error) {
	if len(movements) == 0 {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before the first mutation: either every
	// movement lands or none does.
	for _, m := range movements {
		if m.QuantityDelta == 0 {
			return nil, store.ErrValidation
		}
		if _, exists := s.products[m.ProductID]; !exists {
			return nil, store.ErrNotFound
		}
	}
	if debt != nil && strings.TrimSpace(debt.DebtorName) == "" {
		return nil, store.ErrMissingClient
	}

	updated := make([]domain.Product, 0, len(movements))
	for _, m := range movements {
		if m.ID == "" {
			m.ID = xid.New("mv")
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		product := s.products[m.ProductID]
		product.Quantity += m.QuantityDelta
		product.UpdatedAt = m.CreatedAt
		s.products[m.ProductID] = product
		s.movements = append(s.movements, m)
		updated = append(updated, product)
	}

	if debt != nil {
		if debt.ID == "" {
			debt.ID = xid.New("debt")
		}
		s.debts = append(s.debts, *debt)
		s.addClientLocked(debt.DebtorName)
	}

	return updated, nil
}

func (s *Store) ReverseMovement(_ context.Context, movementID string) (*domain.Product, *domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, m := range s.movements {
		if m.ID == movementID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, store.ErrNotFound
	}

	reversed := s.movements[idx]
	s.movements = append(s.movements[:idx], s.movements[idx+1:]...)

	// Applying the inverse delta may drive the quantity negative (for example
	// reversing an entry whose units were already sold onward). The ledger
	// favors auditability over hard floors, so that is accepted.
	product, exists := s.products[reversed.ProductID]
	if !exists {
		return nil, &reversed, nil
	}
	product.Quantity -= reversed.QuantityDelta
	product.UpdatedAt = time.Now().UTC()
	s.products[reversed.ProductID] = product

	copyProduct := product
	return &copyProduct, &reversed, nil
}

func (s *Store) ListDebts(_ context.Context) ([]domain.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Debt, len(s.debts))
	copy(result, s.debts)
	return result, nil
}

func (s *Store) GetDebt(_ context.Context, id string) (*domain.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.debts {
		if d.ID == id {
			copyDebt := d
			return &copyDebt, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateDebt(_ context.Context, debt domain.Debt) (*domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(debt.DebtorName) == "" {
		return nil, store.ErrMissingClient
	}
	if debt.AmountCents <= 0 {
		return nil, store.ErrValidation
	}
	if debt.ID == "" {
		debt.ID = xid.New("debt")
	}

	s.debts = append(s.debts, debt)
	s.addClientLocked(debt.DebtorName)

	created := debt
	return &created, nil
}

func (s *Store) UpdateDebt(_ context.Context, debt domain.Debt) (*domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if debt.AmountCents < 0 {
		return nil, store.ErrValidation
	}
	for i, d := range s.debts {
		if d.ID == debt.ID {
			debt.DebtorName = d.DebtorName
			s.debts[i] = debt
			updated := debt
			return &updated, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeleteDebt(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, d := range s.debts {
		if d.ID == id {
			s.debts = append(s.debts[:i], s.debts[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) SettleClientPayment(_ context.Context, clientName string, amountCents int64) ([]domain.Debt, int64, error) {
	if amountCents <= 0 {
		return nil, 0, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(s.clients, clientName) {
		return nil, 0, store.ErrNotFound
	}

	// Oldest due date first; the stable sort keeps insertion order as the
	// tiebreak so allocation is deterministic.
	open := make([]int, 0, len(s.debts))
	for i, d := range s.debts {
		if d.DebtorName == clientName && !d.Paid {
			open = append(open, i)
		}
	}
	sort.SliceStable(open, func(a, b int) bool {
		return s.debts[open[a]].DueDate.Before(s.debts[open[b]].DueDate)
	})

	remaining := amountCents
	for _, i := range open {
		if remaining <= 0 {
			break
		}
		if remaining >= s.debts[i].AmountCents {
			remaining -= s.debts[i].AmountCents
			s.debts[i].AmountCents = 0
			s.debts[i].Paid = true
		} else {
			s.debts[i].AmountCents -= remaining
			remaining = 0
		}
	}
	// Any leftover beyond total debt is discarded; there is no credit-forward.

	return s.clientDebtsLocked(clientName), amountCents - remaining, nil
}

func (s *Store) SettleClientAll(_ context.Context, clientName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !slices.Contains(s.clients, clientName) {
		return 0, store.ErrNotFound
	}

	settled := 0
	for i, d := range s.debts {
		if d.DebtorName == clientName && !d.Paid {
			s.debts[i].Paid = true
			settled++
		}
	}
	return settled, nil
}

func (s *Store) ListClients(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]string, len(s.clients))
	copy(result, s.clients)
	return result, nil
}

func (s *Store) DeleteClient(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.Index(s.clients, name)
	if idx < 0 {
		return store.ErrNotFound
	}
	s.clients = append(s.clients[:idx], s.clients[idx+1:]...)

	kept := s.debts[:0]
	for _, d := range s.debts {
		if d.DebtorName != name {
			kept = append(kept, d)
		}
	}
	s.debts = kept
	return nil
}

func (s *Store) GetConfig(_ context.Context) (domain.SystemConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyConfig(s.config), nil
}

func (s *Store) PatchConfig(_ context.Context, patch domain.ConfigPatch) (domain.SystemConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if patch.ShopName != nil {
		s.config.ShopName = strings.TrimSpace(*patch.ShopName)
	}
	if patch.CurrencySymbol != nil {
		s.config.CurrencySymbol = strings.TrimSpace(*patch.CurrencySymbol)
	}
	if patch.TaxRatePercent != nil {
		if *patch.TaxRatePercent < 0 || *patch.TaxRatePercent > 100 {
			return domain.SystemConfig{}, store.ErrValidation
		}
		s.config.TaxRatePercent = *patch.TaxRatePercent
	}
	if patch.Categories != nil {
		categories := make([]string, len(*patch.Categories))
		copy(categories, *patch.Categories)
		s.config.Categories = categories
	}
	if patch.EnableLowStockWarning != nil {
		s.config.EnableLowStockWarning = *patch.EnableLowStockWarning
	}
	if patch.LowStockThreshold != nil {
		if *patch.LowStockThreshold < 0 {
			return domain.SystemConfig{}, store.ErrValidation
		}
		s.config.LowStockThreshold = *patch.LowStockThreshold
	}
	if patch.RemoteClientID != nil {
		s.config.RemoteClientID = strings.TrimSpace(*patch.RemoteClientID)
	}

	return copyConfig(s.config), nil
}

func (s *Store) MarkSynced(_ context.Context, objectID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if objectID != "" {
		s.config.BackupObjectID = objectID
	}
	stamped := at.UTC()
	s.config.LastSync = &stamped
	return nil
}

func (s *Store) Snapshot(_ context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.ID, b.ID)
	})

	debts := make([]domain.Debt, len(s.debts))
	copy(debts, s.debts)
	history := make([]domain.StockMovement, len(s.movements))
	copy(history, s.movements)
	clients := make([]string, len(s.clients))
	copy(clients, s.clients)

	return &domain.Snapshot{
		Products:  products,
		Debts:     debts,
		History:   history,
		Clients:   clients,
		Config:    copyConfig(s.config),
		Timestamp: time.Now().UTC(),
	}, nil
}

func (s *Store) Restore(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := make(map[string]domain.Product, len(snap.Products))
	for _, p := range snap.Products {
		if p.ID == "" {
			return store.ErrValidation
		}
		products[p.ID] = p
	}

	debts := make([]domain.Debt, len(snap.Debts))
	copy(debts, snap.Debts)
	movements := make([]domain.StockMovement, len(snap.History))
	copy(movements, snap.History)
	clients := make([]string, len(snap.Clients))
	copy(clients, snap.Clients)

	incoming := copyConfig(snap.Config)
	// The device keeps its own connection identity across a restore; every
	// other configuration field is replaced wholesale.
	incoming.RemoteClientID = s.config.RemoteClientID

	s.products = products
	s.debts = debts
	s.movements = movements
	s.clients = clients
	s.config = incoming
	return nil
}

func (s *Store) addClientLocked(name string) {
	if !slices.Contains(s.clients, name) {
		s.clients = append(s.clients, name)
	}
}

func (s *Store) clientDebtsLocked(clientName string) []domain.Debt {
	result := make([]domain.Debt, 0, 4)
	for _, d := range s.debts {
		if d.DebtorName == clientName {
			result = append(result, d)
		}
	}
	return result
}

func copyConfig(cfg domain.SystemConfig) domain.SystemConfig {
	categories := make([]string, len(cfg.Categories))
	copy(categories, cfg.Categories)
	cfg.Categories = categories
	if cfg.LastSync != nil {
		stamped := *cfg.LastSync
		cfg.LastSync = &stamped
	}
	return cfg
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
