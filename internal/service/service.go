// Package service holds the business rules: the stock ledger, the debt
// allocator and the configuration surface. Handlers validate and orchestrate
// here; the repository applies each batch atomically.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"gestorpro/backend/internal/domain"
	"gestorpro/backend/internal/store"
	"gestorpro/backend/internal/xid"
)

// DefaultClientName labels anonymous cash sales in movement notes.
const DefaultClientName = "Cliente General"

// consignmentTermDays is how far out a credit sale's debt is due.
const consignmentTermDays = 30

type Service struct {
	repo     store.Repository
	validate *validator.Validate
}

func New(repo store.Repository) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type actorKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorKey{}).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{Username: "anonymous"}
}

func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return nil
}

// --- products ---

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:              xid.New("prod"),
		Name:            strings.TrimSpace(req.Name),
		SKU:             strings.TrimSpace(req.SKU),
		Category:        req.Category,
		PriceCents:      req.PriceCents,
		Image:           req.Image,
		DefaultBulkSize: req.DefaultBulkSize,
		UpdatedAt:       now,
	}
	if product.SKU == "" {
		product.SKU = generateSKU()
	}

	// Initial stock enters the ledger as an opening adjustment so that the
	// quantity stays derivable from movements alone.
	var opening *domain.StockMovement
	if req.InitialQuantity > 0 {
		opening = &domain.StockMovement{
			ID:            xid.New("mv"),
			ProductID:     product.ID,
			Kind:          domain.MovementAdjustment,
			QuantityDelta: req.InitialQuantity,
			Note:          "Opening stock",
			CreatedAt:     now,
		}
	}

	created, err := s.repo.CreateProduct(ctx, product, opening)
	if err != nil {
		return nil, err
	}
	log.Printf("[service] product %s created by %s", created.ID, ActorFromContext(ctx).Username)
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	product := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be blank", store.ErrValidation)
		}
		product.Name = name
	}
	if req.SKU != nil {
		product.SKU = strings.TrimSpace(*req.SKU)
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return nil, fmt.Errorf("%w: price cannot be negative", store.ErrValidation)
		}
		product.PriceCents = *req.PriceCents
	}
	if req.DefaultBulkSize != nil {
		if *req.DefaultBulkSize < 0 {
			return nil, fmt.Errorf("%w: bulk size cannot be negative", store.ErrValidation)
		}
		product.DefaultBulkSize = *req.DefaultBulkSize
	}
	if req.Image != nil {
		product.Image = *req.Image
	}
	product.UpdatedAt = time.Now().UTC()

	return s.repo.UpdateProduct(ctx, product)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	log.Printf("[service] product %s deleted by %s", id, ActorFromContext(ctx).Username)
	return nil
}

func (s *Service) ListMovements(ctx context.Context, productID string) ([]domain.StockMovement, error) {
	return s.repo.ListMovements(ctx, productID)
}

// --- ledger ---

// RecordEntry appends a positive stock movement. Bulk entries multiply units
// by the case size before they hit the ledger; the total must end up positive.
func (s *Service) RecordEntry(ctx context.Context, req domain.StockEntryRequest) (*domain.StockEntryResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	size := 1
	if req.IsBulk {
		if req.BulkSize < 1 {
			return nil, fmt.Errorf("%w: bulk entry requires bulk_size >= 1", store.ErrValidation)
		}
		size = req.BulkSize
	}
	total := req.Units * size
	if total <= 0 {
		return nil, fmt.Errorf("%w: entry must add stock", store.ErrValidation)
	}

	note := fmt.Sprintf("Entry: %d units", total)
	if req.IsBulk {
		note = fmt.Sprintf("Entry: %d cases (x%d)", req.Units, size)
	}

	movement := domain.StockMovement{
		ID:            xid.New("mv"),
		ProductID:     req.ProductID,
		Kind:          domain.MovementEntry,
		QuantityDelta: total,
		Note:          note,
		CreatedAt:     time.Now().UTC(),
	}

	products, err := s.repo.AppendMovements(ctx, []domain.StockMovement{movement}, nil)
	if err != nil {
		return nil, err
	}
	return &domain.StockEntryResponse{Product: products[0], Movement: movement}, nil
}

// RecordSale turns a cart into negative ledger movements, one per line. A
// consignment sale additionally records a debt and registers the client; the
// whole batch lands atomically or not at all. Overselling is allowed and only
// reported through stock warnings.
func (s *Service) RecordSale(ctx context.Context, req domain.SaleRequest) (*domain.SaleResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	clientName := strings.TrimSpace(req.ClientName)
	if req.Kind == domain.MovementConsignment && clientName == "" {
		return nil, store.ErrMissingClient
	}
	displayName := clientName
	if displayName == "" {
		displayName = DefaultClientName
	}

	now := time.Now().UTC()
	ticketID := xid.New("ticket")

	movements := make([]domain.StockMovement, 0, len(req.Lines))
	var totalCents int64
	for _, line := range req.Lines {
		size := 1
		if line.IsBulk {
			if line.BulkSize < 1 {
				return nil, fmt.Errorf("%w: bulk line requires bulk_size >= 1", store.ErrValidation)
			}
			size = line.BulkSize
		}

		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		unitPrice := line.UnitPriceCents
		if unitPrice == 0 {
			unitPrice = product.PriceCents * int64(size)
		}
		totalCents += int64(line.Units) * unitPrice

		note := fmt.Sprintf("Sale to %s", displayName)
		if req.Kind == domain.MovementConsignment {
			note = fmt.Sprintf("Consignment to %s", displayName)
		}
		movements = append(movements, domain.StockMovement{
			ID:            xid.New("mv"),
			ProductID:     line.ProductID,
			Kind:          req.Kind,
			QuantityDelta: -(line.Units * size),
			Note:          note,
			CreatedAt:     now,
		})
	}

	var debt *domain.Debt
	if req.Kind == domain.MovementConsignment {
		debt = &domain.Debt{
			ID:          xid.New("debt"),
			DebtorName:  clientName,
			AmountCents: totalCents,
			Description: fmt.Sprintf("Credit sale (%s)", ticketID),
			DueDate:     now.AddDate(0, 0, consignmentTermDays),
		}
	}

	products, err := s.repo.AppendMovements(ctx, movements, debt)
	if err != nil {
		return nil, err
	}

	var warnings []domain.StockWarning
	for _, p := range products {
		if p.Quantity < 0 {
			warnings = append(warnings, domain.StockWarning{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  p.Quantity,
			})
		}
	}
	if len(warnings) > 0 {
		log.Printf("[service] sale %s oversold %d product(s)", ticketID, len(warnings))
	}

	return &domain.SaleResponse{
		TicketID:      ticketID,
		Kind:          req.Kind,
		ClientName:    displayName,
		TotalCents:    totalCents,
		Movements:     movements,
		Debt:          debt,
		StockWarnings: warnings,
	}, nil
}

// ReverseMovement deletes a ledger row and undoes its quantity effect. There
// is no in-place edit of history; this is the only correction path.
func (s *Service) ReverseMovement(ctx context.Context, movementID string) (*domain.ReversalResponse, error) {
	product, reversed, err := s.repo.ReverseMovement(ctx, movementID)
	if err != nil {
		return nil, err
	}
	log.Printf("[service] movement %s reversed by %s", movementID, ActorFromContext(ctx).Username)
	return &domain.ReversalResponse{Product: product, Reversed: *reversed}, nil
}

// --- debts ---

func (s *Service) ListDebts(ctx context.Context) ([]domain.Debt, error) {
	return s.repo.ListDebts(ctx)
}

func (s *Service) CreateDebt(ctx context.Context, req domain.DebtCreateRequest) (*domain.Debt, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	debt := domain.Debt{
		ID:          xid.New("debt"),
		DebtorName:  strings.TrimSpace(req.DebtorName),
		AmountCents: req.AmountCents,
		Description: req.Description,
		DueDate:     due,
	}
	if debt.DebtorName == "" {
		return nil, store.ErrMissingClient
	}
	return s.repo.CreateDebt(ctx, debt)
}

func (s *Service) UpdateDebt(ctx context.Context, id string, req domain.DebtUpdateRequest) (*domain.Debt, error) {
	existing, err := s.repo.GetDebt(ctx, id)
	if err != nil {
		return nil, err
	}

	debt := *existing
	if req.AmountCents != nil {
		if *req.AmountCents <= 0 {
			return nil, fmt.Errorf("%w: amount must be positive", store.ErrValidation)
		}
		debt.AmountCents = *req.AmountCents
	}
	if req.Description != nil {
		debt.Description = *req.Description
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		debt.DueDate = due
	}
	if req.Paid != nil {
		debt.Paid = *req.Paid
	}
	return s.repo.UpdateDebt(ctx, debt)
}

func (s *Service) DeleteDebt(ctx context.Context, id string) error {
	return s.repo.DeleteDebt(ctx, id)
}

// SettlePayment applies a payment against a client's unpaid debts
// oldest-due-first. Any amount beyond the total outstanding is discarded.
func (s *Service) SettlePayment(ctx context.Context, clientName string, req domain.PaymentRequest) (*domain.PaymentResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return nil, store.ErrMissingClient
	}

	debts, applied, err := s.repo.SettleClientPayment(ctx, clientName, req.AmountCents)
	if err != nil {
		return nil, err
	}

	var outstanding int64
	for _, d := range debts {
		if !d.Paid {
			outstanding += d.AmountCents
		}
	}
	log.Printf("[service] payment of %d applied to %s, %d outstanding", applied, clientName, outstanding)

	return &domain.PaymentResponse{
		ClientName:       clientName,
		AppliedCents:     applied,
		OutstandingCents: outstanding,
		Debts:            debts,
	}, nil
}

func (s *Service) SettleAll(ctx context.Context, clientName string) (*domain.SettleAllResponse, error) {
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return nil, store.ErrMissingClient
	}
	settled, err := s.repo.SettleClientAll(ctx, clientName)
	if err != nil {
		return nil, err
	}
	return &domain.SettleAllResponse{ClientName: clientName, SettledDebts: settled}, nil
}

// --- clients ---

func (s *Service) ListClients(ctx context.Context) ([]domain.ClientSummary, error) {
	clients, err := s.repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	debts, err := s.repo.ListDebts(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.ClientSummary, 0, len(clients))
	for _, name := range clients {
		summary := domain.ClientSummary{Name: name}
		for _, d := range debts {
			if d.DebtorName != name || d.Paid {
				continue
			}
			summary.OutstandingCents += d.AmountCents
			summary.UnpaidCount++
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *Service) DeleteClient(ctx context.Context, name string) error {
	if err := s.repo.DeleteClient(ctx, name); err != nil {
		return err
	}
	log.Printf("[service] client %q deleted by %s", name, ActorFromContext(ctx).Username)
	return nil
}

// --- configuration ---

func (s *Service) GetConfig(ctx context.Context) (domain.SystemConfig, error) {
	return s.repo.GetConfig(ctx)
}

func (s *Service) PatchConfig(ctx context.Context, patch domain.ConfigPatch) (domain.SystemConfig, error) {
	cfg, err := s.repo.PatchConfig(ctx, patch)
	if err != nil {
		return domain.SystemConfig{}, err
	}
	log.Printf("[service] config patched by %s", ActorFromContext(ctx).Username)
	return cfg, nil
}

// --- dashboard ---

// Dashboard aggregates over one consistent snapshot so the figures never mix
// states from interleaved writes.
func (s *Service) Dashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	summary := &domain.DashboardSummary{
		ProductCount:  len(snap.Products),
		MovementCount: len(snap.History),
	}
	for _, p := range snap.Products {
		summary.StockValueCents += int64(p.Quantity) * p.PriceCents
		if snap.Config.EnableLowStockWarning && p.Quantity <= snap.Config.LowStockThreshold {
			summary.LowStockCount++
		}
	}
	for _, d := range snap.Debts {
		if !d.Paid {
			summary.OutstandingDebtCents += d.AmountCents
			summary.UnpaidDebtCount++
		}
	}
	return summary, nil
}

// --- export / import ---

// ExportBackup renders the current snapshot as an indented JSON document plus
// a dated download filename.
func (s *Service) ExportBackup(ctx context.Context) (filename string, payload []byte, err error) {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return "", nil, err
	}
	payload, err = json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode backup: %w", err)
	}
	filename = fmt.Sprintf("gestor-pro-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
	return filename, payload, nil
}

// ImportBackup replaces the whole local state with an exported snapshot file.
func (s *Service) ImportBackup(ctx context.Context, payload []byte) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: not a valid backup file", store.ErrValidation)
	}
	if snap.Timestamp.IsZero() && len(snap.Products) == 0 && len(snap.History) == 0 && len(snap.Debts) == 0 {
		return nil, fmt.Errorf("%w: backup file has no recognizable data", store.ErrValidation)
	}
	if err := s.repo.Restore(ctx, snap); err != nil {
		return nil, err
	}
	log.Printf("[service] backup imported by %s (%d products, %d movements)",
		ActorFromContext(ctx).Username, len(snap.Products), len(snap.History))
	return &snap, nil
}

func parseDueDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: due_date must be YYYY-MM-DD", store.ErrValidation)
}

func generateSKU() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return raw[:4] + "-" + raw[4:6]
}
