package domain

import "time"

type Product struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SKU             string    `json:"sku"`
	Category        string    `json:"category"`
	Quantity        int       `json:"quantity"`
	PriceCents      int64     `json:"price_cents"`
	Image           string    `json:"image,omitempty"`
	DefaultBulkSize int       `json:"default_bulk_size,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StockMovement is one immutable ledger row. QuantityDelta is signed:
// entries and returns are positive, sales and consignments negative.
// A product's quantity is always the sum of its remaining deltas.
type StockMovement struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	Kind          string    `json:"kind"`
	QuantityDelta int       `json:"quantity_delta"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Debt struct {
	ID          string    `json:"id"`
	DebtorName  string    `json:"debtor_name"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	Paid        bool      `json:"paid"`
}

type SystemConfig struct {
	ShopName              string   `json:"shop_name"`
	CurrencySymbol        string   `json:"currency_symbol"`
	TaxRatePercent        float64  `json:"tax_rate_percent"`
	Categories            []string `json:"categories"`
	EnableLowStockWarning bool     `json:"enable_low_stock_warning"`
	LowStockThreshold     int      `json:"low_stock_threshold"`
	// RemoteClientID is this device's own remote connection identity. It is
	// the one field that survives a snapshot restore.
	RemoteClientID string     `json:"remote_client_id,omitempty"`
	BackupObjectID string     `json:"backup_object_id,omitempty"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
}

// Snapshot is a full, timestamped copy of every collection plus configuration.
// It is the wire shape of the remote backup object and of local export files.
type Snapshot struct {
	Products  []Product       `json:"products"`
	Debts     []Debt          `json:"debts"`
	History   []StockMovement `json:"history"`
	Clients   []string        `json:"clients"`
	Config    SystemConfig    `json:"config"`
	Timestamp time.Time       `json:"timestamp"`
}

const (
	MovementEntry       = "entry"
	MovementSale        = "sale"
	MovementConsignment = "consignment"
	MovementAdjustment  = "adjustment"
	MovementReturn      = "return"
)

type ProductCreateRequest struct {
	Name            string `json:"name" validate:"required"`
	SKU             string `json:"sku"`
	Category        string `json:"category" validate:"required"`
	PriceCents      int64  `json:"price_cents" validate:"gte=0"`
	InitialQuantity int    `json:"initial_quantity" validate:"gte=0"`
	DefaultBulkSize int    `json:"default_bulk_size" validate:"gte=0"`
	Image           string `json:"image"`
}

type ProductUpdateRequest struct {
	Name            *string `json:"name,omitempty"`
	SKU             *string `json:"sku,omitempty"`
	Category        *string `json:"category,omitempty"`
	PriceCents      *int64  `json:"price_cents,omitempty"`
	DefaultBulkSize *int    `json:"default_bulk_size,omitempty"`
	Image           *string `json:"image,omitempty"`
}

type StockEntryRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Units     int    `json:"units" validate:"required"`
	IsBulk    bool   `json:"is_bulk"`
	BulkSize  int    `json:"bulk_size"`
}

type StockEntryResponse struct {
	Product  Product       `json:"product"`
	Movement StockMovement `json:"movement"`
}

type CartLine struct {
	ProductID      string `json:"product_id" validate:"required"`
	Units          int    `json:"units" validate:"required,gt=0"`
	IsBulk         bool   `json:"is_bulk"`
	BulkSize       int    `json:"bulk_size"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
}

type SaleRequest struct {
	Kind       string     `json:"kind" validate:"required,oneof=sale consignment"`
	ClientName string     `json:"client_name"`
	Lines      []CartLine `json:"lines" validate:"required,min=1,dive"`
}

// StockWarning reports a line that drove a product's quantity negative.
// Overselling is never blocked; the shortfall is surfaced for the caller.
type StockWarning struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

type SaleResponse struct {
	TicketID      string          `json:"ticket_id"`
	Kind          string          `json:"kind"`
	ClientName    string          `json:"client_name"`
	TotalCents    int64           `json:"total_cents"`
	Movements     []StockMovement `json:"movements"`
	Debt          *Debt           `json:"debt,omitempty"`
	StockWarnings []StockWarning  `json:"stock_warnings,omitempty"`
}

type ReversalResponse struct {
	// Product is nil when the product row was deleted after the movement.
	Product  *Product      `json:"product,omitempty"`
	Reversed StockMovement `json:"reversed_movement"`
}

type DebtCreateRequest struct {
	DebtorName  string `json:"debtor_name" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Description string `json:"description"`
	DueDate     string `json:"due_date" validate:"required"`
}

type DebtUpdateRequest struct {
	AmountCents *int64  `json:"amount_cents,omitempty"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Paid        *bool   `json:"paid,omitempty"`
}

type PaymentRequest struct {
	AmountCents int64 `json:"amount_cents" validate:"required,gt=0"`
}

type PaymentResponse struct {
	ClientName       string `json:"client_name"`
	AppliedCents     int64  `json:"applied_cents"`
	OutstandingCents int64  `json:"outstanding_cents"`
	Debts            []Debt `json:"debts"`
}

type SettleAllResponse struct {
	ClientName   string `json:"client_name"`
	SettledDebts int    `json:"settled_debts"`
}

type ClientSummary struct {
	Name             string `json:"name"`
	OutstandingCents int64  `json:"outstanding_cents"`
	UnpaidCount      int    `json:"unpaid_count"`
}

// ConfigPatch is a shallow partial update of SystemConfig. Unknown JSON fields
// are ignored by the API layer, never rejected; this is also the surface the
// AI assistant's configuration tool calls into.
type ConfigPatch struct {
	ShopName              *string   `json:"shop_name,omitempty"`
	CurrencySymbol        *string   `json:"currency_symbol,omitempty"`
	TaxRatePercent        *float64  `json:"tax_rate_percent,omitempty"`
	Categories            *[]string `json:"categories,omitempty"`
	EnableLowStockWarning *bool     `json:"enable_low_stock_warning,omitempty"`
	LowStockThreshold     *int      `json:"low_stock_threshold,omitempty"`
	RemoteClientID        *string   `json:"remote_client_id,omitempty"`
}

type DashboardSummary struct {
	StockValueCents      int64 `json:"stock_value_cents"`
	OutstandingDebtCents int64 `json:"outstanding_debt_cents"`
	LowStockCount        int   `json:"low_stock_count"`
	ProductCount         int   `json:"product_count"`
	UnpaidDebtCount      int   `json:"unpaid_debt_count"`
	MovementCount        int   `json:"movement_count"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
}
