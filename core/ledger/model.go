// Package ledger tracks stock quantities for marketplace products. A Ledger holds four quantity buckets
// (available, reserved, sold and damaged) either for a product as a whole or for a single harvested batch
// of it, and the Service moves quantities between those buckets on behalf of order workflows.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the aggregate (whole product) ledger from the batch (lot) ledger.
type Kind string

const (
	Aggregate Kind = "AGGREGATE"
	Batch     Kind = "BATCH"
)

func ParseKind(v string) (Kind, error) {
	switch Kind(v) {
	case Aggregate, Batch:
		return Kind(v), nil
	default:
		return "", ErrInvalidLedger
	}
}

type Status string

const (
	// Aggregate statuses
	OutOfStock Status = "OUT_OF_STOCK"
	LowStock   Status = "LOW_STOCK"
	Overstock  Status = "OVERSTOCK"
	InStock    Status = "IN_STOCK"

	// Batch statuses
	Expired      Status = "EXPIRED"
	ExpiringSoon Status = "EXPIRING_SOON"
	Damaged      Status = "DAMAGED"
	QualityIssue Status = "QUALITY_ISSUE"
	SoldOut      Status = "SOLD_OUT"
	Available    Status = "AVAILABLE"
)

type QualityGrade string

const (
	Premium QualityGrade = "PREMIUM"
	GradeA  QualityGrade = "GRADE_A"
	GradeB  QualityGrade = "GRADE_B"
	GradeC  QualityGrade = "GRADE_C"
	Reject  QualityGrade = "REJECT"
	NoGrade QualityGrade = ""
)

func ParseQualityGrade(v string) (QualityGrade, error) {
	switch QualityGrade(v) {
	case Premium, GradeA, GradeB, GradeC, Reject, NoGrade:
		return QualityGrade(v), nil
	default:
		return NoGrade, ErrInvalidLedger
	}
}

// Buckets is the quantity portion of a ledger.
type Buckets struct {
	Total     decimal.Decimal `json:"totalQuantity"`
	Available decimal.Decimal `json:"availableQuantity"`
	Reserved  decimal.Decimal `json:"reservedQuantity"`
	Sold      decimal.Decimal `json:"soldQuantity"`
	Damaged   decimal.Decimal `json:"damagedQuantity"`
}

func (b Buckets) Equal(o Buckets) bool {
	return b.Total.Equal(o.Total) &&
		b.Available.Equal(o.Available) &&
		b.Reserved.Equal(o.Reserved) &&
		b.Sold.Equal(o.Sold) &&
		b.Damaged.Equal(o.Damaged)
}

func (b Buckets) negative() bool {
	return b.Total.IsNegative() ||
		b.Available.IsNegative() ||
		b.Reserved.IsNegative() ||
		b.Sold.IsNegative() ||
		b.Damaged.IsNegative()
}

// Ledger is an entity. It is the quantity record for a product's aggregate stock, or for one traceable
// batch of it when Kind is Batch.
type Ledger struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	OwnerID      string `json:"ownerId"`
	ProductID    string `json:"productId"`
	LotNumber    string `json:"lotNumber,omitempty"`
	QuantityUnit string `json:"quantityUnit"`

	Buckets

	MinStockLevel   decimal.NullDecimal `json:"minStockLevel"`
	MaxStockLevel   decimal.NullDecimal `json:"maxStockLevel"`
	ReorderQuantity decimal.NullDecimal `json:"reorderQuantity"`
	CostPerUnit     decimal.NullDecimal `json:"costPerUnit"`

	ExpiryDate   *time.Time   `json:"expiryDate,omitempty"`
	QualityGrade QualityGrade `json:"qualityGrade,omitempty"`
	HarvestDate  *time.Time   `json:"harvestDate,omitempty"`

	Status  Status `json:"status"`
	Version int64  `json:"version"`

	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
	Deleted   bool      `json:"-"`
}

// NewLedgerRequest is a value object. A request to register stock for a product or a batch of it.
type NewLedgerRequest struct {
	Kind         Kind            `json:"kind"`
	OwnerID      string          `json:"ownerId"`
	ProductID    string          `json:"productId"`
	LotNumber    string          `json:"lotNumber"`
	QuantityUnit string          `json:"quantityUnit"`
	Quantity     decimal.Decimal `json:"quantity"`

	MinStockLevel   decimal.NullDecimal `json:"minStockLevel"`
	MaxStockLevel   decimal.NullDecimal `json:"maxStockLevel"`
	ReorderQuantity decimal.NullDecimal `json:"reorderQuantity"`
	CostPerUnit     decimal.NullDecimal `json:"costPerUnit"`

	ExpiryDate   *time.Time   `json:"expiryDate"`
	QualityGrade QualityGrade `json:"qualityGrade"`
	HarvestDate  *time.Time   `json:"harvestDate"`
}

// NewLedger builds an unsaved ledger holding the requested quantity as available stock.
func NewLedger(req NewLedgerRequest, actor ActorContext, now time.Time) (Ledger, error) {
	if err := validateNewLedger(req); err != nil {
		return Ledger{}, err
	}

	l := Ledger{
		Kind:         req.Kind,
		OwnerID:      req.OwnerID,
		ProductID:    req.ProductID,
		QuantityUnit: req.QuantityUnit,
		Buckets: Buckets{
			Total:     req.Quantity,
			Available: req.Quantity,
			Reserved:  decimal.Zero,
			Sold:      decimal.Zero,
			Damaged:   decimal.Zero,
		},
		CreatedBy: actor.ActorID,
		CreatedAt: now,
		UpdatedBy: actor.ActorID,
		UpdatedAt: now,
	}

	switch req.Kind {
	case Aggregate:
		l.MinStockLevel = req.MinStockLevel
		l.MaxStockLevel = req.MaxStockLevel
		l.ReorderQuantity = req.ReorderQuantity
		l.CostPerUnit = req.CostPerUnit
	case Batch:
		l.LotNumber = req.LotNumber
		l.ExpiryDate = req.ExpiryDate
		l.QualityGrade = req.QualityGrade
		l.HarvestDate = req.HarvestDate
	}

	l.Status = DeriveStatus(l, now)
	return l, nil
}

func validateNewLedger(req NewLedgerRequest) error {
	if _, err := ParseKind(string(req.Kind)); err != nil {
		return invalidLedger("unknown ledger kind %q", req.Kind)
	}
	if req.ProductID == "" {
		return invalidLedger("product id is required")
	}
	if req.OwnerID == "" {
		return invalidLedger("owner id is required")
	}
	if req.QuantityUnit == "" {
		return invalidLedger("quantity unit is required")
	}
	if req.Quantity.IsNegative() {
		return invalidLedger("quantity must not be negative")
	}
	if req.Kind == Batch && req.LotNumber == "" {
		return invalidLedger("lot number is required for batch ledgers")
	}
	if _, err := ParseQualityGrade(string(req.QualityGrade)); err != nil {
		return invalidLedger("unknown quality grade %q", req.QualityGrade)
	}
	for name, v := range map[string]decimal.NullDecimal{
		"min stock level":  req.MinStockLevel,
		"max stock level":  req.MaxStockLevel,
		"reorder quantity": req.ReorderQuantity,
		"cost per unit":    req.CostPerUnit,
	} {
		if v.Valid && v.Decimal.IsNegative() {
			return invalidLedger("%s must not be negative", name)
		}
	}
	if req.MinStockLevel.Valid && req.MaxStockLevel.Valid &&
		req.MinStockLevel.Decimal.GreaterThan(req.MaxStockLevel.Decimal) {
		return invalidLedger("min stock level exceeds max stock level")
	}
	return nil
}

// Role identifies what an actor is allowed to do with ledgers.
type Role string

const (
	// RoleProducer may only act on ledgers it owns.
	RoleProducer Role = "PRODUCER"
	// RoleOrderService is the order fulfillment workflow acting on behalf of buyers.
	RoleOrderService Role = "ORDER_SERVICE"
	RoleAdmin        Role = "ADMIN"
)

// ActorContext identifies who is calling into the engine. It is passed explicitly to every operation.
type ActorContext struct {
	ActorID string `json:"actorId"`
	OwnerID string `json:"ownerId"`
	Role    Role   `json:"role"`
}

// SystemActor is used by background consumers that act with full authority.
func SystemActor(name string) ActorContext {
	return ActorContext{ActorID: name, Role: RoleAdmin}
}

// CanManage reports whether the actor may mutate a ledger owned by ownerID.
func (a ActorContext) CanManage(ownerID string) bool {
	switch a.Role {
	case RoleAdmin, RoleOrderService:
		return true
	case RoleProducer:
		return a.OwnerID != "" && a.OwnerID == ownerID
	default:
		return false
	}
}
