package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseDateLayout is the accepted format for purchase dates.
const PurchaseDateLayout = "2006-01-02"

// Component represents a quantity-bearing inventory item whose units can be
// checked out to assets or users. Units are fungible.
type Component struct {
	ID             int64               `json:"id"`
	Name           string              `json:"name"`
	CategoryID     *int64              `json:"category_id"`
	LocationID     *int64              `json:"location_id"`
	CompanyID      *int64              `json:"company_id"`
	ManufacturerID *int64              `json:"manufacturer_id"`
	SupplierID     *int64              `json:"supplier_id"`
	ModelNumber    *string             `json:"model_number"`
	OrderNumber    *string             `json:"order_number"`
	Serial         string              `json:"serial"`
	Notes          *string             `json:"notes"`
	PurchaseDate   *string             `json:"purchase_date"`
	PurchaseCost   decimal.NullDecimal `json:"purchase_cost"`
	MinAmt         *int                `json:"min_amt"`
	Qty            int                 `json:"qty"`
	Image          *string             `json:"image"`
	CreatedBy      *int64              `json:"created_by"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	DeletedAt      *time.Time          `json:"deleted_at,omitempty"`

	// Version is bumped on every write; used for optimistic concurrency.
	Version int64 `json:"-"`
}

// ComponentFields is the caller-editable part of a component. Update replaces
// every field with the values given here; a nil pointer clears the field.
type ComponentFields struct {
	Name           string              `json:"name"`
	CategoryID     *int64              `json:"category_id"`
	LocationID     *int64              `json:"location_id"`
	CompanyID      *int64              `json:"company_id"`
	ManufacturerID *int64              `json:"manufacturer_id"`
	SupplierID     *int64              `json:"supplier_id"`
	ModelNumber    *string             `json:"model_number"`
	OrderNumber    *string             `json:"order_number"`
	Serial         string              `json:"serial"`
	Notes          *string             `json:"notes"`
	PurchaseDate   *string             `json:"purchase_date"`
	PurchaseCost   decimal.NullDecimal `json:"purchase_cost"`
	MinAmt         *int                `json:"min_amt"`
	Qty            int                 `json:"qty"`
}

// Apply overwrites every editable field of c with f. CompanyID is copied as
// given; callers resolve the tenant before applying.
func (f ComponentFields) Apply(c *Component) {
	c.Name = f.Name
	c.CategoryID = f.CategoryID
	c.LocationID = f.LocationID
	c.CompanyID = f.CompanyID
	c.ManufacturerID = f.ManufacturerID
	c.SupplierID = f.SupplierID
	c.ModelNumber = f.ModelNumber
	c.OrderNumber = f.OrderNumber
	c.Serial = f.Serial
	c.Notes = f.Notes
	c.PurchaseDate = f.PurchaseDate
	c.PurchaseCost = f.PurchaseCost
	c.MinAmt = f.MinAmt
	c.Qty = f.Qty
}

// Fields returns the editable fields of c.
func (c *Component) Fields() ComponentFields {
	return ComponentFields{
		Name:           c.Name,
		CategoryID:     c.CategoryID,
		LocationID:     c.LocationID,
		CompanyID:      c.CompanyID,
		ManufacturerID: c.ManufacturerID,
		SupplierID:     c.SupplierID,
		ModelNumber:    c.ModelNumber,
		OrderNumber:    c.OrderNumber,
		Serial:         c.Serial,
		Notes:          c.Notes,
		PurchaseDate:   c.PurchaseDate,
		PurchaseCost:   c.PurchaseCost,
		MinAmt:         c.MinAmt,
		Qty:            c.Qty,
	}
}

// ComponentFilter narrows a component listing. Zero values match everything.
type ComponentFilter struct {
	// ScopeCompany restricts results to CompanyID; a nil CompanyID then
	// matches components without a company.
	ScopeCompany bool
	CompanyID    *int64

	CategoryID *int64
	LocationID *int64
	Search     string
}
