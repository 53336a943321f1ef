package component

import (
	"strings"
	"time"

	"github.com/erazemk/komponente/internal/model"
)

// costScale is the number of decimal places a purchase cost may carry. It
// matches the DECIMAL scale of the MySQL column.
const costScale = 4

// validateFields checks the caller-editable fields of a component.
func validateFields(f *model.ComponentFields) error {
	var errs ValidationErrors

	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		errs = append(errs, invalid("name", "name is required"))
	}
	if f.Qty < 0 {
		errs = append(errs, invalid("qty", "quantity must not be negative"))
	}
	if f.MinAmt != nil && *f.MinAmt < 0 {
		errs = append(errs, invalid("min_amt", "minimum amount must not be negative"))
	}
	if f.PurchaseCost.Valid {
		cost := f.PurchaseCost.Decimal
		switch {
		case cost.IsNegative():
			errs = append(errs, invalid("purchase_cost", "purchase cost must not be negative"))
		case !cost.Equal(cost.Round(costScale)):
			errs = append(errs, invalid("purchase_cost", "purchase cost must have at most %d decimal places", costScale))
		}
	}
	if f.PurchaseDate != nil {
		if _, err := time.Parse(model.PurchaseDateLayout, *f.PurchaseDate); err != nil {
			errs = append(errs, invalid("purchase_date", "purchase date must be formatted as YYYY-MM-DD"))
		}
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errs
}

func validateAssignment(a *model.Assignment) error {
	var errs ValidationErrors

	if a.AssignedType != model.AssignedToAsset && a.AssignedType != model.AssignedToUser {
		errs = append(errs, invalid("assigned_type", "assigned type must be %q or %q",
			model.AssignedToAsset, model.AssignedToUser))
	}
	if a.AssignedTo <= 0 {
		errs = append(errs, invalid("assigned_to", "holder is required"))
	}
	if a.Quantity <= 0 {
		errs = append(errs, invalid("quantity", "quantity must be positive"))
	}

	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errs
}
