package auth

// Operation names a guarded domain action.
type Operation string

const (
	OpCreateOrder      Operation = "order.create"
	OpViewOwnOrders    Operation = "order.list_own"
	OpCancelOwnOrder   Operation = "order.cancel_own"
	OpCompleteOrder    Operation = "order.complete"
	OpStaffCancelOrder Operation = "order.staff_cancel"
	OpViewAllOrders    Operation = "order.list_all"
	OpApplyDiscount    Operation = "discount.apply"
	OpCreateDiscount   Operation = "discount.create"
	OpListDiscounts    Operation = "discount.list"
	OpRateDish         Operation = "rating.write"
	OpViewRatings      Operation = "rating.read"
	OpViewReports      Operation = "report.read"
	OpBrowseMenu       Operation = "menu.read"
	OpEditDish         Operation = "menu.edit"
	OpManageAddresses  Operation = "address.manage"
)

var (
	anyone   = []Role{RoleManager, RoleEmployee, RoleCustomer}
	staff    = []Role{RoleManager, RoleEmployee}
	managers = []Role{RoleManager}
)

// policy lists the roles allowed to perform each operation. Operations absent
// from the table are denied.
var policy = map[Operation][]Role{
	OpCreateOrder:      anyone,
	OpViewOwnOrders:    anyone,
	OpCancelOwnOrder:   anyone,
	OpCompleteOrder:    staff,
	OpStaffCancelOrder: staff,
	OpViewAllOrders:    staff,
	OpApplyDiscount:    anyone,
	OpCreateDiscount:   managers,
	OpListDiscounts:    managers,
	OpRateDish:         anyone,
	OpViewRatings:      anyone,
	OpViewReports:      managers,
	OpBrowseMenu:       anyone,
	OpEditDish:         managers,
	OpManageAddresses:  anyone,
}

// Authorize reports whether p may perform op. It returns ErrUnauthenticated
// for a nil principal and ErrForbidden when the role is not allowed.
func Authorize(p *Principal, op Operation) error {
	if p == nil {
		return ErrUnauthenticated
	}
	for _, r := range policy[op] {
		if r == p.Role {
			return nil
		}
	}
	return ErrForbidden
}
