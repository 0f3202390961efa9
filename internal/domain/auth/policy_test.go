package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize(t *testing.T) {
	manager := &Principal{UserID: "m", Role: RoleManager}
	employee := &Principal{UserID: "e", Role: RoleEmployee}
	customer := &Principal{UserID: "c", Role: RoleCustomer}

	tests := []struct {
		name    string
		p       *Principal
		op      Operation
		wantErr error
	}{
		{name: "nil principal", p: nil, op: OpCreateOrder, wantErr: ErrUnauthenticated},
		{name: "customer creates order", p: customer, op: OpCreateOrder},
		{name: "customer cannot complete", p: customer, op: OpCompleteOrder, wantErr: ErrForbidden},
		{name: "employee completes", p: employee, op: OpCompleteOrder},
		{name: "manager completes", p: manager, op: OpCompleteOrder},
		{name: "employee cannot create codes", p: employee, op: OpCreateDiscount, wantErr: ErrForbidden},
		{name: "manager creates codes", p: manager, op: OpCreateDiscount},
		{name: "customer cannot read reports", p: customer, op: OpViewReports, wantErr: ErrForbidden},
		{name: "employee cannot read reports", p: employee, op: OpViewReports, wantErr: ErrForbidden},
		{name: "customer lists own orders", p: customer, op: OpViewOwnOrders},
		{name: "customer cannot list all orders", p: customer, op: OpViewAllOrders, wantErr: ErrForbidden},
		{name: "unknown operation denied", p: manager, op: Operation("nope"), wantErr: ErrForbidden},
		{name: "unknown role denied", p: &Principal{Role: Role("root")}, op: OpBrowseMenu, wantErr: ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.p, tt.op)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRole(t *testing.T) {
	assert.True(t, RoleManager.Staff())
	assert.True(t, RoleEmployee.Staff())
	assert.False(t, RoleCustomer.Staff())
	assert.True(t, RoleCustomer.Valid())
	assert.False(t, Role("").Valid())
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	p := &Principal{UserID: "u1", Role: RoleCustomer}
	got, ok := FromContext(WithPrincipal(context.Background(), p))
	require.True(t, ok)
	assert.Same(t, p, got)

	_, ok = FromContext(WithPrincipal(context.Background(), nil))
	assert.False(t, ok)
}
