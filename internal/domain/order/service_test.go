package order

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bistro/internal/domain/address"
	"github.com/xenking/bistro/internal/domain/auth"
	"github.com/xenking/bistro/internal/domain/dish"
	"github.com/xenking/bistro/internal/domain/event"
	"github.com/xenking/bistro/internal/domain/pricing"
)

// --- In-memory collaborators ---

type memDishRepo struct {
	mu     sync.Mutex
	byID   map[string]*dish.Dish
	getErr error
}

func newDishRepo(dishes ...dish.Dish) *memDishRepo {
	r := &memDishRepo{byID: make(map[string]*dish.Dish, len(dishes))}
	for i := range dishes {
		r.byID[dishes[i].ID] = &dishes[i]
	}
	return r
}

func (m *memDishRepo) List(_ context.Context) ([]dish.Dish, error) {
	return nil, nil
}

func (m *memDishRepo) GetByID(_ context.Context, id string) (*dish.Dish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, dish.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDishRepo) GetByIDs(_ context.Context, ids []string) ([]dish.Dish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []dish.Dish
	for _, id := range ids {
		if d, ok := m.byID[id]; ok {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memDishRepo) UpdatePrice(_ context.Context, id string, price decimal.Decimal) (*dish.Dish, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, dish.ErrNotFound
	}
	d.Price = price
	cp := *d
	return &cp, nil
}

func (m *memDishRepo) ListCategories(_ context.Context) ([]dish.Category, error) {
	return nil, nil
}

type memAddressRepo struct {
	byID map[string]address.Address
}

func (m *memAddressRepo) GetByID(_ context.Context, id string) (*address.Address, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, address.ErrNotFound
	}
	return &a, nil
}

func (m *memAddressRepo) ListByUser(_ context.Context, userID string) ([]address.Address, error) {
	var out []address.Address
	for _, a := range m.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAddressRepo) Create(_ context.Context, a *address.Address) error {
	m.byID[a.ID] = *a
	return nil
}

type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*Order
	createErr error
}

func newOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*Order)}
}

func (m *memOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) list(match func(*Order) bool) []Order {
	var out []Order
	for _, o := range m.orders {
		if match(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memOrderRepo) ListByUser(_ context.Context, userID string, status Status) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(o *Order) bool { return o.UserID == userID && o.Status == status }), nil
}

func (m *memOrderRepo) ListByStatus(_ context.Context, status Status) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list(func(o *Order) bool { return o.Status == status }), nil
}

func (m *memOrderRepo) Transition(_ context.Context, id string, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != StatusPending {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

// --- Helpers ---

var (
	alice    = &auth.Principal{UserID: "u-alice", Username: "alice", Role: auth.RoleCustomer}
	bob      = &auth.Principal{UserID: "u-bob", Username: "bob", Role: auth.RoleCustomer}
	employee = &auth.Principal{UserID: "u-emp", Username: "emp", Role: auth.RoleEmployee}
	start    = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc    *Service
	dishes *memDishRepo
	orders *memOrderRepo
	events *recordingPublisher
	clock  time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dishes: newDishRepo(
			dish.Dish{ID: "A", Name: "Kebab", Price: decimal.RequireFromString("10.00")},
			dish.Dish{ID: "B", Name: "Salad", Price: decimal.RequireFromString("5.50")},
		),
		orders: newOrderRepo(),
		events: &recordingPublisher{},
		clock:  start,
	}
	addresses := &memAddressRepo{byID: map[string]address.Address{
		"addr-alice": {ID: "addr-alice", UserID: alice.UserID, Street: "1 Main St", Area: "Center"},
		"addr-bob":   {ID: "addr-bob", UserID: bob.UserID, Street: "2 Side St", Area: "North"},
	}}
	f.svc = NewService(f.dishes, addresses, f.orders, WithEvents(f.events))
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) place(t *testing.T) *Order {
	t.Helper()
	o, err := f.svc.CreateOrder(context.Background(), alice, "addr-alice", []LineRequest{
		{DishID: "A", Quantity: 2},
		{DishID: "B", Quantity: 1},
	})
	require.NoError(t, err)
	return o
}

// --- Tests ---

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	o := f.place(t)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, alice.UserID, o.UserID)
	assert.Equal(t, start, o.CreatedAt)
	assert.True(t, decimal.RequireFromString("25.50").Equal(o.TotalPrice), "got %s", o.TotalPrice)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "A", o.Items[0].DishID)
	assert.Equal(t, "Kebab", o.Items[0].DishName)
	assert.Equal(t, 0, o.Items[0].Position)
	assert.Equal(t, "B", o.Items[1].DishID)
	assert.Equal(t, 1, o.Items[1].Position)

	stored, err := f.orders.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, o.TotalPrice.Equal(stored.TotalPrice))

	require.Len(t, f.events.events, 1)
	assert.Equal(t, event.OrderCreated, f.events.events[0].Kind)
	assert.Equal(t, "25.50", f.events.events[0].Attrs["total"])
}

func TestCreateOrder_Validation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		p         *auth.Principal
		addressID string
		lines     []LineRequest
		check     func(t *testing.T, err error)
	}{
		{
			name:      "unauthenticated",
			p:         nil,
			addressID: "addr-alice",
			lines:     []LineRequest{{DishID: "A", Quantity: 1}},
			check:     func(t *testing.T, err error) { require.ErrorIs(t, err, auth.ErrUnauthenticated) },
		},
		{
			name:      "empty order",
			p:         alice,
			addressID: "addr-alice",
			check:     func(t *testing.T, err error) { require.ErrorIs(t, err, ErrEmptyOrder) },
		},
		{
			name:      "zero quantity",
			p:         alice,
			addressID: "addr-alice",
			lines:     []LineRequest{{DishID: "A", Quantity: 1}, {DishID: "B", Quantity: 0}},
			check: func(t *testing.T, err error) {
				var iqErr *pricing.InvalidQuantityError
				require.ErrorAs(t, err, &iqErr)
				assert.Equal(t, "B", iqErr.DishID)
			},
		},
		{
			name:      "address of another user",
			p:         alice,
			addressID: "addr-bob",
			lines:     []LineRequest{{DishID: "A", Quantity: 1}},
			check:     func(t *testing.T, err error) { require.ErrorIs(t, err, ErrAddressNotOwned) },
		},
		{
			name:      "missing address",
			p:         alice,
			addressID: "nowhere",
			lines:     []LineRequest{{DishID: "A", Quantity: 1}},
			check:     func(t *testing.T, err error) { require.ErrorIs(t, err, ErrAddressNotOwned) },
		},
		{
			name:      "unknown dish",
			p:         alice,
			addressID: "addr-alice",
			lines:     []LineRequest{{DishID: "A", Quantity: 1}, {DishID: "Z", Quantity: 1}},
			check: func(t *testing.T, err error) {
				var udErr *pricing.UnknownDishError
				require.ErrorAs(t, err, &udErr)
				assert.Equal(t, "Z", udErr.DishID)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateOrder(ctx, tt.p, tt.addressID, tt.lines)
			tt.check(t, err)
			assert.Empty(t, f.orders.orders, "nothing must be persisted")
		})
	}
}

func TestCreateOrder_RepeatedDish(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.CreateOrder(context.Background(), alice, "addr-alice", []LineRequest{
		{DishID: "A", Quantity: 1},
		{DishID: "A", Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.True(t, decimal.RequireFromString("40.00").Equal(o.TotalPrice))
}

func TestCreateOrder_StorageErrors(t *testing.T) {
	t.Run("dish lookup", func(t *testing.T) {
		f := newFixture(t)
		f.dishes.getErr = errors.New("db down")
		_, err := f.svc.CreateOrder(context.Background(), alice, "addr-alice", []LineRequest{{DishID: "A", Quantity: 1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "get dishes")
	})

	t.Run("create", func(t *testing.T) {
		f := newFixture(t)
		f.orders.createErr = errors.New("db write failed")
		_, err := f.svc.CreateOrder(context.Background(), alice, "addr-alice", []LineRequest{{DishID: "A", Quantity: 1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "create order")
		assert.Empty(t, f.events.events)
	})
}

func TestTotalIsFrozenAtCreation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.place(t)

	_, err := f.dishes.UpdatePrice(ctx, "A", decimal.RequireFromString("99.00"))
	require.NoError(t, err)

	got, err := f.svc.GetOrder(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("25.50").Equal(got.TotalPrice))
}

func TestCancelOrder_Scenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.place(t)

	f.advance(10 * time.Minute)
	_, err := f.svc.CancelOrder(ctx, alice, o.ID)
	require.ErrorIs(t, err, ErrTooEarly)

	f.advance(21 * time.Minute)
	canceled, err := f.svc.CancelOrder(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)

	_, err = f.svc.CancelOrder(ctx, alice, o.ID)
	require.ErrorIs(t, err, ErrAlreadyCanceled)

	_, err = f.svc.CompleteOrder(ctx, employee, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelOrder_Matrix(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		age     time.Duration
		caller  *auth.Principal
		wantErr error
	}{
		{name: "pending just placed", status: StatusPending, age: 0, caller: alice, wantErr: ErrTooEarly},
		{name: "pending one second short", status: StatusPending, age: CancelWindow - time.Second, caller: alice, wantErr: ErrTooEarly},
		{name: "pending exactly at window", status: StatusPending, age: CancelWindow, caller: alice},
		{name: "pending after window", status: StatusPending, age: time.Hour, caller: alice},
		{name: "completed", status: StatusCompleted, age: time.Hour, caller: alice, wantErr: ErrInvalidTransition},
		{name: "completed and early", status: StatusCompleted, age: time.Minute, caller: alice, wantErr: ErrInvalidTransition},
		{name: "canceled", status: StatusCanceled, age: time.Hour, caller: alice, wantErr: ErrAlreadyCanceled},
		{name: "other user", status: StatusPending, age: time.Hour, caller: bob, wantErr: ErrNotOwner},
		{name: "staff is not owner", status: StatusPending, age: time.Hour, caller: employee, wantErr: ErrNotOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.orders["o1"] = &Order{
				ID:        "o1",
				UserID:    alice.UserID,
				Status:    tt.status,
				CreatedAt: start,
			}
			f.clock = start.Add(tt.age)

			o, err := f.svc.CancelOrder(context.Background(), tt.caller, "o1")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.status, f.orders.orders["o1"].Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusCanceled, o.Status)
		})
	}
}

func TestCancelOrder_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CancelOrder(context.Background(), alice, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.place(t)

	_, err := f.svc.CompleteOrder(ctx, alice, o.ID)
	require.ErrorIs(t, err, auth.ErrForbidden)

	done, err := f.svc.CompleteOrder(ctx, employee, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	_, err = f.svc.CompleteOrder(ctx, employee, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.CompleteOrder(ctx, employee, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	kinds := make([]event.Kind, 0, len(f.events.events))
	for _, ev := range f.events.events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []event.Kind{event.OrderCreated, event.OrderCompleted}, kinds)
}

func TestStaffCancelOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.place(t)

	_, err := f.svc.StaffCancelOrder(ctx, alice, o.ID)
	require.ErrorIs(t, err, auth.ErrForbidden)

	// No waiting window for staff.
	canceled, err := f.svc.StaffCancelOrder(ctx, employee, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)

	_, err = f.svc.StaffCancelOrder(ctx, employee, o.ID)
	require.ErrorIs(t, err, ErrAlreadyCanceled)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.place(t)

	_, err := f.svc.UpdateStatus(ctx, employee, o.ID, StatusPending)
	require.ErrorIs(t, err, ErrInvalidStatus)

	got, err := f.svc.UpdateStatus(ctx, employee, o.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	_, err = f.svc.UpdateStatus(ctx, employee, o.ID, StatusCanceled)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransition_ConcurrentRace(t *testing.T) {
	f := newFixture(t)
	o := f.place(t)
	f.advance(CancelWindow)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.svc.CancelOrder(context.Background(), alice, o.ID)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.svc.CompleteOrder(context.Background(), employee, o.ID)
	}()
	wg.Wait()

	var ok, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyCanceled):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, lost)
}

func TestTransition_LostCompareAndSet(t *testing.T) {
	f := newFixture(t)
	f.orders.orders["o1"] = &Order{ID: "o1", UserID: alice.UserID, Status: StatusPending, CreatedAt: start}
	svc := NewService(f.dishes, &memAddressRepo{}, &casLosingRepo{memOrderRepo: f.orders})

	_, err := svc.CompleteOrder(context.Background(), employee, "o1")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

// casLosingRepo reads the order as pending but always loses the update,
// as if another request changed it in between.
type casLosingRepo struct {
	*memOrderRepo
}

func (r *casLosingRepo) Transition(context.Context, string, Status) (bool, error) {
	return false, nil
}

func TestGetOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.place(t)

	_, err := f.svc.GetOrder(ctx, alice, o.ID)
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, bob, o.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.GetOrder(ctx, employee, o.ID)
	require.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, alice, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.place(t)
	f.advance(time.Minute)
	second := f.place(t)
	f.advance(time.Minute)
	_, err := f.svc.CreateOrder(ctx, bob, "addr-bob", []LineRequest{{DishID: "B", Quantity: 1}})
	require.NoError(t, err)

	_, err = f.svc.CompleteOrder(ctx, employee, first.ID)
	require.NoError(t, err)

	pending, err := f.svc.ListPending(ctx, alice)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)

	completed, err := f.svc.ListCompleted(ctx, alice)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	_, err = f.svc.ManagerListPending(ctx, alice)
	require.ErrorIs(t, err, auth.ErrForbidden)

	allPending, err := f.svc.ManagerListPending(ctx, employee)
	require.NoError(t, err)
	require.Len(t, allPending, 2)
	assert.True(t, allPending[0].CreatedAt.After(allPending[1].CreatedAt), "newest first")

	allCompleted, err := f.svc.ManagerListCompleted(ctx, employee)
	require.NoError(t, err)
	assert.Len(t, allCompleted, 1)

	viaList, err := f.svc.List(ctx, employee, StatusPending)
	require.NoError(t, err)
	assert.Len(t, viaList, 2)

	own, err := f.svc.List(ctx, bob, StatusPending)
	require.NoError(t, err)
	assert.Len(t, own, 1)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending", "completed", "canceled"} {
		st, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), st)
	}
	_, err := ParseStatus("cancelled")
	require.ErrorIs(t, err, ErrInvalidStatus)
}
