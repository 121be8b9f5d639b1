package domain

import (
	"errors"
	"testing"
)

func newTestStore(t *testing.T) (*Store, []*Product) {
	t.Helper()
	products := []*Product{
		mustProduct(t, "MacBook Air M2", 1450, 100),
		mustProduct(t, "Bose QuietComfort Earbuds", 250, 500),
		mustProduct(t, "Google Pixel 7", 500, 250),
	}
	return NewStore(products...), products
}

func TestStore_TotalQuantity(t *testing.T) {
	store, products := newTestStore(t)

	if got := store.TotalQuantity(); got != 850 {
		t.Errorf("TotalQuantity() = %d, want 850", got)
	}

	if _, err := products[0].Buy(100); err != nil {
		t.Fatalf("Buy(100) error = %v", err)
	}
	if got := store.TotalQuantity(); got != 750 {
		t.Errorf("TotalQuantity() after sellout = %d, want 750", got)
	}

	active := store.ActiveProducts()
	if len(active) != 2 {
		t.Fatalf("ActiveProducts() len = %d, want 2", len(active))
	}
	if active[0] != products[1] || active[1] != products[2] {
		t.Error("ActiveProducts() should preserve insertion order and exclude sold-out product")
	}
}

func TestStore_TotalQuantityWithNonStocked(t *testing.T) {
	store, _ := newTestStore(t)
	license, _ := NewNonStockedProduct("Windows License", 125)
	if err := store.AddProduct(license); err != nil {
		t.Fatalf("AddProduct() error = %v", err)
	}

	if got := store.TotalQuantity(); got != 850 {
		t.Errorf("TotalQuantity() = %d, want 850", got)
	}
}

func TestStore_AddRemove(t *testing.T) {
	store, products := newTestStore(t)

	if err := store.AddProduct(nil); !errors.Is(err, ErrNilProduct) || !IsValidation(err) {
		t.Errorf("AddProduct(nil) error = %v, want validation ErrNilProduct", err)
	}

	if !store.Contains(products[1]) {
		t.Error("Contains() should find held product")
	}

	// 同名的不同实例也会被一并移除
	twin := mustProduct(t, "Google Pixel 7", 450, 5)
	if err := store.AddProduct(twin); err != nil {
		t.Fatalf("AddProduct() error = %v", err)
	}
	lookalike := mustProduct(t, "Google Pixel 7", 1, 1)
	if removed := store.RemoveProduct(lookalike); removed != 2 {
		t.Errorf("RemoveProduct() removed %d, want 2", removed)
	}
	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	if store.Contains(products[2]) || store.Contains(twin) {
		t.Error("same-named products should all be removed")
	}

	if removed := store.RemoveProduct(nil); removed != 0 {
		t.Errorf("RemoveProduct(nil) removed %d, want 0", removed)
	}
}

func TestStore_ProductAt(t *testing.T) {
	store, products := newTestStore(t)

	p, ok := store.ProductAt(1)
	if !ok || p != products[0] {
		t.Error("ProductAt(1) should return the first product")
	}
	for _, idx := range []int{0, 4, -1} {
		if _, ok := store.ProductAt(idx); ok {
			t.Errorf("ProductAt(%d) should be out of range", idx)
		}
	}
}

func TestStore_Merge(t *testing.T) {
	store, _ := newTestStore(t)
	other := NewStore(mustProduct(t, "Extra", 1, 1))

	merged := store.Merge(other)
	if len(merged) != 4 {
		t.Errorf("Merge() len = %d, want 4", len(merged))
	}
	if store.Len() != 3 || other.Len() != 1 {
		t.Error("Merge() must not modify either store")
	}
}

func TestStore_Order(t *testing.T) {
	store, products := newTestStore(t)
	promo, _ := NewSecondHalfPrice("Second Half price!")
	products[0].SetPromotion(promo)

	total, err := store.Order([]OrderLine{
		{Product: products[0], Quantity: 2},
		{Product: products[1], Quantity: 3},
	})
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if want := 2175.0 + 750.0; total != want {
		t.Errorf("Order() total = %v, want %v", total, want)
	}
	if products[0].Stock() != 98 || products[1].Stock() != 497 {
		t.Errorf("stocks after order = %d, %d", products[0].Stock(), products[1].Stock())
	}

	if total, err := store.Order(nil); err != nil || total != 0 {
		t.Errorf("empty Order() = %v, %v, want 0, nil", total, err)
	}
}

func TestStore_OrderIsNotTransactional(t *testing.T) {
	store, products := newTestStore(t)
	productA, productB := products[0], products[1]

	total, err := store.Order([]OrderLine{
		{Product: productA, Quantity: 5},
		{Product: productB, Quantity: 1000},
		{Product: products[2], Quantity: 1},
	})
	if err == nil {
		t.Fatal("Order() should fail on insufficient stock")
	}

	var orderErr *OrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("Order() error type = %T, want *OrderError", err)
	}
	if orderErr.Line != 1 || orderErr.Product != productB.Name() {
		t.Errorf("OrderError line=%d product=%q", orderErr.Line, orderErr.Product)
	}
	if !errors.Is(err, ErrInsufficientStock) || !IsPurchase(err) {
		t.Errorf("Order() error = %v, want purchase ErrInsufficientStock", err)
	}

	// 第一行已扣减库存并计价，不回滚
	if productA.Stock() != 95 {
		t.Errorf("productA stock = %d, want 95", productA.Stock())
	}
	if total != 5*1450 || orderErr.Charged != 5*1450 {
		t.Errorf("charged = %v / %v, want %v", total, orderErr.Charged, 5*1450)
	}
	if productB.Stock() != 500 {
		t.Errorf("productB stock = %d, want 500", productB.Stock())
	}
	// 失败行之后的行不执行
	if products[2].Stock() != 250 {
		t.Errorf("line after failure must not run, stock = %d", products[2].Stock())
	}
}

func TestStore_OrderNilProduct(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Order([]OrderLine{{Product: nil, Quantity: 1}})
	if !errors.Is(err, ErrNilProduct) || !IsValidation(err) {
		t.Errorf("Order(nil product) error = %v, want validation ErrNilProduct", err)
	}
}

func TestStore_Checkout(t *testing.T) {
	store, products := newTestStore(t)

	charges, err := store.Checkout([]OrderLine{
		{Product: products[0], Quantity: 1},
		{Product: products[2], Quantity: 2},
		{Product: products[1], Quantity: 501},
	})
	if err == nil {
		t.Fatal("Checkout() should fail on third line")
	}
	if len(charges) != 2 || charges[0] != 1450 || charges[1] != 1000 {
		t.Errorf("Checkout() charges = %v, want [1450 1000]", charges)
	}

	var orderErr *OrderError
	if !errors.As(err, &orderErr) || orderErr.Line != 2 || orderErr.Charged != 2450 {
		t.Errorf("Checkout() error = %#v", err)
	}
}
