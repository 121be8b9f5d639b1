package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func mustProduct(t *testing.T, name string, price float64, quantity int) *Product {
	t.Helper()
	p, err := NewProduct(name, price, quantity)
	if err != nil {
		t.Fatalf("NewProduct(%q) error = %v", name, err)
	}
	return p
}

func TestNewProduct(t *testing.T) {
	p := mustProduct(t, "MacBook Air M2", 10, 100)

	if p.Name() != "MacBook Air M2" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.Price() != 10 {
		t.Errorf("Price() = %v, want 10", p.Price())
	}
	if p.Quantity() != 100 {
		t.Errorf("Quantity() = %v, want 100", p.Quantity())
	}
	if !p.IsActive() {
		t.Error("new product should be active")
	}
	if p.Kind() != ProductKindStandard {
		t.Errorf("Kind() = %v, want standard", p.Kind())
	}
}

func TestNewProduct_Validation(t *testing.T) {
	tests := []struct {
		name     string
		pName    string
		price    float64
		quantity int
		wantErr  error
	}{
		{"empty name", "", 10, 1, ErrEmptyName},
		{"blank name", "   ", 10, 1, ErrEmptyName},
		{"negative price", "X", -1, 1, ErrNegativePrice},
		{"NaN price", "X", math.NaN(), 1, ErrInvalidPrice},
		{"infinite price", "X", math.Inf(1), 1, ErrInvalidPrice},
		{"negative quantity", "X", 10, -1, ErrNegativeQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProduct(tt.pName, tt.price, tt.quantity)
			if p != nil {
				t.Errorf("NewProduct() returned product on invalid input")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewProduct() error = %v, want %v", err, tt.wantErr)
			}
			if !IsValidation(err) {
				t.Errorf("NewProduct() error kind = %v, want validation", KindOf(err))
			}
		})
	}

	if _, err := NewProduct("Free sample", 0, 0); err != nil {
		t.Errorf("zero price and quantity should be valid, got %v", err)
	}
}

func TestProduct_Buy(t *testing.T) {
	tests := []struct {
		name      string
		stock     int
		buy       int
		wantErr   error
		wantStock int
	}{
		{"partial stock", 100, 80, nil, 20},
		{"whole stock", 100, 100, nil, 0},
		{"exceeds stock", 100, 180, ErrInsufficientStock, 100},
		{"zero quantity", 100, 0, ErrNonPositiveQuantity, 100},
		{"negative quantity", 100, -3, ErrNonPositiveQuantity, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustProduct(t, "MacBook Air M2", 10, tt.stock)
			total, err := p.Buy(tt.buy)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Buy(%d) error = %v, want %v", tt.buy, err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if !IsPurchase(err) {
					t.Errorf("Buy(%d) error kind = %v, want purchase", tt.buy, KindOf(err))
				}
				if total != 0 {
					t.Errorf("Buy(%d) total = %v on error, want 0", tt.buy, total)
				}
			} else if total != float64(tt.buy)*10 {
				t.Errorf("Buy(%d) total = %v, want %v", tt.buy, total, float64(tt.buy)*10)
			}
			if p.Stock() != tt.wantStock {
				t.Errorf("Stock() = %d, want %d", p.Stock(), tt.wantStock)
			}
		})
	}
}

func TestProduct_AutoDeactivate(t *testing.T) {
	p := mustProduct(t, "MacBook Air M2", 10, 1)
	if _, err := p.Buy(1); err != nil {
		t.Fatalf("Buy(1) error = %v", err)
	}
	if p.IsActive() {
		t.Error("product should be inactive after stock reaches zero")
	}

	// 手动上架不受库存影响
	p.Activate()
	if !p.IsActive() {
		t.Error("Activate() should set product active regardless of stock")
	}
	p.Deactivate()
	p.Deactivate()
	if p.IsActive() {
		t.Error("Deactivate() should be idempotent")
	}
}

func TestProduct_SetQuantity(t *testing.T) {
	p := mustProduct(t, "Google Pixel 7", 500, 250)

	if err := p.SetQuantity(-1); !errors.Is(err, ErrNegativeQuantity) || !IsValidation(err) {
		t.Errorf("SetQuantity(-1) error = %v, want validation ErrNegativeQuantity", err)
	}
	if p.Stock() != 250 {
		t.Errorf("failed SetQuantity must not change stock, got %d", p.Stock())
	}

	if err := p.SetQuantity(10); err != nil {
		t.Fatalf("SetQuantity(10) error = %v", err)
	}
	if p.Stock() != 10 || !p.IsActive() {
		t.Errorf("after SetQuantity(10): stock=%d active=%v", p.Stock(), p.IsActive())
	}

	if err := p.SetQuantity(0); err != nil {
		t.Fatalf("SetQuantity(0) error = %v", err)
	}
	if p.IsActive() {
		t.Error("SetQuantity(0) should deactivate product")
	}

	// 补货不会自动上架
	if err := p.SetQuantity(5); err != nil {
		t.Fatalf("SetQuantity(5) error = %v", err)
	}
	if p.IsActive() {
		t.Error("restocking should not reactivate product")
	}
}

func TestNonStockedProduct(t *testing.T) {
	p, err := NewNonStockedProduct("Windows License", 125)
	if err != nil {
		t.Fatalf("NewNonStockedProduct() error = %v", err)
	}

	if p.Quantity() != 0 {
		t.Errorf("Quantity() = %v, want 0", p.Quantity())
	}

	err = p.SetQuantity(10)
	if !errors.Is(err, ErrQuantityImmutable) || !IsImmutable(err) {
		t.Errorf("SetQuantity() error = %v, want immutable ErrQuantityImmutable", err)
	}
	if IsValidation(err) {
		t.Error("immutability error must be distinguishable from validation error")
	}

	total, err := p.Buy(1000)
	if err != nil {
		t.Fatalf("Buy(1000) error = %v", err)
	}
	if total != 125000 {
		t.Errorf("Buy(1000) total = %v, want 125000", total)
	}
	if p.Quantity() != 0 {
		t.Errorf("Quantity() after buy = %v, want 0", p.Quantity())
	}
	if !p.IsActive() {
		t.Error("non-stocked product must never be deactivated by a purchase")
	}

	if _, err := p.Buy(0); !errors.Is(err, ErrNonPositiveQuantity) {
		t.Errorf("Buy(0) error = %v, want ErrNonPositiveQuantity", err)
	}
}

func TestLimitedProduct(t *testing.T) {
	p, err := NewLimitedProduct("Shipping", 10, 250, 1)
	if err != nil {
		t.Fatalf("NewLimitedProduct() error = %v", err)
	}

	total, err := p.Buy(1)
	if err != nil {
		t.Fatalf("Buy(1) error = %v", err)
	}
	if total != 10 {
		t.Errorf("Buy(1) total = %v, want 10", total)
	}
	if p.Quantity() != 249 {
		t.Errorf("Quantity() = %v, want 249", p.Quantity())
	}

	_, err = p.Buy(2)
	if !errors.Is(err, ErrLimitExceeded) || !IsPurchase(err) {
		t.Errorf("Buy(2) error = %v, want purchase ErrLimitExceeded", err)
	}
	if p.Quantity() != 249 {
		t.Errorf("failed Buy must not change stock, got %v", p.Quantity())
	}
}

func TestLimitedProduct_StockCheckPrecedesLimit(t *testing.T) {
	p, err := NewLimitedProduct("Shipping", 10, 1, 1)
	if err != nil {
		t.Fatalf("NewLimitedProduct() error = %v", err)
	}

	// 库存不足与超过限购同时成立时，报告库存不足
	_, err = p.Buy(2)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("Buy(2) error = %v, want ErrInsufficientStock", err)
	}
	if errors.Is(err, ErrLimitExceeded) {
		t.Error("limit error must not be reported when stock is insufficient")
	}
}

func TestLimitedProduct_Validation(t *testing.T) {
	for _, max := range []int{0, -1} {
		if _, err := NewLimitedProduct("Shipping", 10, 250, max); !errors.Is(err, ErrInvalidMaximum) {
			t.Errorf("NewLimitedProduct(maximum=%d) error = %v, want ErrInvalidMaximum", max, err)
		}
	}
}

func TestProduct_BuyWithPromotion(t *testing.T) {
	p := mustProduct(t, "MacBook Air M2", 1450, 100)
	promo, err := NewSecondHalfPrice("Second Half price!")
	if err != nil {
		t.Fatalf("NewSecondHalfPrice() error = %v", err)
	}
	p.SetPromotion(promo)

	total, err := p.Buy(2)
	if err != nil {
		t.Fatalf("Buy(2) error = %v", err)
	}
	if total != 2175 {
		t.Errorf("Buy(2) total = %v, want 2175", total)
	}

	p.SetPromotion(nil)
	total, err = p.Buy(2)
	if err != nil {
		t.Fatalf("Buy(2) error = %v", err)
	}
	if total != 2900 {
		t.Errorf("Buy(2) without promotion total = %v, want 2900", total)
	}
}

func TestProduct_SharedPromotion(t *testing.T) {
	promo, err := NewThirdOneFree("Third One Free!")
	if err != nil {
		t.Fatalf("NewThirdOneFree() error = %v", err)
	}
	a := mustProduct(t, "A", 10, 10)
	b := mustProduct(t, "B", 20, 10)
	a.SetPromotion(promo)
	b.SetPromotion(promo)

	ta, _ := a.Buy(3)
	tb, _ := b.Buy(3)
	if ta != 20 || tb != 40 {
		t.Errorf("shared promotion totals = %v, %v, want 20, 40", ta, tb)
	}
}

func TestProduct_String(t *testing.T) {
	p := mustProduct(t, "MacBook Air M2", 1450, 100)
	promo, _ := NewSecondHalfPrice("Second Half price!")
	p.SetPromotion(promo)

	got := p.String()
	for _, want := range []string{"MacBook Air M2", "1450", "100", "Second Half price!"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}

	limited, _ := NewLimitedProduct("Shipping", 10, 250, 1)
	if got := limited.String(); !strings.Contains(got, "Limited to 1") || !strings.Contains(got, "Promotion: None") {
		t.Errorf("limited String() = %q", got)
	}

	license, _ := NewNonStockedProduct("Windows License", 125)
	if got := license.String(); !strings.Contains(got, "Non-Stocked") {
		t.Errorf("non-stocked String() = %q", got)
	}
}
