package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/domain"
	"github.com/MorseWayne/catalog_shop/internal/resp"
	"github.com/MorseWayne/catalog_shop/internal/service"
)

// MockStoreService for testing
type MockStoreService struct {
	listProductsFunc   func(ctx context.Context, activeOnly bool) ([]*domain.ProductView, error)
	getProductFunc     func(ctx context.Context, index int) (*domain.ProductView, error)
	placeOrderFunc     func(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReceipt, error)
	addProductFunc     func(ctx context.Context, req *domain.CreateProductRequest) (*domain.ProductView, error)
	removeProductFunc  func(ctx context.Context, name string) (int, error)
	setQuantityFunc    func(ctx context.Context, index, quantity int) (*domain.ProductView, error)
	setActiveFunc      func(ctx context.Context, index int, active bool) (*domain.ProductView, error)
	setPromotionFunc   func(ctx context.Context, index int, key string) (*domain.ProductView, error)
	listPromotionsFunc func(ctx context.Context) ([]*domain.PromotionView, error)
}

func (m *MockStoreService) ListProducts(ctx context.Context, activeOnly bool) ([]*domain.ProductView, error) {
	if m.listProductsFunc != nil {
		return m.listProductsFunc(ctx, activeOnly)
	}
	return []*domain.ProductView{{Index: 1, Name: "MacBook Air M2", Price: 1450, Quantity: 100, Active: true}}, nil
}

func (m *MockStoreService) GetProduct(ctx context.Context, index int) (*domain.ProductView, error) {
	if m.getProductFunc != nil {
		return m.getProductFunc(ctx, index)
	}
	return &domain.ProductView{Index: index, Name: "MacBook Air M2"}, nil
}

func (m *MockStoreService) TotalQuantity(ctx context.Context) (int, error) {
	return 1100, nil
}

func (m *MockStoreService) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReceipt, error) {
	if m.placeOrderFunc != nil {
		return m.placeOrderFunc(ctx, req)
	}
	return &domain.OrderReceipt{OrderID: "o-1", Status: domain.OrderStatusCompleted, Total: 2175}, nil
}

func (m *MockStoreService) AddProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.ProductView, error) {
	if m.addProductFunc != nil {
		return m.addProductFunc(ctx, req)
	}
	return &domain.ProductView{Index: 6, Name: req.Name}, nil
}

func (m *MockStoreService) RemoveProduct(ctx context.Context, name string) (int, error) {
	if m.removeProductFunc != nil {
		return m.removeProductFunc(ctx, name)
	}
	return 1, nil
}

func (m *MockStoreService) SetQuantity(ctx context.Context, index, quantity int) (*domain.ProductView, error) {
	if m.setQuantityFunc != nil {
		return m.setQuantityFunc(ctx, index, quantity)
	}
	return &domain.ProductView{Index: index, Quantity: quantity}, nil
}

func (m *MockStoreService) SetActive(ctx context.Context, index int, active bool) (*domain.ProductView, error) {
	if m.setActiveFunc != nil {
		return m.setActiveFunc(ctx, index, active)
	}
	return &domain.ProductView{Index: index, Active: active}, nil
}

func (m *MockStoreService) SetPromotion(ctx context.Context, index int, key string) (*domain.ProductView, error) {
	if m.setPromotionFunc != nil {
		return m.setPromotionFunc(ctx, index, key)
	}
	return &domain.ProductView{Index: index, Promotion: key}, nil
}

func (m *MockStoreService) ListPromotions(ctx context.Context) ([]*domain.PromotionView, error) {
	if m.listPromotionsFunc != nil {
		return m.listPromotionsFunc(ctx)
	}
	return []*domain.PromotionView{{Key: "thirty_percent", Name: "30% off!", Kind: domain.PromotionPercentDiscount, Percent: 30}}, nil
}

func newTestRouter(svc service.StoreService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewStoreHandler(svc, zap.NewNop())
	r := gin.New()
	r.GET("/products", h.ListProducts)
	r.GET("/products/:index", h.GetProduct)
	r.GET("/store/quantity", h.TotalQuantity)
	r.POST("/orders", h.PlaceOrder)
	r.POST("/admin/products", h.CreateProduct)
	r.DELETE("/admin/products/by-name/:name", h.RemoveProduct)
	r.PUT("/admin/products/:index/quantity", h.SetQuantity)
	r.POST("/admin/products/:index/activate", h.Activate)
	r.POST("/admin/products/:index/deactivate", h.Deactivate)
	r.PUT("/admin/products/:index/promotion", h.SetPromotion)
	r.GET("/admin/promotions", h.ListPromotions)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) resp.Response[T] {
	t.Helper()
	var body resp.Response[T]
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestStoreHandler_ListProducts(t *testing.T) {
	var gotActive bool
	svc := &MockStoreService{
		listProductsFunc: func(ctx context.Context, activeOnly bool) ([]*domain.ProductView, error) {
			gotActive = activeOnly
			return []*domain.ProductView{{Index: 1}, {Index: 3}}, nil
		},
	}
	r := newTestRouter(svc)

	w := doJSON(r, http.MethodGet, "/products?active=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode[[]*domain.ProductView](t, w)
	if !gotActive || body.Data == nil || len(*body.Data) != 2 {
		t.Errorf("activeOnly = %v, body = %+v", gotActive, body)
	}

	if w := doJSON(r, http.MethodGet, "/products?active=maybe", ""); w.Code != http.StatusBadRequest {
		t.Errorf("invalid active flag status = %d, want 400", w.Code)
	}
}

func TestStoreHandler_GetProduct(t *testing.T) {
	svc := &MockStoreService{
		getProductFunc: func(ctx context.Context, index int) (*domain.ProductView, error) {
			if index > 5 {
				return nil, fmt.Errorf("%w: %d", service.ErrProductNotFound, index)
			}
			return &domain.ProductView{Index: index}, nil
		},
	}
	r := newTestRouter(svc)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/products/2", http.StatusOK},
		{"/products/9", http.StatusNotFound},
		{"/products/0", http.StatusBadRequest},
		{"/products/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if w := doJSON(r, http.MethodGet, tt.path, ""); w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestStoreHandler_TotalQuantity(t *testing.T) {
	w := doJSON(newTestRouter(&MockStoreService{}), http.MethodGet, "/store/quantity", "")
	body := decode[TotalQuantityResponse](t, w)
	if w.Code != http.StatusOK || body.Data.TotalQuantity != 1100 {
		t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestStoreHandler_PlaceOrder(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		var got *domain.OrderRequest
		svc := &MockStoreService{
			placeOrderFunc: func(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReceipt, error) {
				got = req
				return &domain.OrderReceipt{OrderID: "o-1", Status: domain.OrderStatusCompleted, Total: 2350}, nil
			},
		}
		w := doJSON(newTestRouter(svc), http.MethodPost, "/orders",
			`{"items":[{"product_index":1,"quantity":2},{"product_index":4,"quantity":2}]}`)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", w.Code)
		}
		if len(got.Items) != 2 || got.Items[1].ProductIndex != 4 {
			t.Errorf("request = %+v", got)
		}
		body := decode[domain.OrderReceipt](t, w)
		if body.Code != resp.CodeOK || body.Data.Total != 2350 {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("partial", func(t *testing.T) {
		failed := 1
		svc := &MockStoreService{
			placeOrderFunc: func(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReceipt, error) {
				_, err := mustLimited(t).Buy(2)
				return &domain.OrderReceipt{
					OrderID: "o-2", Status: domain.OrderStatusPartial, Total: 1450, FailedLine: &failed,
				}, &domain.OrderError{Line: 1, Product: "Shipping", Charged: 1450, Err: err}
			},
		}
		w := doJSON(newTestRouter(svc), http.MethodPost, "/orders",
			`{"items":[{"product_index":1,"quantity":1},{"product_index":5,"quantity":2}]}`)

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422", w.Code)
		}
		body := decode[domain.OrderReceipt](t, w)
		if body.Code != resp.CodeOrderRejected || body.Data == nil || body.Data.Total != 1450 {
			t.Errorf("partial receipt should be returned, body = %s", w.Body.String())
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		svc := &MockStoreService{
			placeOrderFunc: func(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReceipt, error) {
				return nil, fmt.Errorf("%w: 9", service.ErrProductNotFound)
			},
		}
		w := doJSON(newTestRouter(svc), http.MethodPost, "/orders", `{"items":[{"product_index":9,"quantity":1}]}`)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("empty order", func(t *testing.T) {
		called := false
		svc := &MockStoreService{
			placeOrderFunc: func(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReceipt, error) {
				called = true
				return &domain.OrderReceipt{Status: domain.OrderStatusCompleted}, nil
			},
		}
		for _, body := range []string{`{"items":[]}`, `{}`} {
			w := doJSON(newTestRouter(svc), http.MethodPost, "/orders", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d, want 400", body, w.Code)
			}
		}
		if called {
			t.Error("empty order must not reach the service")
		}
	})

	t.Run("non-integer quantity", func(t *testing.T) {
		w := doJSON(newTestRouter(&MockStoreService{}), http.MethodPost, "/orders",
			`{"items":[{"product_index":1,"quantity":1.5}]}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("internal error hidden", func(t *testing.T) {
		svc := &MockStoreService{
			placeOrderFunc: func(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReceipt, error) {
				return nil, errors.New("secret detail")
			},
		}
		w := doJSON(newTestRouter(svc), http.MethodPost, "/orders", `{"items":[]}`)
		body := decode[struct{}](t, w)
		if w.Code != http.StatusInternalServerError || body.Message != "internal server error" {
			t.Errorf("status = %d, message = %q", w.Code, body.Message)
		}
	})
}

func mustLimited(t *testing.T) *domain.Product {
	t.Helper()
	p, err := domain.NewLimitedProduct("Shipping", 10, 250, 1)
	if err != nil {
		t.Fatalf("NewLimitedProduct: %v", err)
	}
	return p
}

func TestStoreHandler_Admin(t *testing.T) {
	immutable, err := domain.NewNonStockedProduct("Windows License", 125)
	if err != nil {
		t.Fatalf("NewNonStockedProduct: %v", err)
	}
	svc := &MockStoreService{
		setQuantityFunc: func(ctx context.Context, index, quantity int) (*domain.ProductView, error) {
			if index == 4 {
				return nil, immutable.SetQuantity(quantity)
			}
			if quantity < 0 {
				_, err := domain.NewProduct("x", 1, quantity)
				return nil, err
			}
			return &domain.ProductView{Index: index, Quantity: quantity}, nil
		},
		setPromotionFunc: func(ctx context.Context, index int, key string) (*domain.ProductView, error) {
			if key == "bogus" {
				return nil, fmt.Errorf("%w: %q", service.ErrPromotionNotFound, key)
			}
			return &domain.ProductView{Index: index, Promotion: key}, nil
		},
		removeProductFunc: func(ctx context.Context, name string) (int, error) {
			if name == "Google Pixel 7" {
				return 2, nil
			}
			return 0, fmt.Errorf("%w: %q", service.ErrProductNotFound, name)
		},
	}
	r := newTestRouter(svc)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"create", http.MethodPost, "/admin/products", `{"name":"Gift Card","price":50,"kind":"non_stocked"}`, http.StatusCreated},
		{"create without name", http.MethodPost, "/admin/products", `{"price":50}`, http.StatusBadRequest},
		{"remove", http.MethodDelete, "/admin/products/by-name/Google%20Pixel%207", "", http.StatusOK},
		{"remove unknown", http.MethodDelete, "/admin/products/by-name/Nope", "", http.StatusNotFound},
		{"set quantity", http.MethodPut, "/admin/products/3/quantity", `{"quantity":0}`, http.StatusOK},
		{"set quantity missing", http.MethodPut, "/admin/products/3/quantity", `{}`, http.StatusBadRequest},
		{"set quantity negative", http.MethodPut, "/admin/products/3/quantity", `{"quantity":-1}`, http.StatusBadRequest},
		{"set quantity non-stocked", http.MethodPut, "/admin/products/4/quantity", `{"quantity":5}`, http.StatusConflict},
		{"activate", http.MethodPost, "/admin/products/3/activate", "", http.StatusOK},
		{"deactivate", http.MethodPost, "/admin/products/3/deactivate", "", http.StatusOK},
		{"set promotion", http.MethodPut, "/admin/products/3/promotion", `{"promotion":"thirty_percent"}`, http.StatusOK},
		{"set unknown promotion", http.MethodPut, "/admin/products/3/promotion", `{"promotion":"bogus"}`, http.StatusNotFound},
		{"list promotions", http.MethodGet, "/admin/promotions", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	_, validation := domain.NewProduct("", 1, 1)
	_, purchase := mustLimited(t).Buy(0)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"validation", validation, http.StatusBadRequest, resp.CodeInvalidParam},
		{"purchase", purchase, http.StatusUnprocessableEntity, resp.CodeOrderRejected},
		{"inactive", service.ErrProductInactive, http.StatusUnprocessableEntity, resp.CodeOrderRejected},
		{"not found", service.ErrProductNotFound, http.StatusNotFound, resp.CodeNotFound},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, resp.CodeUnauthorized},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, resp.CodeTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, resp.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("errorStatus() = %d, %d; want %d, %d", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}
