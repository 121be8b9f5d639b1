package domain

import (
	"fmt"
)

// ProductView 表示商品对外展示的只读快照
type ProductView struct {
	Index     int         `json:"index"` // 展示序号，从1开始
	Name      string      `json:"name"`
	Price     float64     `json:"price"`
	Quantity  int         `json:"quantity"`
	Kind      ProductKind `json:"kind"`
	Active    bool        `json:"active"`
	Maximum   int         `json:"maximum,omitempty"`
	Promotion string      `json:"promotion,omitempty"`
	Display   string      `json:"display"`
}

// NewProductView 生成商品快照
func NewProductView(index int, p *Product) *ProductView {
	view := &ProductView{
		Index:    index,
		Name:     p.Name(),
		Price:    p.Price(),
		Quantity: p.Stock(),
		Kind:     p.Kind(),
		Active:   p.IsActive(),
		Maximum:  p.Maximum(),
		Display:  p.String(),
	}
	if promo := p.Promotion(); promo != nil {
		view.Promotion = promo.Name()
	}
	return view
}

// PromotionView 表示促销的只读快照
type PromotionView struct {
	Key     string        `json:"key"`
	Name    string        `json:"name"`
	Kind    PromotionKind `json:"kind"`
	Percent float64       `json:"percent,omitempty"`
}

// NewPromotionView 生成促销快照
func NewPromotionView(key string, promo Promotion) *PromotionView {
	view := &PromotionView{Key: key, Name: promo.Name(), Kind: promo.Kind()}
	if pd, ok := promo.(*PercentDiscount); ok {
		view.Percent = pd.Percent()
	}
	return view
}

// CreateProductRequest 表示创建商品请求
type CreateProductRequest struct {
	Name      string      `json:"name" binding:"required,min=1,max=255"`
	Price     float64     `json:"price" binding:"min=0"`
	Quantity  int         `json:"quantity" binding:"min=0"`
	Kind      ProductKind `json:"kind"`      // 为空时按普通商品处理
	Maximum   int         `json:"maximum"`   // 仅限购商品使用
	Promotion string      `json:"promotion"` // 促销键，可为空
}

// SetQuantityRequest 表示库存调整请求
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// SetPromotionRequest 表示设置促销请求，Promotion 为空表示取消促销
type SetPromotionRequest struct {
	Promotion string `json:"promotion"`
}

// BuildProduct 按请求构造对应变体的商品（不含促销）
func (r *CreateProductRequest) BuildProduct() (*Product, error) {
	switch r.Kind {
	case "", ProductKindStandard:
		return NewProduct(r.Name, r.Price, r.Quantity)
	case ProductKindNonStocked:
		return NewNonStockedProduct(r.Name, r.Price)
	case ProductKindLimited:
		return NewLimitedProduct(r.Name, r.Price, r.Quantity, r.Maximum)
	default:
		return nil, validationError("new product", fmt.Errorf("%w: %q", ErrUnknownProductKind, r.Kind))
	}
}
