package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ProductKind 定义商品变体类型
type ProductKind string

const (
	ProductKindStandard   ProductKind = "standard"    // 普通库存商品
	ProductKindNonStocked ProductKind = "non_stocked" // 无库存商品（如软件授权），库存恒为0
	ProductKindLimited    ProductKind = "limited"     // 单次购买数量受限的商品（如运费）
)

// Product 表示商品领域模型
// 不变量：price >= 0，quantity >= 0；普通/限购商品库存归零时自动下架。
type Product struct {
	name      string
	price     float64
	quantity  int
	maximum   int
	kind      ProductKind
	active    bool
	promotion Promotion
}

// NewProduct 创建普通库存商品
func NewProduct(name string, price float64, quantity int) (*Product, error) {
	return newProduct(ProductKindStandard, name, price, quantity, 0)
}

// NewNonStockedProduct 创建无库存商品，库存固定为0
func NewNonStockedProduct(name string, price float64) (*Product, error) {
	return newProduct(ProductKindNonStocked, name, price, 0, 0)
}

// NewLimitedProduct 创建限购商品，maximum 为单次购买上限
func NewLimitedProduct(name string, price float64, quantity, maximum int) (*Product, error) {
	if maximum <= 0 {
		return nil, validationError("new product", ErrInvalidMaximum)
	}
	return newProduct(ProductKindLimited, name, price, quantity, maximum)
}

func newProduct(kind ProductKind, name string, price float64, quantity, maximum int) (*Product, error) {
	if strings.TrimSpace(name) == "" {
		return nil, validationError("new product", ErrEmptyName)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, validationError("new product", ErrInvalidPrice)
	}
	if price < 0 {
		return nil, validationError("new product", ErrNegativePrice)
	}
	if quantity < 0 {
		return nil, validationError("new product", ErrNegativeQuantity)
	}

	return &Product{
		name:     name,
		price:    price,
		quantity: quantity,
		maximum:  maximum,
		kind:     kind,
		active:   true,
	}, nil
}

// Name 返回商品名称
func (p *Product) Name() string { return p.name }

// Price 返回商品单价
func (p *Product) Price() float64 { return p.price }

// Kind 返回商品变体类型
func (p *Product) Kind() ProductKind { return p.kind }

// Maximum 返回单次购买上限，非限购商品返回0
func (p *Product) Maximum() int { return p.maximum }

// Stock 返回当前库存，无库存商品恒为0
func (p *Product) Stock() int {
	if p.kind == ProductKindNonStocked {
		return 0
	}
	return p.quantity
}

// Quantity 以浮点数返回当前库存
func (p *Product) Quantity() float64 {
	return float64(p.Stock())
}

// SetQuantity 管理员直接调整库存
// 库存设置为0时普通/限购商品自动下架；无库存商品不允许修改。
func (p *Product) SetQuantity(quantity int) error {
	if p.kind == ProductKindNonStocked {
		return immutableError("set quantity", ErrQuantityImmutable)
	}
	if quantity < 0 {
		return validationError("set quantity", ErrNegativeQuantity)
	}
	p.setStock(quantity)
	return nil
}

func (p *Product) setStock(quantity int) {
	p.quantity = quantity
	if p.quantity == 0 {
		p.Deactivate()
	}
}

// IsActive 判断商品是否上架
func (p *Product) IsActive() bool { return p.active }

// Activate 上架商品
func (p *Product) Activate() { p.active = true }

// Deactivate 下架商品
func (p *Product) Deactivate() { p.active = false }

// Promotion 返回当前促销，未设置时返回nil
func (p *Product) Promotion() Promotion { return p.promotion }

// SetPromotion 替换商品促销，传入nil表示取消促销
func (p *Product) SetPromotion(promotion Promotion) { p.promotion = promotion }

// Buy 购买指定数量并返回应付总价
// 校验顺序：数量必须为正 -> 库存充足 -> 不超过限购上限。
// 任一校验失败时库存不变。
func (p *Product) Buy(quantity int) (float64, error) {
	if quantity <= 0 {
		return 0, purchaseError("buy", ErrNonPositiveQuantity)
	}

	if p.kind != ProductKindNonStocked && quantity > p.quantity {
		return 0, purchaseError("buy", fmt.Errorf("%w: %s has %d left, %d requested",
			ErrInsufficientStock, p.name, p.quantity, quantity))
	}

	if p.kind == ProductKindLimited && quantity > p.maximum {
		return 0, purchaseError("buy", fmt.Errorf("%w: %s is limited to %d per order",
			ErrLimitExceeded, p.name, p.maximum))
	}

	if p.kind != ProductKindNonStocked {
		p.setStock(p.quantity - quantity)
	}

	return p.totalPrice(quantity), nil
}

func (p *Product) totalPrice(quantity int) float64 {
	if p.promotion != nil {
		return p.promotion.Apply(p.price, quantity)
	}
	return p.price * float64(quantity)
}

// String 返回商品展示文本，包含名称、价格、库存和促销
func (p *Product) String() string {
	promotion := "None"
	if p.promotion != nil {
		promotion = p.promotion.Name()
	}
	price := strconv.FormatFloat(p.price, 'f', -1, 64)

	switch p.kind {
	case ProductKindNonStocked:
		return fmt.Sprintf("%s (Non-Stocked), Price: $%s, Quantity: Unlimited, Promotion: %s",
			p.name, price, promotion)
	case ProductKindLimited:
		return fmt.Sprintf("%s, Price: $%s, Quantity: %d, Limited to %d per order!, Promotion: %s",
			p.name, price, p.quantity, p.maximum, promotion)
	default:
		return fmt.Sprintf("%s, Price: $%s, Quantity: %d, Promotion: %s",
			p.name, price, p.quantity, promotion)
	}
}
