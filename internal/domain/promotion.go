package domain

import (
	"fmt"
	"strings"
)

// PromotionKind 定义促销类型
type PromotionKind string

const (
	PromotionSecondHalfPrice PromotionKind = "second_half_price" // 第二件半价
	PromotionThirdOneFree    PromotionKind = "third_one_free"    // 买二送一
	PromotionPercentDiscount PromotionKind = "percent_discount"  // 百分比折扣
)

// Promotion 定义促销定价策略
// Apply 是 (单价, 数量) -> 折后总价 的纯函数，没有副作用。
type Promotion interface {
	Name() string
	Kind() PromotionKind
	Apply(unitPrice float64, quantity int) float64
}

// NewPromotion 按类型创建促销，percent 仅对百分比折扣生效
func NewPromotion(kind PromotionKind, name string, percent float64) (Promotion, error) {
	switch kind {
	case PromotionSecondHalfPrice:
		return NewSecondHalfPrice(name)
	case PromotionThirdOneFree:
		return NewThirdOneFree(name)
	case PromotionPercentDiscount:
		return NewPercentDiscount(name, percent)
	default:
		return nil, validationError("new promotion", fmt.Errorf("%w: %q", ErrUnknownPromotion, kind))
	}
}

func checkPromotionName(name string) error {
	if strings.TrimSpace(name) == "" {
		return validationError("new promotion", ErrEmptyPromotionName)
	}
	return nil
}

// SecondHalfPrice 每两件中第二件半价
type SecondHalfPrice struct {
	name string
}

// NewSecondHalfPrice 创建第二件半价促销
func NewSecondHalfPrice(name string) (*SecondHalfPrice, error) {
	if err := checkPromotionName(name); err != nil {
		return nil, err
	}
	return &SecondHalfPrice{name: name}, nil
}

func (p *SecondHalfPrice) Name() string        { return p.name }
func (p *SecondHalfPrice) Kind() PromotionKind { return PromotionSecondHalfPrice }

// Apply 计算折后总价
func (p *SecondHalfPrice) Apply(unitPrice float64, quantity int) float64 {
	pairs := quantity / 2
	remainder := quantity % 2
	return unitPrice*float64(pairs)*1.5 + unitPrice*float64(remainder)
}

// ThirdOneFree 每三件中第三件免费
type ThirdOneFree struct {
	name string
}

// NewThirdOneFree 创建买二送一促销
func NewThirdOneFree(name string) (*ThirdOneFree, error) {
	if err := checkPromotionName(name); err != nil {
		return nil, err
	}
	return &ThirdOneFree{name: name}, nil
}

func (p *ThirdOneFree) Name() string        { return p.name }
func (p *ThirdOneFree) Kind() PromotionKind { return PromotionThirdOneFree }

// Apply 计算折后总价
func (p *ThirdOneFree) Apply(unitPrice float64, quantity int) float64 {
	triples := quantity / 3
	remainder := quantity % 3
	return unitPrice*float64(triples)*2 + unitPrice*float64(remainder)
}

// PercentDiscount 整单百分比折扣
type PercentDiscount struct {
	name    string
	percent float64
}

// NewPercentDiscount 创建百分比折扣促销，percent 取值 [0, 100]
func NewPercentDiscount(name string, percent float64) (*PercentDiscount, error) {
	if err := checkPromotionName(name); err != nil {
		return nil, err
	}
	if !(percent >= 0 && percent <= 100) {
		return nil, validationError("new promotion", ErrInvalidPercent)
	}
	return &PercentDiscount{name: name, percent: percent}, nil
}

func (p *PercentDiscount) Name() string        { return p.name }
func (p *PercentDiscount) Kind() PromotionKind { return PromotionPercentDiscount }

// Percent 返回折扣百分比
func (p *PercentDiscount) Percent() float64 { return p.percent }

// Apply 计算折后总价
func (p *PercentDiscount) Apply(unitPrice float64, quantity int) float64 {
	return unitPrice * float64(quantity) * (1 - p.percent/100)
}
