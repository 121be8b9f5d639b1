package domain

import (
	"fmt"
)

// OrderLine 表示订单中的一行：商品与购买数量
type OrderLine struct {
	Product  *Product
	Quantity int
}

// OrderError 表示订单在某一行失败
// 订单逐行执行且不回滚：失败行之前的库存已扣减，金额已计入 Charged。
type OrderError struct {
	Line    int     // 失败行序号，从0开始
	Product string  // 失败行商品名称
	Charged float64 // 失败前已成功行的累计金额
	Err     error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order line %d (%s): %v", e.Line+1, e.Product, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// Store 表示门店，持有有序的商品列表
type Store struct {
	products []*Product
}

// NewStore 创建门店
func NewStore(products ...*Product) *Store {
	s := &Store{products: make([]*Product, 0, len(products))}
	for _, p := range products {
		if p != nil {
			s.products = append(s.products, p)
		}
	}
	return s
}

// AddProduct 追加商品
func (s *Store) AddProduct(product *Product) error {
	if product == nil {
		return validationError("add product", ErrNilProduct)
	}
	s.products = append(s.products, product)
	return nil
}

// RemoveProduct 按名称移除商品，同名商品全部移除，返回移除数量
func (s *Store) RemoveProduct(product *Product) int {
	if product == nil {
		return 0
	}
	return s.RemoveByName(product.Name())
}

// RemoveByName 移除所有名称匹配的商品，返回移除数量
func (s *Store) RemoveByName(name string) int {
	kept := make([]*Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Name() != name {
			kept = append(kept, p)
		}
	}
	removed := len(s.products) - len(kept)
	s.products = kept
	return removed
}

// Products 返回全部商品（副本，保持插入顺序）
func (s *Store) Products() []*Product {
	out := make([]*Product, len(s.products))
	copy(out, s.products)
	return out
}

// Len 返回商品数量
func (s *Store) Len() int { return len(s.products) }

// ProductAt 按展示序号（从1开始）获取商品
func (s *Store) ProductAt(index int) (*Product, bool) {
	if index < 1 || index > len(s.products) {
		return nil, false
	}
	return s.products[index-1], true
}

// Contains 判断门店是否持有该商品实例
func (s *Store) Contains(product *Product) bool {
	for _, p := range s.products {
		if p == product {
			return true
		}
	}
	return false
}

// Merge 返回两个门店商品列表的拼接结果，不修改任何一方
func (s *Store) Merge(other *Store) []*Product {
	out := s.Products()
	if other != nil {
		out = append(out, other.products...)
	}
	return out
}

// TotalQuantity 返回所有商品库存之和
func (s *Store) TotalQuantity() int {
	total := 0
	for _, p := range s.products {
		total += p.Stock()
	}
	return total
}

// ActiveProducts 返回上架中的商品，保持顺序
func (s *Store) ActiveProducts() []*Product {
	var active []*Product
	for _, p := range s.products {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	return active
}

// Order 逐行执行订单并返回总价
// 非事务：某行失败时返回 *OrderError 和此前已累计的金额，已执行的行不回滚。
func (s *Store) Order(lines []OrderLine) (float64, error) {
	charges, err := s.Checkout(lines)
	total := 0.0
	for _, c := range charges {
		total += c
	}
	return total, err
}

// Checkout 逐行执行订单，返回每个成功行的金额（按行顺序）
// 失败时返回失败行之前的金额列表和 *OrderError。
func (s *Store) Checkout(lines []OrderLine) ([]float64, error) {
	charges := make([]float64, 0, len(lines))
	total := 0.0
	for i, line := range lines {
		if line.Product == nil {
			return charges, &OrderError{Line: i, Charged: total, Err: validationError("order", ErrNilProduct)}
		}
		price, err := line.Product.Buy(line.Quantity)
		if err != nil {
			return charges, &OrderError{Line: i, Product: line.Product.Name(), Charged: total, Err: err}
		}
		charges = append(charges, price)
		total += price
	}
	return charges, nil
}
