package domain

import (
	"time"
)

// OrderStatus 定义订单执行结果
type OrderStatus string

const (
	OrderStatusCompleted OrderStatus = "completed" // 全部行成功
	OrderStatusPartial   OrderStatus = "partial"   // 部分行成功后失败，已成功行不回滚
	OrderStatusFailed    OrderStatus = "failed"    // 首行即失败，未产生任何扣减
)

// OrderItemRequest 表示订单请求中的一行
type OrderItemRequest struct {
	ProductIndex int `json:"product_index"` // 商品展示序号，从1开始
	Quantity     int `json:"quantity"`
}

// OrderRequest 表示下单请求
type OrderRequest struct {
	Items []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ReceiptLine 表示已成功执行的订单行
type ReceiptLine struct {
	ProductIndex int     `json:"product_index"`
	Product      string  `json:"product"`
	Quantity     int     `json:"quantity"`
	Promotion    string  `json:"promotion,omitempty"`
	Total        float64 `json:"total"`
}

// OrderReceipt 表示订单回执
type OrderReceipt struct {
	OrderID    string        `json:"order_id"`
	Status     OrderStatus   `json:"status"`
	Lines      []ReceiptLine `json:"lines"`
	Total      float64       `json:"total"`
	FailedLine *int          `json:"failed_line,omitempty"` // 失败行序号，从0开始
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// IsCompleted 判断订单是否全部成功
func (r *OrderReceipt) IsCompleted() bool {
	return r.Status == OrderStatusCompleted
}
