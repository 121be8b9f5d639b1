// Package domain 定义商品、促销和门店的业务领域模型和核心业务规则。
// 领域模型是业务逻辑的核心，独立于外部依赖（HTTP、缓存、消息队列等）。
package domain

import (
	"errors"
)

// ErrorKind 定义领域错误的类别
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1 // 构造或赋值参数不合法
	KindImmutable                       // 变体声明为不可修改的字段被修改
	KindPurchase                        // 购买前置条件不满足
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindImmutable:
		return "immutable"
	case KindPurchase:
		return "purchase"
	default:
		return "unknown"
	}
}

// 领域错误原因
var (
	ErrEmptyName           = errors.New("product name cannot be empty")
	ErrNegativePrice       = errors.New("product price cannot be negative")
	ErrInvalidPrice        = errors.New("product price has to be a finite number")
	ErrNegativeQuantity    = errors.New("product quantity cannot be negative")
	ErrInvalidMaximum      = errors.New("product maximum has to be greater than zero")
	ErrQuantityImmutable   = errors.New("non-stocked product quantity cannot be modified")
	ErrNonPositiveQuantity = errors.New("quantity has to be greater than zero")
	ErrInsufficientStock   = errors.New("not enough stock available")
	ErrLimitExceeded       = errors.New("purchase limit exceeded")
	ErrNilProduct          = errors.New("product is required")
	ErrEmptyPromotionName  = errors.New("promotion name cannot be empty")
	ErrInvalidPercent      = errors.New("promotion percent has to be between 0 and 100")
	ErrUnknownPromotion    = errors.New("unknown promotion type")
	ErrUnknownProductKind  = errors.New("unknown product kind")
)

// Error 表示带类别的领域错误
type Error struct {
	Kind ErrorKind
	Op   string // 出错的操作，如 "buy"、"set quantity"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

func immutableError(op string, err error) error {
	return &Error{Kind: KindImmutable, Op: op, Err: err}
}

func purchaseError(op string, err error) error {
	return &Error{Kind: KindPurchase, Op: op, Err: err}
}

// KindOf 返回错误链上第一个领域错误的类别，非领域错误返回0
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

// IsValidation 判断是否为参数校验错误
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsImmutable 判断是否为不可修改字段错误
func IsImmutable(err error) bool {
	return KindOf(err) == KindImmutable
}

// IsPurchase 判断是否为购买前置条件错误
func IsPurchase(err error) bool {
	return KindOf(err) == KindPurchase
}
