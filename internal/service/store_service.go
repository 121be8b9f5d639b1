package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/domain"
	"github.com/MorseWayne/catalog_shop/internal/mq"
)

// 门店服务错误
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductInactive   = errors.New("product is not active")
	ErrPromotionNotFound = errors.New("promotion not found")
)

// StoreService 门店服务接口
// 商品通过展示序号寻址，序号从1开始，与门店中的插入顺序一致。
type StoreService interface {
	ListProducts(ctx context.Context, activeOnly bool) ([]*domain.ProductView, error)
	GetProduct(ctx context.Context, index int) (*domain.ProductView, error)
	TotalQuantity(ctx context.Context) (int, error)
	PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReceipt, error)

	// 管理操作
	AddProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.ProductView, error)
	RemoveProduct(ctx context.Context, name string) (int, error)
	SetQuantity(ctx context.Context, index, quantity int) (*domain.ProductView, error)
	SetActive(ctx context.Context, index int, active bool) (*domain.ProductView, error)
	SetPromotion(ctx context.Context, index int, key string) (*domain.ProductView, error)
	ListPromotions(ctx context.Context) ([]*domain.PromotionView, error)
}

// storeService 用一把门店级互斥锁串行化所有门店操作
type storeService struct {
	mu         sync.Mutex
	store      *domain.Store
	promotions map[string]domain.Promotion
	publisher  mq.Publisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewStoreService 创建门店服务
func NewStoreService(store *domain.Store, promotions map[string]domain.Promotion, publisher mq.Publisher, logger *zap.Logger) StoreService {
	if promotions == nil {
		promotions = make(map[string]domain.Promotion)
	}
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &storeService{
		store:      store,
		promotions: promotions,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// ListProducts 列出商品，activeOnly 时只返回上架商品（序号保持门店中的位置）
func (s *storeService) ListProducts(ctx context.Context, activeOnly bool) ([]*domain.ProductView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	products := s.store.Products()
	views := make([]*domain.ProductView, 0, len(products))
	for i, p := range products {
		if activeOnly && !p.IsActive() {
			continue
		}
		views = append(views, domain.NewProductView(i+1, p))
	}
	return views, nil
}

// GetProduct 按序号获取商品
func (s *storeService) GetProduct(ctx context.Context, index int) (*domain.ProductView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.productAt(index)
	if err != nil {
		return nil, err
	}
	return domain.NewProductView(index, p), nil
}

// TotalQuantity 门店库存总量
func (s *storeService) TotalQuantity(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.TotalQuantity(), nil
}

// PlaceOrder 执行订单
// 先解析全部序号，任一序号无效时不产生任何扣减；
// 执行阶段非事务，某行失败时返回已成功部分的回执和错误。
func (s *storeService) PlaceOrder(ctx context.Context, req *domain.OrderRequest) (*domain.OrderReceipt, error) {
	receipt, err := s.placeOrder(req)
	if receipt == nil {
		return nil, err
	}

	logFields := []zap.Field{
		zap.String("order_id", receipt.OrderID),
		zap.String("status", string(receipt.Status)),
		zap.Int("lines", len(receipt.Lines)),
		zap.Float64("total", receipt.Total),
	}
	if err != nil {
		s.logger.Warn("order stopped", append(logFields, zap.Error(err))...)
	} else {
		s.logger.Info("order completed", logFields...)
	}

	// 有扣减的订单才发布事件，发布失败不影响下单结果
	if receipt.Status != domain.OrderStatusFailed && len(receipt.Lines) > 0 {
		if perr := s.publisher.PublishOrderEvent(ctx, mq.NewOrderEvent(receipt)); perr != nil {
			s.logger.Error("failed to publish order event",
				zap.String("order_id", receipt.OrderID), zap.Error(perr))
		}
	}
	return receipt, err
}

func (s *storeService) placeOrder(req *domain.OrderRequest) (*domain.OrderReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		p, err := s.productAt(item.ProductIndex)
		if err != nil {
			return nil, err
		}
		if !p.IsActive() {
			return nil, fmt.Errorf("%w: %d (%s)", ErrProductInactive, item.ProductIndex, p.Name())
		}
		lines = append(lines, domain.OrderLine{Product: p, Quantity: item.Quantity})
	}

	charges, err := s.store.Checkout(lines)

	receipt := &domain.OrderReceipt{
		OrderID:   uuid.New().String(),
		Status:    domain.OrderStatusCompleted,
		Lines:     make([]domain.ReceiptLine, 0, len(charges)),
		CreatedAt: s.now(),
	}
	for i, charge := range charges {
		line := domain.ReceiptLine{
			ProductIndex: req.Items[i].ProductIndex,
			Product:      lines[i].Product.Name(),
			Quantity:     lines[i].Quantity,
			Total:        charge,
		}
		if promo := lines[i].Product.Promotion(); promo != nil {
			line.Promotion = promo.Name()
		}
		receipt.Lines = append(receipt.Lines, line)
		receipt.Total += charge
	}

	if err != nil {
		var orderErr *domain.OrderError
		if errors.As(err, &orderErr) {
			failed := orderErr.Line
			receipt.FailedLine = &failed
		}
		receipt.Error = err.Error()
		receipt.Status = domain.OrderStatusPartial
		if len(charges) == 0 {
			receipt.Status = domain.OrderStatusFailed
		}
		return receipt, err
	}
	return receipt, nil
}

// AddProduct 新增商品
func (s *storeService) AddProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.ProductView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := req.BuildProduct()
	if err != nil {
		return nil, err
	}
	if req.Promotion != "" {
		promo, ok := s.promotions[req.Promotion]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrPromotionNotFound, req.Promotion)
		}
		p.SetPromotion(promo)
	}
	if err := s.store.AddProduct(p); err != nil {
		return nil, err
	}

	s.logger.Info("product added", zap.String("name", p.Name()), zap.String("kind", string(p.Kind())))
	return domain.NewProductView(s.store.Len(), p), nil
}

// RemoveProduct 按名称删除所有同名商品，返回删除数量
func (s *storeService) RemoveProduct(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.store.RemoveByName(name)
	if removed == 0 {
		return 0, fmt.Errorf("%w: %q", ErrProductNotFound, name)
	}
	s.logger.Info("product removed", zap.String("name", name), zap.Int("count", removed))
	return removed, nil
}

// SetQuantity 设置库存
func (s *storeService) SetQuantity(ctx context.Context, index, quantity int) (*domain.ProductView, error) {
	return s.update(index, func(p *domain.Product) error {
		return p.SetQuantity(quantity)
	})
}

// SetActive 上架或下架商品
func (s *storeService) SetActive(ctx context.Context, index int, active bool) (*domain.ProductView, error) {
	return s.update(index, func(p *domain.Product) error {
		if active {
			p.Activate()
		} else {
			p.Deactivate()
		}
		return nil
	})
}

// SetPromotion 设置促销，key 为空表示取消
func (s *storeService) SetPromotion(ctx context.Context, index int, key string) (*domain.ProductView, error) {
	return s.update(index, func(p *domain.Product) error {
		if key == "" {
			p.SetPromotion(nil)
			return nil
		}
		promo, ok := s.promotions[key]
		if !ok {
			return fmt.Errorf("%w: %q", ErrPromotionNotFound, key)
		}
		p.SetPromotion(promo)
		return nil
	})
}

// ListPromotions 按键排序列出促销
func (s *storeService) ListPromotions(ctx context.Context) ([]*domain.PromotionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.promotions))
	for k := range s.promotions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	views := make([]*domain.PromotionView, 0, len(keys))
	for _, k := range keys {
		views = append(views, domain.NewPromotionView(k, s.promotions[k]))
	}
	return views, nil
}

// update 在锁内修改单个商品并返回新快照
func (s *storeService) update(index int, fn func(p *domain.Product) error) (*domain.ProductView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.productAt(index)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	s.logger.Info("product updated", zap.Int("index", index), zap.String("name", p.Name()))
	return domain.NewProductView(index, p), nil
}

// productAt 调用方需持有锁
func (s *storeService) productAt(index int) (*domain.Product, error) {
	p, ok := s.store.ProductAt(index)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, index)
	}
	return p, nil
}
