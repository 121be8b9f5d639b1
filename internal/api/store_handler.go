package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/domain"
	"github.com/MorseWayne/catalog_shop/internal/middleware"
	"github.com/MorseWayne/catalog_shop/internal/resp"
	"github.com/MorseWayne/catalog_shop/internal/service"
)

// StoreHandler 门店API处理器
type StoreHandler struct {
	storeService service.StoreService
	logger       *zap.Logger
}

// NewStoreHandler 创建门店API处理器
func NewStoreHandler(storeService service.StoreService, logger *zap.Logger) *StoreHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreHandler{storeService: storeService, logger: logger}
}

// TotalQuantityResponse 库存总量响应
type TotalQuantityResponse struct {
	TotalQuantity int `json:"total_quantity"`
}

// RemoveProductResponse 删除商品响应
type RemoveProductResponse struct {
	Name    string `json:"name"`
	Removed int    `json:"removed"`
}

// ListProducts 列出商品
// @Summary 商品列表
// @Param active query bool false "只返回上架商品"
// @Success 200 {object} resp.Response[[]domain.ProductView]
// @Router /api/v1/products [get]
func (h *StoreHandler) ListProducts(c *gin.Context) {
	activeOnly := false
	if v := c.Query("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "active must be true or false")
			return
		}
		activeOnly = b
	}

	products, err := h.storeService.ListProducts(c.Request.Context(), activeOnly)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	resp.OK(c.Writer, &products, requestID(c), traceID(c))
}

// GetProduct 按展示序号获取商品
func (h *StoreHandler) GetProduct(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}
	product, err := h.storeService.GetProduct(c.Request.Context(), index)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	resp.OK(c.Writer, product, requestID(c), traceID(c))
}

// TotalQuantity 门店库存总量
func (h *StoreHandler) TotalQuantity(c *gin.Context) {
	total, err := h.storeService.TotalQuantity(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	resp.OK(c.Writer, &TotalQuantityResponse{TotalQuantity: total}, requestID(c), traceID(c))
}

// PlaceOrder 下单
// 全部成功返回 201；执行中途失败返回 422，data 中带有已成功部分的回执。
// @Summary 下单
// @Param X-Idempotency-Key header string false "幂等键"
// @Param request body domain.OrderRequest true "订单"
// @Success 201 {object} resp.Response[domain.OrderReceipt]
// @Failure 422 {object} resp.Response[domain.OrderReceipt]
// @Failure 429 {object} resp.Response[any]
// @Router /api/v1/orders [post]
func (h *StoreHandler) PlaceOrder(c *gin.Context) {
	var req domain.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid order request", zap.String("request_id", requestID(c)), zap.Error(err))
		badRequest(c, "invalid order request: "+err.Error())
		return
	}

	receipt, err := h.storeService.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		if receipt == nil {
			writeError(c, h.logger, err)
			return
		}
		status, code := errorStatus(err)
		resp.WriteJSON(c.Writer, status, code, err.Error(), receipt, requestID(c), traceID(c))
		return
	}
	resp.Created(c.Writer, receipt, requestID(c), traceID(c))
}

// CreateProduct 新增商品（管理员）
func (h *StoreHandler) CreateProduct(c *gin.Context) {
	var req domain.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid product request: "+err.Error())
		return
	}

	product, err := h.storeService.AddProduct(c.Request.Context(), &req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.audit(c, "product created", zap.String("name", product.Name))
	resp.Created(c.Writer, product, requestID(c), traceID(c))
}

// RemoveProduct 按名称删除所有同名商品（管理员）
func (h *StoreHandler) RemoveProduct(c *gin.Context) {
	name := c.Param("name")
	removed, err := h.storeService.RemoveProduct(c.Request.Context(), name)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.audit(c, "product removed", zap.String("name", name), zap.Int("count", removed))
	resp.OK(c.Writer, &RemoveProductResponse{Name: name, Removed: removed}, requestID(c), traceID(c))
}

// SetQuantity 设置库存（管理员）
func (h *StoreHandler) SetQuantity(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}
	var req domain.SetQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid quantity request: "+err.Error())
		return
	}

	product, err := h.storeService.SetQuantity(c.Request.Context(), index, *req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.audit(c, "quantity set", zap.Int("index", index), zap.Int("quantity", *req.Quantity))
	resp.OK(c.Writer, product, requestID(c), traceID(c))
}

// Activate 上架商品（管理员）
func (h *StoreHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// Deactivate 下架商品（管理员）
func (h *StoreHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *StoreHandler) setActive(c *gin.Context, active bool) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}
	product, err := h.storeService.SetActive(c.Request.Context(), index, active)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.audit(c, "active set", zap.Int("index", index), zap.Bool("active", active))
	resp.OK(c.Writer, product, requestID(c), traceID(c))
}

// SetPromotion 设置或取消促销（管理员）
func (h *StoreHandler) SetPromotion(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}
	var req domain.SetPromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid promotion request: "+err.Error())
		return
	}

	product, err := h.storeService.SetPromotion(c.Request.Context(), index, req.Promotion)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.audit(c, "promotion set", zap.Int("index", index), zap.String("promotion", req.Promotion))
	resp.OK(c.Writer, product, requestID(c), traceID(c))
}

// ListPromotions 列出促销（管理员）
func (h *StoreHandler) ListPromotions(c *gin.Context) {
	promotions, err := h.storeService.ListPromotions(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	resp.OK(c.Writer, &promotions, requestID(c), traceID(c))
}

// indexParam 解析路径中的商品序号，失败时已写出响应
func (h *StoreHandler) indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 1 {
		badRequest(c, "product index must be a positive integer")
		return 0, false
	}
	return index, true
}

// audit 记录管理操作
func (h *StoreHandler) audit(c *gin.Context, msg string, fields ...zap.Field) {
	if user := middleware.UserFromGin(c); user != nil {
		fields = append(fields, zap.String("admin", user.Username))
	}
	fields = append(fields, zap.String("request_id", requestID(c)))
	h.logger.Info(msg, fields...)
}
