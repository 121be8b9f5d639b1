// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/catalog_shop/internal/api"
	"github.com/MorseWayne/catalog_shop/internal/cache"
	"github.com/MorseWayne/catalog_shop/internal/config"
	"github.com/MorseWayne/catalog_shop/internal/limiter"
	mw "github.com/MorseWayne/catalog_shop/internal/middleware"
	"github.com/MorseWayne/catalog_shop/internal/resp"
	"github.com/MorseWayne/catalog_shop/internal/service"
)

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	StoreHandler  *api.StoreHandler
	AuthHandler   *api.AuthHandler
	HealthHandler *api.HealthHandler
	JWTService    service.JWTService

	// OrderLimiter 为空时下单不限流
	OrderLimiter limiter.Limiter

	// IdempotencyCache 保存下单接口的幂等响应
	IdempotencyCache cache.Cache
	IdempotencyTTL   time.Duration
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由，并在外层包上 net/http 中间件链
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	switch cfg.App.Env {
	case "prod":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r.engine = gin.New()
	r.engine.HandleMethodNotAllowed = true
	r.deps = deps
	r.logger = lg

	r.engine.Use(mw.GinContext())
	r.engine.NoRoute(r.notFound)
	r.engine.NoMethod(r.methodNotAllowed)

	r.setupRoutes()

	return r.wrap(cfg, r.engine)
}

// wrap 构建中间件链：请求进入时依次经过 request ID → access log → CORS → timeout → recovery
func (r *GinRouter) wrap(cfg *config.Config, h http.Handler) http.Handler {
	h = mw.Recovery(r.logger)(h)
	h = mw.Timeout(cfg.App.RequestTimeout)(h)
	h = mw.CORS(mw.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
		ExposedHeaders: []string{mw.HeaderRequestID, "Retry-After", mw.HeaderIdempotencyReplayed},
		MaxAge:         600,
	})(h)
	h = mw.AccessLog(r.logger)(h)
	return mw.RequestID(h)
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes() {
	r.engine.GET("/healthz", r.deps.HealthHandler.Healthz)

	v1 := r.engine.Group("/api/v1")
	{
		// 认证路由（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.deps.AuthHandler.Login)
			auth.POST("/refresh", r.deps.AuthHandler.Refresh)
		}

		// 商品路由（公开）
		products := v1.Group("/products")
		{
			products.GET("", r.deps.StoreHandler.ListProducts)
			products.GET("/:index", r.deps.StoreHandler.GetProduct)
		}
		v1.GET("/store/quantity", r.deps.StoreHandler.TotalQuantity)

		// 下单：先限流，再做幂等
		orderChain := []gin.HandlerFunc{}
		if r.deps.OrderLimiter != nil {
			orderChain = append(orderChain, limiter.OrderRateLimitMiddleware(r.deps.OrderLimiter, r.logger))
		}
		orderChain = append(orderChain,
			mw.IdempotencyMiddleware(mw.IdempotencyConfig{
				Cache:  r.deps.IdempotencyCache,
				TTL:    r.deps.IdempotencyTTL,
				Logger: r.logger,
			}),
			r.deps.StoreHandler.PlaceOrder,
		)
		v1.POST("/orders", orderChain...)

		// 管理员路由（需要认证+管理员权限）
		admin := v1.Group("/admin")
		admin.Use(mw.RequireAuth(r.deps.JWTService, r.logger), mw.RequireAdmin(r.logger))
		{
			adminProducts := admin.Group("/products")
			{
				adminProducts.POST("", r.deps.StoreHandler.CreateProduct)
				adminProducts.DELETE("/by-name/:name", r.deps.StoreHandler.RemoveProduct)
				adminProducts.PUT("/:index/quantity", r.deps.StoreHandler.SetQuantity)
				adminProducts.POST("/:index/activate", r.deps.StoreHandler.Activate)
				adminProducts.POST("/:index/deactivate", r.deps.StoreHandler.Deactivate)
				adminProducts.PUT("/:index/promotion", r.deps.StoreHandler.SetPromotion)
			}
			admin.GET("/promotions", r.deps.StoreHandler.ListPromotions)
		}
	}
}

func (r *GinRouter) notFound(c *gin.Context) {
	resp.Error(c.Writer, http.StatusNotFound, resp.CodeNotFound, "route not found",
		c.GetString(mw.GinKeyRequestID), c.GetString(mw.GinKeyTraceID))
}

func (r *GinRouter) methodNotAllowed(c *gin.Context) {
	resp.Error(c.Writer, http.StatusMethodNotAllowed, resp.CodeInvalidParam, "method not allowed",
		c.GetString(mw.GinKeyRequestID), c.GetString(mw.GinKeyTraceID))
}
