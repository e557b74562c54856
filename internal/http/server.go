// README: API gateway; registers gin routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"routebite/internal/http/handlers"
	"routebite/internal/http/middleware"
	"routebite/internal/infra"
	"routebite/internal/modules/capacity"
	"routebite/internal/modules/matching"
	"routebite/internal/modules/order"
	"routebite/internal/modules/pricing"
)

type ServerDeps struct {
	Order     *order.Service
	Matching  *matching.Service
	Pricing   *pricing.Service
	Previewer handlers.RoutePreviewer
	Geocoder  handlers.Geocoder
	Directory order.Directory
	Menu      handlers.MenuReader
	Ledger    capacity.Ledger
	Verifier  infra.TokenVerifier
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(s.deps.Verifier))

	routeHandler := handlers.NewRouteHandler(s.deps.Previewer, s.deps.Matching)
	api.POST("/routes/preview", routeHandler.Preview)
	api.POST("/restaurants/on-route", routeHandler.OnRoute)
	api.GET("/restaurants/nearby", routeHandler.Nearby)

	locationHandler := handlers.NewLocationHandler(s.deps.Geocoder)
	api.GET("/locations/geocode", locationHandler.Geocode)
	api.GET("/locations/reverse", locationHandler.Reverse)

	restaurantHandler := handlers.NewRestaurantHandler(s.deps.Directory, s.deps.Menu, s.deps.Ledger, s.deps.Order)
	api.GET("/restaurants/:id", restaurantHandler.Get)
	api.GET("/restaurants/:id/menu", restaurantHandler.Menu)
	api.GET("/restaurants/:id/capacity", restaurantHandler.Capacity)
	api.GET("/restaurants/:id/orders", restaurantHandler.Orders)

	orderHandler := handlers.NewOrderHandler(s.deps.Order, s.deps.Pricing)
	api.POST("/orders/validate-cart", orderHandler.ValidateCart)
	api.POST("/orders/lock-slot", orderHandler.LockSlot)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders", orderHandler.List)
	api.GET("/orders/:id", orderHandler.Get)
	api.PUT("/orders/:id/status", orderHandler.UpdateStatus)
	api.POST("/orders/:id/verify-code", orderHandler.VerifyCode)
	api.POST("/orders/:id/rating", orderHandler.Rate)
	api.GET("/orders/:id/events", orderHandler.Events)

	return r
}
