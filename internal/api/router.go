package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/opendatanode/manager/internal/api/handler"
	"github.com/opendatanode/manager/internal/api/middleware"
	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/core/ports"
	"github.com/opendatanode/manager/internal/downstream"
	"github.com/opendatanode/manager/internal/security/cookie"
	"github.com/opendatanode/manager/internal/security/token"
)

// Deps collects everything the router wires together. All fields are
// required except Redis/Mongo which only feed the readiness probe.
type Deps struct {
	Users     ports.UserRepository
	Auth      ports.AuthService
	UserAdmin ports.UserService
	Forge     *token.Forge
	Verifier  *token.Verifier
	Cookies   *cookie.Manager
	Connector *downstream.Connector
	Catalog   *downstream.Client
	Storage   *downstream.Client
	Group     string
	Mongo     *mongo.Database
	Redis     *redis.Client
	Log       zerolog.Logger
}

// NewRouter builds the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("node_manager"))

	// --- Authentication strategies ---
	session := middleware.Session(d.Verifier, d.Cookies)
	sessionOrKey := middleware.SessionOrKey(d.Verifier, d.Cookies, d.Users)
	refresh := middleware.RefreshSession(d.Forge, d.Cookies, d.Log)
	anyUser := middleware.RoleGate(d.Users, d.Cookies, domain.RoleAny)
	adminOnly := middleware.RoleGate(d.Users, d.Cookies, domain.RoleAdmin)
	readAccess := middleware.RoleGate(d.Users, d.Cookies,
		domain.RoleAdmin, domain.RoleEditor, domain.RoleReader)

	// --- Handlers ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Forge, d.Cookies)
	userHandler := handler.NewUserHandler(d.UserAdmin)
	nodeHandler := handler.NewNodeHandler(d.Connector, d.Catalog, d.Storage, d.Group)

	// --- Open routes ---
	front := e.Group("/api/front")
	front.POST("/login", authHandler.Login)
	front.POST("/register", authHandler.Register)
	front.GET("/logout", authHandler.Logout)

	// --- Session routes (any authenticated user) ---
	authed := front.Group("", session, refresh, anyUser)
	authed.GET("/user-info", authHandler.UserInfo)
	authed.GET("/node-urls", nodeHandler.NodeURLs)
	authed.GET("/catalog-url", nodeHandler.CatalogURL)
	authed.GET("/storage-url", nodeHandler.StorageURL)
	authed.GET("/storage-token", nodeHandler.StorageToken)
	authed.PUT("/password", authHandler.ChangePassword)

	// --- Downstream pass-through (read roles) ---
	data := e.Group("/api/data", session, refresh, readAccess)
	data.GET("/*", nodeHandler.ProxyCatalog)
	media := e.Group("/api/media", session, refresh, readAccess)
	media.GET("/*", nodeHandler.ProxyStorage)

	// --- Admin routes: session or key-based channel ---
	secu := e.Group("/api/secu", sessionOrKey, adminOnly)
	secu.GET("/users", userHandler.List)
	secu.GET("/users/:username", userHandler.Get)
	secu.POST("/users", userHandler.Create)
	secu.PUT("/users", userHandler.Update)
	secu.DELETE("/users/:id", userHandler.Delete)
	secu.PUT("/users/:id/reset-password", authHandler.ResetPassword)
	secu.POST("/users/:id/roles", userHandler.GrantRole)
	secu.DELETE("/users/:id/roles/:role", userHandler.RevokeRole)
	secu.GET("/roles", userHandler.ListRoles)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Mongo, d.Redis)

	e.GET("/health", healthHandler.Liveness)           // is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // are the dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
