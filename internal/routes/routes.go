package routes

import (
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"user-management/internal/controllers"
	"user-management/internal/listeners"
	"user-management/internal/repositories"
	"user-management/internal/services"
	"user-management/pkg/api"
	"user-management/pkg/config"
	"user-management/pkg/eventbus"
	applogger "user-management/pkg/logger"
	"user-management/pkg/middleware"
	"user-management/pkg/service"
	"user-management/pkg/validation"
)

// NewServer создаёт echo с общими middleware, валидатором и обработчиком ошибок.
func NewServer(cfg config.ServerConfig, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = api.HTTPErrorHandler(logger)

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("Recovered from panic",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				_ = api.ErrorResponse(c, err)
			}
			return err
		},
	}))
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentDisposition, echo.HeaderWWWAuthenticate},
	}))

	return e
}

// InitRouter собирает репозитории, сервисы и контроллеры и регистрирует маршруты.
func InitRouter(
	e *echo.Echo,
	dbConn *pgxpool.Pool,
	redisClient *redis.Client,
	jwtSvc service.JWTService,
	bus *eventbus.Bus,
	loggers *applogger.Loggers,
	cfg *config.Config,
) {
	loggers.Main.Info("InitRouter: building routes")

	// --- 1. РЕПОЗИТОРИИ ---
	userRepo := repositories.NewUserRepository(dbConn, loggers.User)
	var cacheRepo repositories.CacheRepositoryInterface
	if redisClient != nil {
		cacheRepo = repositories.NewRedisCacheRepository(redisClient)
	}

	// --- 2. СЕРВИСЫ ---
	userLookup := services.NewUserLookup(userRepo, cacheRepo, cfg.Cache.UserLookupTTL, loggers.Auth)
	identityResolver := services.NewIdentityResolver(jwtSvc, userLookup, loggers.Auth)
	userService := services.NewUserService(userRepo, userLookup, bus, loggers.User)

	// --- 3. СЛУШАТЕЛИ СОБЫТИЙ ---
	listeners.NewUserListener(listeners.NewLogNotifier(loggers.User), loggers.User).Register(bus)

	// --- 4. МАРШРУТЫ ---
	authMW := middleware.NewAuthMiddleware(identityResolver, loggers.Auth)
	RegisterRoutes(e, authMW, controllers.NewUserController(userService, loggers.User))

	loggers.Main.Info("InitRouter: routes registered", zap.Int("count", len(e.Routes())))
}

// RegisterRoutes навешивает маршруты. Все /api защищены Auth, операции записи - ролями.
func RegisterRoutes(e *echo.Echo, authMW *middleware.AuthMiddleware, userCtrl *controllers.UserController) {
	e.GET("/health", func(c echo.Context) error {
		return api.SuccessOne(c, http.StatusOK, "ok", map[string]string{"time": time.Now().UTC().Format(time.RFC3339)})
	})

	secureGroup := e.Group("/api", authMW.Auth)
	secureGroup.GET("/me", userCtrl.Me)

	runUserRouter(secureGroup, authMW, userCtrl)
}
