package webserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo-contrib/session"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/app"
	"go.uber.org/zap"
)

const (
	appContextKey = "appctx"
	// UserContextKey holds the parsed *jwt.Token of an admin request
	UserContextKey = "user"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type WebServer struct {
	root *echo.Echo
	app  app.AppContext
}

// GetAppContext returns the application bound to the request.
func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(appContextKey).(app.AppContext)
}

// AdminClaims are the claims of an admin session token.
type AdminClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// CurrentAdmin returns the username of an authenticated request.
func CurrentAdmin(c echo.Context) string {
	token, ok := c.Get(UserContextKey).(*jwt.Token)
	if !ok {
		return ""
	}
	if claims, ok := token.Claims.(*AdminClaims); ok {
		return claims.Username
	}
	return ""
}

// IssueToken signs an admin session token.
func IssueToken(secret, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &AdminClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret string) func(c echo.Context, auth string) (interface{}, error) {
	return func(c echo.Context, auth string) (interface{}, error) {
		token, err := jwt.ParseWithClaims(auth, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			return nil, err
		}
		if !token.Valid {
			return nil, errors.New("invalid token")
		}
		return token, nil
	}
}

type jsoniterSerializer struct{}

func (jsoniterSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsoniterSerializer) Deserialize(c echo.Context, i interface{}) error {
	if err := json.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}

type structValidator struct {
	validate *validator.Validate
}

func (v *structValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func NewWebServer(appCtx app.AppContext) *WebServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsoniterSerializer{}
	e.Validator = &structValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Debug("http request",
				zap.String("namespace", "webserver"),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(appContextKey, appCtx)
			return next(c)
		}
	})

	jwtMiddleware := echojwt.WithConfig(echojwt.Config{
		ContextKey:     UserContextKey,
		ParseTokenFunc: parseToken(appCtx.Config().Web.Secret),
	})

	api := e.Group("/api")
	portal := api.Group("/portal", session.Middleware(
		newSessionStore(appCtx.Config().Web.Secret, appCtx.Config().IsProduction())))
	for _, r := range registered() {
		switch r.auth {
		case authNone:
			api.Add(r.method, r.path, r.handler)
		case authPortalOpen:
			portal.Add(r.method, r.path, r.handler)
		case authPortal:
			portal.Add(r.method, r.path, r.handler, requirePortal)
		default:
			api.Add(r.method, r.path, r.handler, jwtMiddleware)
		}
	}
	return &WebServer{root: e, app: appCtx}
}

// Handler exposes the router, mostly for tests.
func (s *WebServer) Handler() http.Handler {
	return s.root
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *WebServer) Start(ctx context.Context) error {
	cfg := s.app.Config().Web
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	errc := make(chan error, 1)
	go func() {
		zap.L().Info("webserver: listening", zap.String("namespace", "webserver"), zap.String("addr", addr))
		errc <- s.root.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.root.Shutdown(shutdownCtx)
	}
}
