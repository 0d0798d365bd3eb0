package webserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// ApiPrefix is the mount point of every registered api route
const ApiPrefix = "/api/v1"

// AppContextKey is the echo context key carrying the application context
const AppContextKey = "appctx"

// WebRouter is one registered api route
type WebRouter struct {
	Method  string
	Path    string
	Handler echo.HandlerFunc
}

var (
	routesMu sync.Mutex
	routes   []WebRouter
)

func addRoute(method, path string, h echo.HandlerFunc) {
	routesMu.Lock()
	defer routesMu.Unlock()
	routes = append(routes, WebRouter{Method: method, Path: path, Handler: h})
}

// ApiGET registers a GET route under ApiPrefix
func ApiGET(path string, h echo.HandlerFunc) { addRoute(http.MethodGet, path, h) }

// ApiPOST registers a POST route under ApiPrefix
func ApiPOST(path string, h echo.HandlerFunc) { addRoute(http.MethodPost, path, h) }

// ApiPUT registers a PUT route under ApiPrefix
func ApiPUT(path string, h echo.HandlerFunc) { addRoute(http.MethodPut, path, h) }

// ApiDELETE registers a DELETE route under ApiPrefix
func ApiDELETE(path string, h echo.HandlerFunc) { addRoute(http.MethodDelete, path, h) }

// Routes returns a copy of the registered routes
func Routes() []WebRouter {
	routesMu.Lock()
	defer routesMu.Unlock()
	return append([]WebRouter(nil), routes...)
}

// Validator adapts go-playground/validator to echo
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates an echo validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// AdminServer serves the admin api
type AdminServer struct {
	root *echo.Echo
	addr string
}

// NewAdminServer builds the echo instance, installs the middleware and mounts every registered route.
// appCtx is stored on each request under AppContextKey.
func NewAdminServer(appCtx interface{}, host string, port int, debug bool) *AdminServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = debug
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			zap.L().Debug("admin api request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.Error(v.Error),
				zap.String("namespace", "webserver"),
			)
			return nil
		},
	}))
	e.Use(middleware.CORS())

	api := e.Group(ApiPrefix, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(AppContextKey, appCtx)
			return next(c)
		}
	})
	for _, r := range Routes() {
		api.Add(r.Method, r.Path, r.Handler)
	}

	return &AdminServer{root: e, addr: fmt.Sprintf("%s:%d", host, port)}
}

// Echo returns the underlying echo instance
func (s *AdminServer) Echo() *echo.Echo {
	return s.root
}

// Start listens until Shutdown is called
func (s *AdminServer) Start() error {
	zap.S().Infof("admin api listening on %s", s.addr)
	err := s.root.Start(s.addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting up to five seconds for active requests
func (s *AdminServer) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.root.Shutdown(ctx)
}
