package webserver

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
)

type authKind int

const (
	authAdmin authKind = iota
	authNone
	authPortal
	authPortalOpen
)

type route struct {
	method  string
	path    string
	handler echo.HandlerFunc
	auth    authKind
}

var (
	routesMu sync.Mutex
	routes   []route
)

func add(method, path string, h echo.HandlerFunc, auth authKind) {
	routesMu.Lock()
	defer routesMu.Unlock()
	routes = append(routes, route{method: method, path: path, handler: h, auth: auth})
}

func registered() []route {
	routesMu.Lock()
	defer routesMu.Unlock()
	return append([]route(nil), routes...)
}

// ApiGET registers a JWT protected GET route under /api
func ApiGET(path string, h echo.HandlerFunc) { add(http.MethodGet, path, h, authAdmin) }

// ApiPOST registers a JWT protected POST route under /api
func ApiPOST(path string, h echo.HandlerFunc) { add(http.MethodPost, path, h, authAdmin) }

// ApiPUT registers a JWT protected PUT route under /api
func ApiPUT(path string, h echo.HandlerFunc) { add(http.MethodPut, path, h, authAdmin) }

// ApiDELETE registers a JWT protected DELETE route under /api
func ApiDELETE(path string, h echo.HandlerFunc) { add(http.MethodDelete, path, h, authAdmin) }

// PublicGET registers an unauthenticated GET route under /api
func PublicGET(path string, h echo.HandlerFunc) { add(http.MethodGet, path, h, authNone) }

// PublicPOST registers an unauthenticated POST route under /api
func PublicPOST(path string, h echo.HandlerFunc) { add(http.MethodPost, path, h, authNone) }

// Portal routes live under /api/portal and carry the portal session cookie.

// PortalGET registers a GET route that needs a subscriber portal session
func PortalGET(path string, h echo.HandlerFunc) { add(http.MethodGet, path, h, authPortal) }

// PortalPUT registers a PUT route that needs a subscriber portal session
func PortalPUT(path string, h echo.HandlerFunc) { add(http.MethodPut, path, h, authPortal) }

// PortalOpenPOST registers a portal POST route usable without a session, such as login
func PortalOpenPOST(path string, h echo.HandlerFunc) { add(http.MethodPost, path, h, authPortalOpen) }
