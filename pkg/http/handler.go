package http

import "github.com/labstack/echo/v4"

// Handler mounts a group of routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// Routes lets a plain function serve as a Handler.
type Routes func(e *echo.Echo)

func (r Routes) RegisterRoutes(e *echo.Echo) { r(e) }
