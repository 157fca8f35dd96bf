package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/veebhq/veeb/internal/database"
	"github.com/veebhq/veeb/internal/server/middlewares"
)

// An IOC is an Iversion Of Control pattern used to init the server package.
type IOC struct {
	Version   string
	Database  database.Client
	Publisher Publisher
}

// EchoEngine instantiates the wep server.
func EchoEngine(ctrl IOC) *echo.Echo {
	engine := echo.New()
	engine.Use(middleware.Recover())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig))
	engine.Use(middleware.Gzip())

	engine.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${status}] ${method} ${uri} (${bytes_in}) ${latency_human}\n",
	}))
	engine.Binder = middlewares.NewBinder()
	// Error handler
	engine.HTTPErrorHandler = middlewares.HTTPErrorHandler

	engine.Pre(middleware.Rewrite(map[string]string{
		"/": "/version",
	}))

	////////////
	// Router //
	////////////

	router := engine.Group("")

	// generic handlers
	//
	router.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"version": ctrl.Version,
		})
	})

	//
	// issue handlers
	//
	issue := &issue{
		db:  ctrl.Database,
		pub: ctrl.Publisher,
	}
	router.GET("/issues", issue.List)
	router.POST("/issues", issue.Create)
	router.GET("/issues/:id", issue.Show)
	router.PATCH("/issues/:id", issue.Update)
	router.DELETE("/issues/:id", issue.Delete)

	return engine
}

// PrintRoutes prints the Echo engin exposed routes.
func PrintRoutes(e *echo.Echo) {
	ignored := map[string]bool{
		"":   true,
		".":  true,
		"/*": true,
	}

	routes := e.Routes()
	sort.Slice(routes, func(i int, j int) bool {
		return routes[i].Path < routes[j].Path
	})

	fmt.Println("Routes:")
	for _, route := range routes {
		if ignored[route.Path] {
			continue
		}
		fmt.Printf("%6s %s\n", route.Method, route.Path)
	}
}
