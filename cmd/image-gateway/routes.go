package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"

	"github.com/lgulliver/imagegate/internal/middleware"
)

func setupRouter(g *Gateway) *gin.Engine {
	router := gin.New()
	// /images and /def/x/ without their trailing part are not redirected
	router.RedirectTrailingSlash = false

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())

	landing := handleLanding()
	router.GET("/", landing)
	router.GET("/index.html", landing)

	router.GET("/health", handleHealth(g))
	router.GET("/stats", handleStats(g))

	image := handleImage(g)
	router.GET("/images/*path", image)
	router.HEAD("/images/*path", image)

	withDefault := handleImageWithDefault(g)
	router.GET("/def/:default", withDefault)
	router.HEAD("/def/:default", withDefault)
	router.GET("/def/:default/*path", withDefault)
	router.HEAD("/def/:default/*path", withDefault)

	router.NoRoute(handleInvalidRequest())

	return router
}

// newHandler wraps the router in CORS handling; preflights never reach gin
func newHandler(g *Gateway) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Cache-Control", "Content-Type", "Origin", "X-Requested-With", middleware.RequestIDHeader},
		ExposedHeaders: []string{imageSourceHeader, middleware.RequestIDHeader},
		MaxAge:         300,
	})(setupRouter(g))
}
