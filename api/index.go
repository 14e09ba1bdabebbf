package handler

import (
	"net/http"

	"github.com/arnavshah/screening-planner/internal/app"
	"github.com/arnavshah/screening-planner/internal/config"
	"github.com/arnavshah/screening-planner/internal/logging"
	"github.com/gin-gonic/gin"
)

var r http.Handler

func init() {
	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		panic(err)
	}

	a, err := app.New(cfg, log)
	if err != nil {
		panic(err)
	}
	if err := a.EnsureAdmin(); err != nil {
		panic(err)
	}
	engine, err := a.Router()
	if err != nil {
		panic(err)
	}
	r = engine
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
