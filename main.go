package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/wprdc/asset-registry/internal/assets"
	"github.com/wprdc/asset-registry/internal/auth"
	"github.com/wprdc/asset-registry/internal/carto"
	"github.com/wprdc/asset-registry/internal/config"
	"github.com/wprdc/asset-registry/internal/db"
	"github.com/wprdc/asset-registry/internal/geocoding"
	"github.com/wprdc/asset-registry/internal/merge"
	"github.com/wprdc/asset-registry/internal/metrics"
	"github.com/wprdc/asset-registry/internal/middleware"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	response := "Server is up!"
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, response)
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	db.Connect()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}

	auth.Init()
	assets.Init()
	carto.Init(cfg.Carto)

	geocoder := geocoding.NewClient(cfg.Geocoding)
	runner := &merge.Runner{Store: merge.NewStore(geocoder)}

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)
	r.Get("/", RootHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/auth", auth.SetupRoutes())
	r.Mount("/api", assets.SetupRoutes())
	r.Mount("/assets/upload", merge.SetupRoutes(runner, cfg.Upload))

	fmt.Println("Server listening on port :" + port + "...")

	http.ListenAndServe("0.0.0.0:"+port, r)
}
