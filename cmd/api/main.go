package main

import (
	"context"
	"log"
	"net/http"

	"omrflow/internal/api"
	"omrflow/internal/app"
	"omrflow/internal/config"
	"omrflow/internal/sink"
	"omrflow/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Fatal(err)
	}
	db, err := app.OpenDB(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	var results api.Results = api.JSONLResults{J: sink.NewJSONL(cfg.ResultsDir)}
	if db != nil {
		defer db.Close()
		results = storage.NewResultRepo(db)
	}
	history, err := app.HistoryReader(cfg, db)
	if err != nil {
		log.Fatal(err)
	}

	h := api.NewServer(profile, cfg.PassingPercent, results, history)
	log.Printf("omr api listening on %s results=%T history=%s", cfg.APIAddr, results, cfg.HistoryBackend)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
