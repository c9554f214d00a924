package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"

	"github.com/BalmDeveloper/balm-health-app-sub001/internal/auth"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/community"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/config"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/db"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/docstore"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/handlers"
	"github.com/BalmDeveloper/balm-health-app-sub001/internal/log"
)

func main() {
	cfg := config.Load()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Error.Fatal(err)
	}

	dbc, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error.Fatal(err)
	}
	defer dbc.Close()

	if err := db.Migrate(dbc); err != nil {
		log.Error.Fatal(err)
	}

	var store docstore.Store
	switch cfg.Docstore {
	case "memory":
		store = docstore.NewMemory()
	case "sqlite":
		store, err = docstore.NewSQLite(dbc)
		if err != nil {
			log.Error.Fatal(err)
		}
	case "mongo":
		store, err = docstore.NewMongo(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Error.Fatal(err)
		}
	default:
		log.Error.Fatalf("unknown docstore backend %q", cfg.Docstore)
	}
	log.Info.Printf("document store: %s", cfg.Docstore)

	var ledger community.Ledger
	if cfg.RedisAddr != "" {
		ledger, err = community.NewRedisLedger(cfg.RedisAddr)
		if err != nil {
			log.Error.Fatal(err)
		}
		log.Info.Printf("vote ledger: redis at %s", cfg.RedisAddr)
	} else {
		ledger = community.NewMemoryLedger()
		log.Info.Println("vote ledger: in-memory (votes reset on restart)")
	}

	engine := community.New(store, ledger)
	sessions := auth.NewManager(dbc, cfg.SessionTTL, cfg.CookieSecure)

	h := handlers.New(dbc, sessions, engine)
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handlers.WithRecover(handlers.WithRequestLog(router)),
	}
	log.Info.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil {
		log.Error.Fatal(err)
	}
}
