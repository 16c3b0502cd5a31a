package main

import (
	"context"
	"log"
	"net/http"

	"docqa/internal/config"
	"docqa/internal/db"
	"docqa/internal/embedding"
	apphttp "docqa/internal/http"
	"docqa/internal/logger"
	"docqa/internal/rag"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Setup(cfg.EnableLogging)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	repo := rag.NewPgRepository(pool)

	geminiClient, err := embedding.NewGeminiClient(ctx)
	if err != nil {
		log.Fatalf("failed to init embeddings client: %v", err)
	}

	service, err := rag.NewService(cfg, repo, geminiClient, rag.NewReranker(cfg))
	if err != nil {
		log.Fatalf("failed to init rag service: %v", err)
	}

	h := apphttp.NewHandler(service)
	router := apphttp.NewRouter(h)
	handler := corsMiddleware(router)

	addr := ":" + cfg.Port
	log.Printf("API listening on %s (provider=%s)", addr, cfg.Provider)
	log.Fatal(http.ListenAndServe(addr, handler))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin == "http://localhost:3000" || origin == "http://127.0.0.1:3000" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
