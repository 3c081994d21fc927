/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the wallet ledger engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env / parse command-line flags
  2. Initialize the document store backend
  3. Initialize the media uploader
  4. Create API handler with dependencies
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -store   Document store backend: memory, sqlite, dynamo (default: sqlite)
  -db      SQLite database path (default: finvault.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  JWT_SECRET                 Session token signing secret (required)
  CLOUDINARY_URL             Unsigned upload endpoint; enables cloud uploads
  CLOUDINARY_UPLOAD_PRESET   Upload preset for the cloud endpoint
  UPLOAD_DIR                 Local uploads directory (default: ./uploads)
  BASE_URL                   Public base URL for local uploads
  AWS_REGION                 Region for the dynamo backend
  DYNAMO_TABLE               Table name for the dynamo backend
  DYNAMO_ENDPOINT            Override endpoint (DynamoDB Local)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finvault/wallet-engine/api"
	"github.com/finvault/wallet-engine/auth"
	"github.com/finvault/wallet-engine/docstore"
	memstore "github.com/finvault/wallet-engine/docstore/store"
	"github.com/finvault/wallet-engine/media"
	"github.com/finvault/wallet-engine/store/dynamo"
	"github.com/finvault/wallet-engine/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system environment")
	}

	port := flag.Int("port", 8080, "HTTP server port")
	backend := flag.String("store", "sqlite", "document store backend: memory, sqlite, dynamo")
	dbPath := flag.String("db", "finvault.db", "SQLite database path")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	store, closeStore, err := openStore(*backend, *dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	issuer := auth.NewIssuer([]byte(secret), 24*time.Hour)
	handler := api.NewHandler(store, newUploader(), issuer)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d (store: %s)", *port, *backend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func openStore(backend, dbPath string) (docstore.Store, func(), error) {
	switch backend {
	case "memory":
		return memstore.NewMemory(), func() {}, nil
	case "sqlite":
		s, err := sqlite.New(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "dynamo":
		table := os.Getenv("DYNAMO_TABLE")
		if table == "" {
			return nil, nil, fmt.Errorf("DYNAMO_TABLE environment variable is not set")
		}
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
		s, err := dynamo.New(context.Background(), dynamo.Config{
			Region:    region,
			TableName: table,
			Endpoint:  os.Getenv("DYNAMO_ENDPOINT"),
		})
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func newUploader() media.Uploader {
	endpoint := os.Getenv("CLOUDINARY_URL")
	preset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	if endpoint != "" && preset != "" {
		return media.NewCloud(endpoint, preset)
	}

	dir := os.Getenv("UPLOAD_DIR")
	if dir == "" {
		dir = "./uploads"
	}
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return media.NewLocal(dir, baseURL)
}
