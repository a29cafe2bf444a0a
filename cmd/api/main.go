package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	v1 "go-deskline/cmd/api/router/v1"
	cacheAdapter "go-deskline/internal/infrastructure/cache/adapter"
	"go-deskline/internal/infrastructure/database"
	queueAdapter "go-deskline/internal/infrastructure/queue/adapter"
	"go-deskline/internal/infrastructure/realtime"
	"go-deskline/internal/pkg/conversation/application/task"
	repoAdapter "go-deskline/internal/pkg/conversation/persistence/repository/adapter"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// Connect to the database on startup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := database.NewPoolFromEnv(ctx)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer pool.Close()

	cache, err := cacheAdapter.NewRedisAdapter()
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	queueClient, err := queueAdapter.NewAsynqClientFromEnv()
	if err != nil {
		log.Fatalf("failed to create queue client: %v", err)
	}
	defer queueClient.Close()

	router := realtime.NewRouter()
	defer router.Close()

	attachmentDir := os.Getenv("ATTACHMENT_DIR")
	if attachmentDir == "" {
		attachmentDir = "./data/attachments"
	}
	attachmentBaseURL := os.Getenv("ATTACHMENT_BASE_URL")
	if attachmentBaseURL == "" {
		attachmentBaseURL = "/attachments"
	}
	attachments, err := repoAdapter.NewFsAttachmentStore(attachmentDir, attachmentBaseURL)
	if err != nil {
		log.Fatalf("failed to prepare attachment store: %v", err)
	}

	// Background worker consuming dispatched messages; runs in-process so a
	// single binary serves both HTTP and queue traffic.
	queueServer, err := queueAdapter.NewAsynqServer()
	if err != nil {
		log.Fatalf("failed to create queue server: %v", err)
	}
	task.RegisterDispatchMessageTask(queueServer, repoAdapter.NewPgMessageStore(pool), router)

	workerCtx, stopWorkers := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopWorkers()
	go func() {
		if err := queueServer.Run(workerCtx); err != nil {
			log.Printf("queue server stopped: %v", err)
		}
	}()

	r := gin.Default()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})

	// Serve uploaded attachments straight off disk
	r.Static(attachmentBaseURL, attachmentDir)

	v1.RegisterRoutes(r, pool, queueClient, cache, router, attachments)

	// Start HTTP server (blocks until shutdown)
	_ = r.Run()
}
