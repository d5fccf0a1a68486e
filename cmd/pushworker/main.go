package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amora/chat-backend/internal/db"
	"github.com/amora/chat-backend/internal/messaging"
	"github.com/amora/chat-backend/internal/profile"
	"github.com/amora/chat-backend/internal/push"
)

func main() {
	log.Println("Starting Amora push worker...")

	// PostgreSQL setup. The worker only reads device tokens, so it runs no
	// migrations and keeps a small pool.
	dbConfig := db.DefaultConfig()
	dbConfig.MigrationsPath = ""
	dbConfig.MaxOpenConns = 5
	if v := os.Getenv("DATABASE_URL"); v != "" {
		dbConfig.DSN = v
	}
	pool, err := db.Open(dbConfig)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	// FCM setup.
	fcmConfig := push.DefaultFCMConfig()
	fcmConfig.ServerKey = os.Getenv("FCM_SERVER_KEY")
	if fcmConfig.ServerKey == "" {
		log.Fatal("FCM_SERVER_KEY must be set")
	}
	if v := os.Getenv("FCM_ENDPOINT"); v != "" {
		fcmConfig.Endpoint = v
	}

	sender := push.NewFCMSender(fcmConfig, profile.NewStore(pool))

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		natsConfig.URL = v
	}
	natsConfig.Name = "amora-pushworker"

	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Consume queued push jobs. The queue group spreads jobs across worker
	// instances so each notification is sent once.
	err = natsClient.SubscribePushJobs(func(data []byte) {
		var job push.Job
		if err := json.Unmarshal(data, &job); err != nil {
			log.Printf("[worker] failed to unmarshal job: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if !sender.Send(ctx, job.UserID, job.Notification) {
			// Failures are terminal: the sender already logged the cause, and
			// the recipient will catch up from the store on next connect.
			log.Printf("[worker] dropped notification for user=%s", job.UserID)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to push jobs: %v", err)
	}

	log.Printf("Amora push worker running")
	log.Printf("  nats_url: %s", natsConfig.URL)
	log.Printf("  fcm:      %s", fcmConfig)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
	pool.Close()
}
