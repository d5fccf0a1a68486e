package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/amora/chat-backend/internal/auth"
	"github.com/amora/chat-backend/internal/chat"
	"github.com/amora/chat-backend/internal/db"
	"github.com/amora/chat-backend/internal/dispatch"
	"github.com/amora/chat-backend/internal/messaging"
	"github.com/amora/chat-backend/internal/moderation"
	"github.com/amora/chat-backend/internal/profile"
	"github.com/amora/chat-backend/internal/protocol"
	"github.com/amora/chat-backend/internal/push"
	"github.com/amora/chat-backend/internal/ratelimit"
	"github.com/amora/chat-backend/internal/registry"
	"github.com/amora/chat-backend/internal/relay"
	"github.com/amora/chat-backend/internal/room"
	"github.com/amora/chat-backend/internal/session"
	"github.com/amora/chat-backend/internal/ws"
)

const handlerTimeout = 5 * time.Second

func main() {
	config := ws.DefaultServerConfig()

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if v := os.Getenv("WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WorkerPoolSize = n
		}
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.MaxConnections = n
		}
	}
	if v := os.Getenv("READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.ReadTimeout = d
		}
	}
	if v := os.Getenv("WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WriteTimeout = d
		}
	}

	// --- Auth ---
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	verifier := auth.NewJWTVerifier(jwtSecret)

	// --- PostgreSQL ---
	dbConfig := db.DefaultConfig()
	if v := os.Getenv("DATABASE_URL"); v != "" {
		dbConfig.DSN = v
	}
	if v := os.Getenv("MIGRATIONS_PATH"); v != "" {
		dbConfig.MigrationsPath = v
	}
	pool, err := db.Open(dbConfig)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	chatStore := chat.NewStore(pool)
	profileStore := profile.NewStore(pool)

	// --- NATS ---
	natsConfig := messaging.DefaultNATSConfig()
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsConfig.URL = natsURL
	}
	natsClient, err := messaging.NewNATSClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// --- Redis ---
	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	serverName, _ := os.Hostname()
	if v := os.Getenv("SERVER_NAME"); v != "" {
		serverName = v
	}
	if serverName == "" {
		serverName = "chat-1"
	}

	sessionStore, err := session.NewStore(redisAddr, serverName)
	if err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	limiter := ratelimit.NewLimiter(sessionStore.Client())

	log.Printf("Amora chat server starting")
	log.Printf("  listen_addr:     %s", config.ListenAddr)
	log.Printf("  worker_pool:     %d", config.WorkerPoolSize)
	log.Printf("  max_connections: %d", config.MaxConnections)
	log.Printf("  read_timeout:    %s", config.ReadTimeout)
	log.Printf("  write_timeout:   %s", config.WriteTimeout)
	log.Printf("  nats_url:        %s", natsConfig.URL)
	log.Printf("  redis_addr:      %s", redisAddr)
	log.Printf("  server_name:     %s", serverName)

	reg := registry.New()
	dispatcher := ws.NewMessageDispatcher()

	server := ws.NewServer(config, verifier, reg, sessionStore, dispatcher.Dispatch)
	dispatcher.SetServer(server)
	server.SetLimiter(limiter)

	// The dispatcher decides live delivery vs push fallback per recipient.
	// Push jobs go to the worker over NATS.
	pushQueue := push.NewQueue(natsClient)
	deliverer := dispatch.New(reg, server, pushQueue)

	filter := moderation.NewFilter()
	rooms := room.NewManager(chatStore, reg, deliverer, server)
	msgRelay := relay.New(chatStore, profileStore, reg, deliverer, server, filter)

	// Auto-join every room the user participates in, so fan-out reaches the
	// fresh connection without per-room handshakes.
	server.SetOnConnect(func(conn *ws.Connection) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := rooms.AutoJoinOnConnect(ctx, conn.ID, conn.UserID); err != nil {
			log.Printf("auto-join conn=%s user=%s: %v", conn.ID, conn.UserID, err)
		}
	})

	// -----------------------------------------------------------------------
	// join_room
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeJoinRoom, func(conn *ws.Connection, msg interface{}) {
		joinMsg, ok := msg.(protocol.JoinRoomMsg)
		if !ok || joinMsg.RoomID == "" {
			dispatcher.SendError(conn, "invalid_request", "room_id is required")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if err := rooms.JoinRoom(ctx, conn.ID, conn.UserID, joinMsg.RoomID); err != nil {
			sendRoomError(dispatcher, conn, err)
		}
	})

	// -----------------------------------------------------------------------
	// leave_room
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeLeaveRoom, func(conn *ws.Connection, msg interface{}) {
		leaveMsg, ok := msg.(protocol.LeaveRoomMsg)
		if !ok || leaveMsg.RoomID == "" {
			dispatcher.SendError(conn, "invalid_request", "room_id is required")
			return
		}
		rooms.LeaveRoom(conn.ID, leaveMsg.RoomID)
	})

	// -----------------------------------------------------------------------
	// send_message
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeSendMessage, func(conn *ws.Connection, msg interface{}) {
		sendMsg, ok := msg.(protocol.SendMessageMsg)
		if !ok || sendMsg.RoomID == "" {
			dispatcher.SendError(conn, "invalid_request", "room_id is required")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if allowed, _ := limiter.Allow(ctx, conn.UserID, ratelimit.RuleMessage); !allowed {
			dispatcher.SendError(conn, "rate_limited", "too many messages, slow down")
			return
		}

		if err := msgRelay.Send(ctx, conn.ID, conn.UserID, sendMsg.RoomID, sendMsg.Content); err != nil {
			switch {
			case errors.Is(err, chat.ErrRoomNotFound):
				dispatcher.SendError(conn, "room_not_found", "room does not exist")
			case errors.Is(err, relay.ErrNotParticipant):
				dispatcher.SendError(conn, "not_participant", "you are not a member of this room")
			case errors.Is(err, relay.ErrBlockedContent):
				dispatcher.SendError(conn, "blocked_content", "message violates content policy")
			case errors.Is(err, chat.ErrContentEmpty), errors.Is(err, chat.ErrContentTooLong), errors.Is(err, chat.ErrContentInvalid):
				dispatcher.SendError(conn, "invalid_message", err.Error())
			default:
				log.Printf("send_message conn=%s room=%s: %v", conn.ID, sendMsg.RoomID, err)
				dispatcher.SendError(conn, "internal_error", "message could not be delivered")
			}
		}
	})

	// -----------------------------------------------------------------------
	// new_room
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeNewRoom, func(conn *ws.Connection, msg interface{}) {
		newRoomMsg, ok := msg.(protocol.NewRoomMsg)
		if !ok {
			dispatcher.SendError(conn, "invalid_request", "malformed new_room payload")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if allowed, _ := limiter.Allow(ctx, conn.UserID, ratelimit.RuleRoomCreate); !allowed {
			dispatcher.SendError(conn, "rate_limited", "too many rooms created, slow down")
			return
		}

		err := rooms.CreateOrReuseDirectRoom(ctx, conn.ID, conn.UserID,
			newRoomMsg.Participants, newRoomMsg.Kind, newRoomMsg.Category)
		if err != nil {
			switch {
			case errors.Is(err, room.ErrInvalidKind),
				errors.Is(err, room.ErrTooFewParticipants),
				errors.Is(err, room.ErrInitiatorNotInRoom):
				dispatcher.SendError(conn, "invalid_request", err.Error())
			default:
				log.Printf("new_room conn=%s: %v", conn.ID, err)
				dispatcher.SendError(conn, "internal_error", "room could not be created")
			}
		}
	})

	// -----------------------------------------------------------------------
	// mark_as_read
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeMarkAsRead, func(conn *ws.Connection, msg interface{}) {
		readMsg, ok := msg.(protocol.MarkAsReadMsg)
		if !ok || readMsg.RoomID == "" {
			dispatcher.SendError(conn, "invalid_request", "room_id is required")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()

		if err := rooms.MarkRoomRead(ctx, conn.UserID, readMsg.RoomID); err != nil {
			log.Printf("mark_as_read conn=%s room=%s: %v", conn.ID, readMsg.RoomID, err)
			dispatcher.SendError(conn, "internal_error", "could not mark messages as read")
		}
	})

	// -----------------------------------------------------------------------
	// typing
	// -----------------------------------------------------------------------
	dispatcher.Register(protocol.TypeTyping, func(conn *ws.Connection, msg interface{}) {
		typingMsg, ok := msg.(protocol.TypingMsg)
		if !ok || typingMsg.RoomID == "" {
			return
		}
		rooms.ForwardTyping(conn.ID, conn.UserID, typingMsg.RoomID)
	})

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		natsClient.Close()
		if err := sessionStore.Close(); err != nil {
			log.Printf("session store close error: %v", err)
		}
		if err := pool.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// sendRoomError maps room manager errors to protocol error codes.
func sendRoomError(dispatcher *ws.MessageDispatcher, conn *ws.Connection, err error) {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		dispatcher.SendError(conn, "room_not_found", "room does not exist")
	case errors.Is(err, room.ErrNotParticipant):
		dispatcher.SendError(conn, "not_participant", "you are not a member of this room")
	default:
		log.Printf("room operation conn=%s: %v", conn.ID, err)
		dispatcher.SendError(conn, "internal_error", "operation failed")
	}
}
