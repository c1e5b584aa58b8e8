package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	flog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"

	"github.com/Windi-Fikriyansyah/planmarket/internal/config"
	"github.com/Windi-Fikriyansyah/planmarket/internal/db"
	"github.com/Windi-Fikriyansyah/planmarket/internal/handlers"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository"
	"github.com/Windi-Fikriyansyah/planmarket/internal/services/authtoken"
	"github.com/Windi-Fikriyansyah/planmarket/internal/services/mail"
	"github.com/Windi-Fikriyansyah/planmarket/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis not reachable: ", err)
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	relay := realtime.NewRedisRelay(rdb, hub)
	go func() {
		if err := relay.Run(ctx); err != nil {
			flog.Errorf("[Realtime] relay stopped: %v", err)
		}
	}()

	images, err := storage.NewS3Store(ctx, cfg.S3, cfg.IsProd())
	if err != nil {
		log.Fatal(err)
	}

	users := repository.NewUserRepository(gdb)
	plans := repository.NewPlanRepository(gdb)
	contracts := repository.NewContractRepository(gdb)
	chats := repository.NewChatRepository(gdb)

	authH := &handlers.AuthHandler{
		Users:  users,
		Tokens: authtoken.NewRedisStore(rdb, time.Duration(cfg.TokenTTLMin)*time.Minute),
		Mailer: mail.New(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Sender:   cfg.SMTPSender,
		}),
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		FrontendBaseURL: cfg.FrontendBaseURL,
		SecureCookie:    cfg.IsProd(),
	}

	router := &handlers.Router{
		Auth: authH,
		Google: &handlers.GoogleOAuthHandler{
			Auth:            authH,
			GoogleClientID:  cfg.GoogleClientID,
			GoogleSecret:    cfg.GoogleSecret,
			GoogleRedirect:  cfg.GoogleRedirect,
			FrontendBaseURL: cfg.FrontendBaseURL,
		},
		Profile:   &handlers.ProfileHandler{Users: users},
		Plans:     &handlers.PlanHandler{Plans: plans, Images: images, Pub: relay},
		Contracts: &handlers.ContractHandler{Contracts: contracts, Plans: plans, Pub: relay},
		Chat:      &handlers.ChatHandler{Chats: chats, Contracts: contracts, Pub: relay},
		Realtime: &handlers.RealtimeHandler{
			Session: &realtime.Session{
				Hub:       hub,
				Publisher: relay,
				CanJoin:   handlers.ChatRoomAuthorizer(contracts),
			},
			JWTSecret: cfg.JWTSecret,
			Ctx:       ctx,
		},
		JWTSecret: cfg.JWTSecret,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    8 << 20,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	router.Register(app)

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal(err)
	}
}
