// Package devserver runs the full API in-process on in-memory stores.
// It backs local demos and the end-to-end tests.
package devserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/Windi-Fikriyansyah/planmarket/internal/handlers"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository/memrepo"
	"github.com/Windi-Fikriyansyah/planmarket/internal/services/authtoken"
	"github.com/Windi-Fikriyansyah/planmarket/internal/services/mail"
	"github.com/Windi-Fikriyansyah/planmarket/internal/storage"
	"github.com/Windi-Fikriyansyah/planmarket/internal/utils"
)

type Options struct {
	// Addr to listen on; defaults to 127.0.0.1:0.
	Addr      string
	JWTSecret string
	// Now stamps contract requests; defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	Store  *memrepo.Store
	Images *storage.MemoryStore
	Mailer *mail.LogMailer
	Hub    *realtime.Hub

	app    *fiber.App
	ln     net.Listener
	cancel context.CancelFunc
	served chan struct{}
}

// Start listens and serves until Close.
func Start(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	if opts.JWTSecret == "" {
		opts.JWTSecret = "devserver-secret"
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", opts.Addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Store:  memrepo.New(),
		Mailer: &mail.LogMailer{},
		Hub:    realtime.NewHub(),
		ln:     ln,
		cancel: cancel,
		served: make(chan struct{}),
	}
	s.Images = storage.NewMemoryStore("http://" + ln.Addr().String() + "/blobs")
	go s.Hub.Run(ctx)

	auth := &handlers.AuthHandler{
		Users:           s.Store.Users(),
		Tokens:          authtoken.NewMemoryStore(time.Hour),
		Mailer:          s.Mailer,
		JWTSecret:       opts.JWTSecret,
		Expires:         60,
		FrontendBaseURL: "http://" + ln.Addr().String(),
	}
	router := &handlers.Router{
		Auth:      auth,
		Profile:   &handlers.ProfileHandler{Users: s.Store.Users()},
		Plans:     &handlers.PlanHandler{Plans: s.Store.Plans(), Images: s.Images, Pub: s.Hub},
		Contracts: &handlers.ContractHandler{Contracts: s.Store.Contracts(), Plans: s.Store.Plans(), Pub: s.Hub, Now: opts.Now},
		Chat:      &handlers.ChatHandler{Chats: s.Store.Chats(), Contracts: s.Store.Contracts(), Pub: s.Hub},
		Realtime: &handlers.RealtimeHandler{
			Session: &realtime.Session{
				Hub:     s.Hub,
				CanJoin: handlers.ChatRoomAuthorizer(s.Store.Contracts()),
			},
			JWTSecret: opts.JWTSecret,
			Ctx:       ctx,
		},
		JWTSecret: opts.JWTSecret,
	}

	s.app = fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler,
		BodyLimit:             8 << 20,
		DisableStartupMessage: true,
	})
	router.Register(s.app)

	go func() {
		defer close(s.served)
		if err := s.app.Listener(ln); err != nil {
			log.Errorf("[DevServer] serve: %v", err)
		}
	}()
	log.Infof("[DevServer] listening on %s", ln.Addr())
	return s, nil
}

// BaseURL is the http:// root of the API.
func (s *Server) BaseURL() string {
	return "http://" + s.ln.Addr().String()
}

// CreateAdvisor adds a sales advisor account. Advisors cannot sign up
// through the API.
func (s *Server) CreateAdvisor(ctx context.Context, email, password, fullName string) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Email: email, Password: hash, IsActive: true}
	p := &models.Profile{Role: models.RoleAdvisor, FullName: fullName}
	if err := s.Store.Users().CreateWithProfile(ctx, u, p); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Server) Close() error {
	err := s.app.ShutdownWithTimeout(5 * time.Second)
	s.cancel()
	<-s.served
	return err
}
