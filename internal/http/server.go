package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/emahelps/sms-hub/internal/config"
	"github.com/emahelps/sms-hub/internal/feed"
	"github.com/emahelps/sms-hub/internal/http/middleware"
	"github.com/emahelps/sms-hub/internal/logger"
	"github.com/emahelps/sms-hub/internal/metrics"
	"github.com/emahelps/sms-hub/internal/provider"
	"github.com/emahelps/sms-hub/internal/repository"
	"github.com/emahelps/sms-hub/internal/service/linkage"
	"github.com/emahelps/sms-hub/internal/service/messaging"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Server struct{ e *echo.Echo }

// NewServer wires repositories, services and routes. clickhouseDB may
// be nil (archive disabled, degraded not fatal).
func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	convsRepo := repository.NewConversationsRepository(mysqlDB)
	messagesRepo := repository.NewMessagesRepository(mysqlDB)
	regsRepo := repository.NewRegistrationsRepository(mysqlDB)
	volsRepo := repository.NewVolunteersRepository(mysqlDB)
	asgsRepo := repository.NewAssignmentsRepository(mysqlDB)
	contactsRepo := repository.NewContactsRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)

	// repos (ClickHouse)
	var archiveRepo repository.ArchiveRepository
	if clickhouseDB != nil {
		archiveRepo = repository.NewArchiveRepository(clickhouseDB)
	}

	// change feed
	events := feed.NewRedisEvents(rds, cfg.Feed.Channel, logger.Log)
	liveFeed := feed.New(convsRepo, messagesRepo, events, logger.Log)

	// provider
	prov := provider.NewTwilioProvider(
		cfg.Provider.BaseURL,
		cfg.Provider.AccountSID,
		cfg.Provider.AuthToken,
		cfg.Provider.From,
		cfg.Provider.TimeoutMs,
		cfg.Provider.Breaker.FailThreshold,
		cfg.Provider.Breaker.OpenForMs,
	)

	// services
	var archive messaging.Archive
	if archiveRepo != nil {
		archive = archiveRepo
	}
	msgSvc := messaging.New(convsRepo, messagesRepo, archive, prov, events, logger.Log)
	linkSvc := linkage.New(mysqlDB, regsRepo, volsRepo, asgsRepo, convsRepo, contactsRepo, outboxRepo, events, logger.Log)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// provider webhooks: unauthenticated by design, the provider signs
	// requests at the transport level and every payload gets a 200
	e.POST("/webhooks/sms", inboundSMSHandler(msgSvc))

	// admin API
	authMW := middleware.AdminKeyMiddleware(cfg.Admin.APIKey)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:admin:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	v1 := e.Group("/v1", authMW, rlMW)

	v1.POST("/sms/send", sendSMSHandler(msgSvc))

	v1.GET("/conversations", listConversationsHandler(convsRepo))
	v1.GET("/conversations/stream", streamConversationsHandler(liveFeed))
	v1.GET("/conversations/:phone", getConversationHandler(convsRepo))
	v1.GET("/conversations/:phone/messages", listConversationMessagesHandler(messagesRepo))
	v1.GET("/conversations/:phone/messages/stream", streamConversationMessagesHandler(liveFeed))
	v1.POST("/conversations/:phone/read", markReadHandler(msgSvc))

	v1.POST("/registrations", createRegistrationHandler(linkSvc))
	v1.GET("/registrations/:id", getRegistrationHandler(regsRepo))
	v1.POST("/volunteers", createVolunteerHandler(linkSvc))
	v1.GET("/volunteers/:id", getVolunteerHandler(volsRepo))
	v1.POST("/contacts", createContactHandler(linkSvc))

	v1.POST("/matches", createMatchHandler(linkSvc))
	v1.DELETE("/matches", deleteMatchHandler(linkSvc))

	if archiveRepo != nil {
		v1.GET("/reports/messages", listArchivedMessagesHandler(archiveRepo))
	}

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
