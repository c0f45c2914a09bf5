package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/emahelps/sms-hub/internal/config"
	"github.com/emahelps/sms-hub/internal/db"
	"github.com/emahelps/sms-hub/internal/feed"
	"github.com/emahelps/sms-hub/internal/kafka"
	"github.com/emahelps/sms-hub/internal/logger"
	"github.com/emahelps/sms-hub/internal/metrics"
	"github.com/emahelps/sms-hub/internal/provider"
	"github.com/emahelps/sms-hub/internal/repository"
	"github.com/emahelps/sms-hub/internal/service/linkage"
	"github.com/emahelps/sms-hub/internal/service/messaging"
	"github.com/emahelps/sms-hub/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var welcomeCmd = &cobra.Command{
	Use:   "welcome",
	Short: "Run the welcome-SMS worker",
	RunE:  runWelcome,
}

func runWelcome(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	if !cfg.Welcome.Enabled {
		return fmt.Errorf("welcome worker disabled in config")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	dbx, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	rds, err := db.NewRedisClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() { _ = rds.Close() }()

	convsRepo := repository.NewConversationsRepository(dbx)
	messagesRepo := repository.NewMessagesRepository(dbx)

	events := feed.NewRedisEvents(rds, cfg.Feed.Channel, logger.Log)

	prov := provider.NewTwilioProvider(
		cfg.Provider.BaseURL,
		cfg.Provider.AccountSID,
		cfg.Provider.AuthToken,
		cfg.Provider.From,
		cfg.Provider.TimeoutMs,
		cfg.Provider.Breaker.FailThreshold,
		cfg.Provider.Breaker.OpenForMs,
	)
	msgSvc := messaging.New(convsRepo, messagesRepo, nil, prov, events, logger.Log)

	topic := cfg.Kafka.WelcomeTopic
	if topic == "" {
		topic = linkage.WelcomeTopic
	}
	consumer := kafka.NewConsumer(cfg.Kafka, topic)
	defer consumer.Close()

	w := worker.NewWelcome(consumer, msgSvc, cfg.Welcome.OrgName, logger.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> welcome worker started topic=%s group=%s org=%s", topic, cfg.Kafka.GroupID, cfg.Welcome.OrgName)

	return w.Run(ctx)
}
