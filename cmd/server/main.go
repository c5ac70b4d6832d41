// Shopflow - repair shop work orders and customer email marketing
package main

import (
	"context"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"shopflow/internal/config"
	"shopflow/internal/domain"
	"shopflow/internal/domain/notifications"
	"shopflow/internal/health"
	"shopflow/internal/marketing"
	"shopflow/internal/realtime"
	"shopflow/internal/repository"
	"shopflow/internal/repository/sqlite"
	"shopflow/internal/server"
	"shopflow/internal/storage"
	"shopflow/internal/templates"
	"shopflow/internal/workshop"
)

const defaultAdminEmail = "admin@shopflow.local"

func main() {
	configPath := "config.json"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.ConfigureLogging()

	log.WithFields(log.Fields{"business": cfg.Business.Name, "debug": cfg.Debug}).Info("Starting")

	db, err := sqlite.New(cfg.GetDatabasePath())
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}
	log.Info("Database initialized")

	repos := sqlite.NewRepositories(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := createDefaultAdmin(ctx, repos); err != nil {
		log.WithError(err).Warn("Could not create default admin")
	}

	hub := realtime.NewHub()
	defer hub.Close()
	if cfg.Realtime.MQTTBroker != "" {
		bridge, err := realtime.NewMQTTBridge(realtime.MQTTConfig{
			Broker:      cfg.Realtime.MQTTBroker,
			ClientID:    cfg.Realtime.MQTTClientID,
			TopicPrefix: cfg.Realtime.MQTTTopicPrefix,
		})
		if err != nil {
			log.WithError(err).Warn("MQTT bridge disabled")
		} else {
			hub.AddBridge(bridge)
			defer bridge.Close()
		}
	}

	files, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.PublicPrefix)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize attachment storage")
	}

	notifier := newNotifier(cfg)

	workshopSvc := workshop.New(repos, workshop.Options{
		RejectUnknownEnums: cfg.RejectUnknownEnums(),
		PartsPolicy:        cfg.Parts(),
		Publisher:          hub,
		Files:              files,
	})
	marketingSvc := marketing.New(repos, notifier, templates.NewManager(), marketing.Options{
		ShopName: cfg.Business.Name,
	})

	scheduler := marketing.NewScheduler(marketingSvc)
	if err := scheduler.Start(ctx); err != nil {
		log.WithError(err).Error("Failed to start email sequence scheduler")
	}
	defer scheduler.Stop()

	monitor := health.NewMonitor(time.Duration(cfg.Health.IntervalSeconds) * time.Second)
	monitor.Register("database", db.PingContext)
	monitor.Register("email", notifier.Check)
	monitor.Start(ctx)
	defer monitor.Stop()

	srv := server.New(cfg, server.Deps{
		Repos:     repos,
		Workshop:  workshopSvc,
		Marketing: marketingSvc,
		Hub:       hub,
		Monitor:   monitor,
		Files:     http.FileServer(http.Dir(files.Root())),
	})

	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("Server error")
	}
}

// newNotifier picks the configured provider. The log provider is the fallback.
func newNotifier(cfg *config.Config) *notifications.CompositeNotifier {
	fallback := &notifications.LogEmailProvider{}
	if cfg.Email.Provider == "smtp" {
		primary := notifications.NewSMTPProvider(notifications.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
		})
		return notifications.NewCompositeNotifier(primary, fallback, cfg.Email.From)
	}
	return notifications.NewCompositeNotifier(fallback, nil, cfg.Email.From)
}

// createDefaultAdmin creates a default admin user if no users exist
func createDefaultAdmin(ctx context.Context, repos *repository.Repositories) error {
	count, err := repos.Users.Count(ctx, "")
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}
	hash, err := sqlite.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &domain.User{
		Email:        defaultAdminEmail,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         domain.RoleAdmin,
	}
	if err := repos.Users.Create(ctx, admin); err != nil {
		return err
	}
	log.WithField("email", defaultAdminEmail).Warn("Default admin user created, change its password")

	if os.Getenv("SEED_DATA") == "true" {
		createSampleData(ctx, repos)
	}
	return nil
}

// createSampleData adds a customer and common presets for local testing
func createSampleData(ctx context.Context, repos *repository.Repositories) {
	customer := &domain.Customer{FirstName: "Sample", LastName: "Customer", Email: "sample@example.com"}
	if err := repos.Customers.Create(ctx, customer); err != nil {
		log.WithError(err).Warn("Failed to create sample customer")
	}

	presets := []struct {
		kind     domain.PresetKind
		name     string
		category string
	}{
		{domain.PresetMaintenanceType, "Oil Change", "Engine"},
		{domain.PresetMaintenanceType, "Brake Service", "Brakes"},
		{domain.PresetMaintenanceItem, "Oil Filter", "Filters"},
		{domain.PresetMaintenanceItem, "Brake Pads", "Brakes"},
	}
	for _, p := range presets {
		if err := repos.Presets.Create(ctx, &domain.Preset{Kind: p.kind, Name: p.name, Category: p.category}); err != nil {
			log.WithError(err).WithField("name", p.name).Warn("Failed to create sample preset")
		}
	}
	log.Info("Sample data created")
}
