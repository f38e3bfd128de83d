package boot

import (
	"context"
	"fmt"
	"log"
	"ticketing/src/common"
	"ticketing/src/config"
	"ticketing/src/db"
	awslib "ticketing/src/lib/aws"
	"ticketing/src/lib/gateway"
	"ticketing/src/lib/locks"
	"ticketing/src/lib/mailer"
	"ticketing/src/lib/storage"
	"ticketing/src/lib/tickets"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// App holds everything the HTTP layer and background jobs need.
type App struct {
	Config    *config.Config
	DB        *gorm.DB
	Gateway   gateway.Client
	Store     *common.BookingStore
	Confirmer *common.Confirmer
	// Linker is set when tickets live in S3.
	Linker storage.Linker
}

func InitDb(cfg *config.Config) (*gorm.DB, error) {
	_db, err := db.Open(cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(_db); err != nil {
		log.Printf("error migration: %s\n", err.Error())
		return nil, err
	}
	return _db, nil
}

// InitApp wires the confirmation pipeline from cfg on top of an open database.
func InitApp(ctx context.Context, cfg *config.Config, _db *gorm.DB) (*App, error) {
	client, verifier, err := gateway.New(cfg.Gateway, cfg.Timeouts.Gateway)
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awslib.LoadConfig(ctx)
		if err != nil {
			return aws.Config{}, err
		}
		awsCfg = &c
		return c, nil
	}

	app := &App{Config: cfg, DB: _db, Gateway: client}

	objects, err := initStorage(cfg.Storage, loadAWS)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if linker, ok := objects.(storage.Linker); ok {
		app.Linker = linker
	}
	renderer, err := tickets.NewRenderer(storage.WithTimeout(objects, cfg.Timeouts.Storage), cfg.Tickets.QRSecret)
	if err != nil {
		return nil, fmt.Errorf("tickets: %w", err)
	}

	locker, err := initLocker(cfg.Locks)
	if err != nil {
		return nil, fmt.Errorf("locks: %w", err)
	}

	transport, err := initTransport(cfg.Mail, cfg.Timeouts.Mail, loadAWS)
	if err != nil {
		return nil, fmt.Errorf("mail: %w", err)
	}

	var publisher common.Publisher
	if cfg.BookingsQueue != "" {
		c, err := loadAWS()
		if err != nil {
			return nil, fmt.Errorf("queue: %w", err)
		}
		publisher = awslib.NewSQSPublisher(c, cfg.BookingsQueue)
	}

	catalog := common.NewEventCatalog(_db, cfg.Timeouts.DB)
	app.Store = common.NewBookingStore(_db, locker, catalog, cfg.Timeouts.DB)
	app.Confirmer, err = common.NewConfirmer(common.ConfirmerDeps{
		Store:            app.Store,
		Catalog:          catalog,
		Verifier:         verifier,
		Renderer:         renderer,
		Notifier:         mailer.New(transport, cfg.Mail.RetryAttempts, cfg.Timeouts.Mail),
		Gateway:          client,
		CheckOrderAmount: cfg.Gateway.VerifyOrderAmount,
		Publisher:        publisher,
		PublishTimeout:   cfg.Timeouts.Queue,
		Currency:         cfg.Gateway.Currency,
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

func initStorage(cfg config.Storage, loadAWS func() (aws.Config, error)) (storage.ObjectStore, error) {
	switch cfg.Driver {
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("S3_TICKETS_BUCKET is required for the s3 driver")
		}
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return storage.NewS3Store(awslib.NewS3Bucket(c, cfg.Bucket)), nil
	case "local", "":
		return storage.NewLocalStore(cfg.TempDir)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func initLocker(cfg config.Locks) (locks.Locker, error) {
	switch cfg.Driver {
	case "redis":
		rdb, err := locks.NewRedisClient(cfg.RedisHost)
		if err != nil {
			return nil, err
		}
		return locks.NewRedisLocker(rdb, cfg.TTL), nil
	case "memory", "":
		return locks.NewKeyedMutex(), nil
	}
	return nil, fmt.Errorf("unknown lock driver %q", cfg.Driver)
}

func initTransport(cfg config.Mail, timeout time.Duration, loadAWS func() (aws.Config, error)) (mailer.Transport, error) {
	switch cfg.Driver {
	case "ses":
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return mailer.NewSESTransport(awslib.NewSESClient(c), cfg), nil
	case "smtp", "sendgrid", "":
		return mailer.NewSMTPTransport(cfg, timeout)
	}
	return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
}

// InitScheduler starts the job that re-drives ticket deliveries that did not complete.
func InitScheduler(app *App) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("Error initializing Scheduler: %s\n", err.Error())
		return nil, err
	}
	d := app.Config.Delivery
	j, err := sched.NewJob(
		gocron.DurationJob(d.Interval),
		gocron.NewTask(func() {
			// leave bookings alone while their first attempt may still be running
			cutoff := time.Now().Add(-d.Interval / 2)
			if _, err := app.Confirmer.Redeliver(context.Background(), cutoff, d.MaxAttempts, d.BatchSize); err != nil {
				log.Printf("[Redeliver] Sweep failed: %s\n", err.Error())
			}
		}),
		gocron.WithName("ticket-redelivery"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Printf("Error running job: %s\n", err.Error())
		return nil, err
	}
	log.Printf("Job ID: %s %s\n", j.Name(), j.ID().String())
	sched.Start()
	return sched, nil
}
