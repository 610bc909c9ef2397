package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gestly/gestly/internal/app/domain/billing"
	"github.com/gestly/gestly/internal/app/events"
	"github.com/gestly/gestly/internal/app/jobs"
	"github.com/gestly/gestly/internal/app/services/apikeys"
	"github.com/gestly/gestly/internal/app/services/appointments"
	"github.com/gestly/gestly/internal/app/services/attendants"
	"github.com/gestly/gestly/internal/app/services/availability"
	billingsvc "github.com/gestly/gestly/internal/app/services/billing"
	"github.com/gestly/gestly/internal/app/services/businesses"
	"github.com/gestly/gestly/internal/app/services/campaigns"
	"github.com/gestly/gestly/internal/app/services/catalog"
	"github.com/gestly/gestly/internal/app/services/customers"
	"github.com/gestly/gestly/internal/app/services/integrations"
	"github.com/gestly/gestly/internal/app/services/loyalty"
	"github.com/gestly/gestly/internal/app/services/reminders"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/internal/app/storage/memory"
	"github.com/gestly/gestly/internal/app/system"
	"github.com/gestly/gestly/internal/httputil"
	"github.com/gestly/gestly/pkg/logger"
)

// Options tunes the composed application. Zero values pick defaults.
type Options struct {
	Plans               billing.Catalog
	WebhookMasterSecret string
	StripeWebhookSecret string
	StripeTolerance     time.Duration
	IntegrationTimeout  time.Duration
	// GatewaySendRate paces messages per gateway; zero disables pacing.
	GatewaySendRate  float64
	GatewaySendBurst int
	ReminderLead        time.Duration
	ReminderSchedule    string
	CampaignSchedule    string
	// DisableJobs skips registering the cron scheduler.
	DisableJobs bool
	// Poster overrides the outbound HTTP client, mainly for tests.
	Poster integrations.Poster
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Events       *events.Hub
	Jobs         *jobs.Scheduler
	Businesses   *businesses.Service
	Customers    *customers.Service
	Catalog      *catalog.Service
	Attendants   *attendants.Service
	Availability *availability.Service
	Appointments *appointments.Service
	Loyalty      *loyalty.Service
	Campaigns    *campaigns.Service
	Reminders    *reminders.Service
	Integrations *integrations.Service
	APIKeys      *apikeys.Service
	Billing      *billingsvc.Service
}

// New builds a fully initialised application. A nil store defaults to the
// in-memory implementation.
func New(store storage.All, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if store == nil {
		store = memory.New()
	}
	if len(opts.Plans) == 0 {
		opts.Plans = billing.DefaultPlans()
	}
	if opts.WebhookMasterSecret == "" {
		log.Warn("webhook master secret not set; outbound webhooks will be rejected")
	}
	if opts.StripeWebhookSecret == "" {
		log.Warn("stripe webhook secret not set; billing webhooks will be rejected")
	}

	hub := events.NewHub(512, log.Component("events"))

	poster := opts.Poster
	if poster == nil {
		poster = httputil.NewClient(httputil.Config{Timeout: opts.IntegrationTimeout})
	}

	bizService := businesses.New(store, store, opts.Plans, log.Component("businesses"))
	custService := customers.New(store, log.Component("customers"))
	catService := catalog.New(store, log.Component("catalog"))
	attService := attendants.New(store, store, bizService, log.Component("attendants"))
	availService := availability.New(bizService, store, store, store, log.Component("availability"))
	loyaltyService := loyalty.New(bizService, store, store, store, log.Component("loyalty"))
	integrationService := integrations.New(store, opts.WebhookMasterSecret, poster, log.Component("integrations")).
		WithSendRate(opts.GatewaySendRate, opts.GatewaySendBurst)
	apptService := appointments.New(appointments.Deps{
		Store:       store,
		Catalog:     store,
		Businesses:  bizService,
		Customers:   custService,
		Slots:       availService,
		Loyalty:     loyaltyService,
		Commissions: attService,
		Publisher:   hub,
	}, log.Component("appointments"))
	campaignService := campaigns.New(store, store, bizService, integrationService, hub, log.Component("campaigns"))
	reminderService := reminders.New(store, store, store, store, integrationService, opts.ReminderLead, log.Component("reminders"))
	keyService := apikeys.New(store, bizService, log.Component("apikeys"))
	billingService := billingsvc.New(bizService, opts.StripeWebhookSecret, opts.StripeTolerance, log.Component("billing"))

	hub.AddSink(integrationService)

	manager := system.NewManager(log.Component("system"))
	var scheduler *jobs.Scheduler
	if !opts.DisableJobs {
		scheduler = jobs.NewScheduler(0, log.Component("jobs"))
		reminderSchedule := opts.ReminderSchedule
		if reminderSchedule == "" {
			reminderSchedule = "@every 5m"
		}
		campaignSchedule := opts.CampaignSchedule
		if campaignSchedule == "" {
			campaignSchedule = "@every 1m"
		}
		for _, job := range []jobs.Job{
			{Name: "reminders", Schedule: reminderSchedule, Run: reminderService.RunOnce},
			{Name: "campaigns", Schedule: campaignSchedule, Run: campaignService.RunOnce},
		} {
			if err := scheduler.Add(job); err != nil {
				return nil, err
			}
		}
		if err := manager.Register(scheduler); err != nil {
			return nil, fmt.Errorf("register %s: %w", scheduler.Name(), err)
		}
	}

	return &Application{
		manager:      manager,
		log:          log,
		Events:       hub,
		Jobs:         scheduler,
		Businesses:   bizService,
		Customers:    custService,
		Catalog:      catService,
		Attendants:   attService,
		Availability: availService,
		Appointments: apptService,
		Loyalty:      loyaltyService,
		Campaigns:    campaignService,
		Reminders:    reminderService,
		Integrations: integrationService,
		APIKeys:      keyService,
		Billing:      billingService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services and waits for in-flight event deliveries.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	done := make(chan struct{})
	go func() {
		a.Events.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, fmt.Errorf("waiting for event deliveries: %w", ctx.Err()))
	}
	return err
}
