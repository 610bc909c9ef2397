// Package reminders notifies customers about upcoming appointments.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gestly/gestly/internal/app/domain/appointment"
	"github.com/gestly/gestly/internal/app/domain/business"
	"github.com/gestly/gestly/internal/app/domain/campaign"
	"github.com/gestly/gestly/internal/app/domain/customer"
	"github.com/gestly/gestly/internal/app/domain/integration"
	"github.com/gestly/gestly/internal/app/storage"
	"github.com/gestly/gestly/pkg/logger"
)

// DefaultLead is how far ahead reminders go out.
const DefaultLead = 24 * time.Hour

// Messaging finds a gateway and sends through it.
type Messaging interface {
	Messenger(ctx context.Context, businessID, channel string) (integration.Integration, error)
	Send(ctx context.Context, i integration.Integration, msg integration.Message) (integration.Delivery, error)
}

// Service sends appointment reminders.
type Service struct {
	appointments storage.AppointmentStore
	customers    storage.CustomerStore
	catalog      storage.CatalogStore
	businesses   storage.BusinessStore
	messaging    Messaging
	lead         time.Duration
	log          *logger.Logger
	now          func() time.Time
}

// New constructs the reminder service.
func New(appointments storage.AppointmentStore, customers storage.CustomerStore, catalog storage.CatalogStore, businesses storage.BusinessStore, messaging Messaging, lead time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("reminders")
	}
	if lead <= 0 {
		lead = DefaultLead
	}
	return &Service{
		appointments: appointments,
		customers:    customers,
		catalog:      catalog,
		businesses:   businesses,
		messaging:    messaging,
		lead:         lead,
		log:          log,
		now:          time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// errSkip marks appointments that cannot be reminded yet.
var errSkip = errors.New("reminder skipped")

// RunOnce reminds every pending appointment starting within the lead time
// and returns how many reminders were sent.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	pending, err := s.appointments.ListPendingReminders(ctx, now, now.Add(s.lead))
	if err != nil {
		return 0, fmt.Errorf("list pending reminders: %w", err)
	}
	sent := 0
	for _, appt := range pending {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		err := s.remind(ctx, appt, now)
		switch {
		case err == nil:
			sent++
		case errors.Is(err, errSkip):
			s.log.WithField("appointment_id", appt.ID).Debug(err.Error())
		default:
			s.log.WithError(err).WithField("appointment_id", appt.ID).Warn("send reminder")
		}
	}
	return sent, nil
}

func channelFor(gw integration.Integration, c customer.Customer) campaign.Channel {
	if ch := campaign.Channel(gw.Config[integration.ConfigChannel]); ch.Valid() {
		return ch
	}
	if c.Phone != "" {
		return campaign.ChannelSMS
	}
	return campaign.ChannelEmail
}

// Message builds the reminder text in the business's timezone.
func Message(b business.Business, c customer.Customer, serviceName string, appt appointment.Appointment) (subject, body string) {
	loc, err := b.Location()
	if err != nil {
		loc = time.UTC
	}
	start := appt.StartAt.In(loc)
	subject = fmt.Sprintf("Reminder: %s at %s", serviceName, b.Name)
	body = fmt.Sprintf("Hi %s, this is a reminder of your %s at %s on %s at %s.",
		c.Name, serviceName, b.Name, start.Format("Mon Jan 2"), start.Format("15:04"))
	return subject, body
}

func (s *Service) remind(ctx context.Context, appt appointment.Appointment, now time.Time) error {
	gw, err := s.messaging.Messenger(ctx, appt.BusinessID, "")
	if err != nil {
		return fmt.Errorf("%w: %v", errSkip, err)
	}
	b, err := s.businesses.GetBusiness(ctx, appt.BusinessID)
	if err != nil {
		return err
	}
	c, err := s.customers.GetCustomer(ctx, appt.CustomerID)
	if err != nil {
		return err
	}
	serviceName := "appointment"
	if svc, err := s.catalog.GetService(ctx, appt.ServiceID); err == nil {
		serviceName = svc.Name
	}

	ch := channelFor(gw, c)
	to := c.Phone
	if ch == campaign.ChannelEmail {
		to = c.Email
	}
	if to == "" {
		return fmt.Errorf("%w: customer has no %s address", errSkip, ch)
	}
	subject, body := Message(b, c, serviceName, appt)
	if _, err := s.messaging.Send(ctx, gw, integration.Message{Channel: string(ch), To: to, Subject: subject, Body: body}); err != nil {
		return err
	}

	stamped, err := s.appointments.MarkReminderSent(ctx, appt.ID, now)
	if err != nil {
		return fmt.Errorf("stamp reminder: %w", err)
	}
	if !stamped {
		s.log.WithField("appointment_id", appt.ID).Warn("appointment changed while the reminder was in flight")
	}
	s.log.WithField("appointment_id", appt.ID).WithField("channel", ch).Info("reminder sent")
	return nil
}
