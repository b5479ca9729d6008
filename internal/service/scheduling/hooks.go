package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hfiles/clinic-api/internal/calendar"
	"github.com/hfiles/clinic-api/internal/model"
)

// Hook names double as response-flag keys.
const (
	hookCalendar     = "calendar"
	hookEmail        = "email"
	hookVisitCleanup = "visit_cleanup"
)

// postCommitHook is one best-effort step to run after the transaction has
// committed. Hook failures are logged and reflected only as flags; they
// never fail the operation.
type postCommitHook struct {
	name string
	run  func(ctx context.Context) error
}

// runPostCommit runs hooks concurrently, each with a bounded timeout and
// detached from the request's cancellation so a dropped client cannot
// abort the side effects.
func (s *Service) runPostCommit(ctx context.Context, hooks []postCommitHook) map[string]bool {
	base := context.WithoutCancel(ctx)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]bool, len(hooks))
	)

	for _, h := range hooks {
		wg.Add(1)
		go func(h postCommitHook) {
			defer wg.Done()
			hctx, cancel := context.WithTimeout(base, s.hookTimeout)
			defer cancel()

			start := time.Now()
			err := h.run(hctx)
			s.metrics.AdapterLatency.WithLabelValues(h.name).Observe(time.Since(start).Seconds())
			if err != nil {
				s.logger.Warn().Err(err).Str("hook", h.name).Msg("post-commit step failed")
			}

			mu.Lock()
			results[h.name] = err == nil
			mu.Unlock()
		}(h)
	}
	wg.Wait()
	return results
}

func (s *Service) calendarCreateHook(apt *model.Appointment) postCommitHook {
	return postCommitHook{
		name: hookCalendar,
		run: func(ctx context.Context) error {
			eventID, err := s.calendar.CreateEvent(ctx, &calendar.Event{
				ClinicID:    apt.ClinicID,
				Title:       "Appointment: " + apt.VisitorName,
				PatientName: apt.VisitorName,
				Date:        apt.Date,
				Time:        apt.Time,
				Phone:       apt.VisitorPhone,
			})
			if err != nil {
				s.metrics.CalendarSyncs.WithLabelValues("create", "error").Inc()
				return err
			}
			s.metrics.CalendarSyncs.WithLabelValues("create", "success").Inc()
			if eventID == "" {
				return nil
			}

			// follow-up write outside the booking transaction
			if err := s.apptRepo.SetCalendarEventID(ctx, apt.ID, eventID); err != nil {
				return fmt.Errorf("failed to attach calendar event id: %w", err)
			}
			apt.CalendarEventID = &eventID
			return nil
		},
	}
}

// calendarStatusHook syncs a Completed/Canceled transition to the
// calendar. There is nothing to do without a linked event or for
// transitions the calendar does not care about.
func (s *Service) calendarStatusHook(apt *model.Appointment) (postCommitHook, bool) {
	if apt.CalendarEventID == nil {
		return postCommitHook{}, false
	}

	var op func(ctx context.Context) error
	var label string
	switch apt.Status {
	case model.AppointmentStatusCompleted:
		label = "update"
		op = func(ctx context.Context) error {
			return s.calendar.UpdateEvent(ctx, apt.ClinicID, *apt.CalendarEventID, string(apt.Status))
		}
	case model.AppointmentStatusCanceled:
		label = "cancel"
		op = func(ctx context.Context) error {
			return s.calendar.CancelEvent(ctx, apt.ClinicID, *apt.CalendarEventID)
		}
	default:
		return postCommitHook{}, false
	}

	return postCommitHook{
		name: hookCalendar,
		run: func(ctx context.Context) error {
			if err := op(ctx); err != nil {
				s.metrics.CalendarSyncs.WithLabelValues(label, "error").Inc()
				return err
			}
			s.metrics.CalendarSyncs.WithLabelValues(label, "success").Inc()
			return nil
		},
	}, true
}

func (s *Service) calendarDeleteHook(apt *model.Appointment) postCommitHook {
	return postCommitHook{
		name: hookCalendar,
		run: func(ctx context.Context) error {
			if err := s.calendar.DeleteEvent(ctx, apt.ClinicID, *apt.CalendarEventID); err != nil {
				s.metrics.CalendarSyncs.WithLabelValues("delete", "error").Inc()
				return err
			}
			s.metrics.CalendarSyncs.WithLabelValues("delete", "success").Inc()
			return nil
		},
	}
}

func (s *Service) visitCleanupHook(apt *model.Appointment) postCommitHook {
	return postCommitHook{
		name: hookVisitCleanup,
		run: func(ctx context.Context) error {
			s.visits.CleanupForAppointment(ctx, apt)
			return nil
		},
	}
}

func (s *Service) confirmationEmailHook(apt *model.Appointment, pat *model.Patient, links []model.ConsentLink) postCommitHook {
	return postCommitHook{
		name: hookEmail,
		run: func(ctx context.Context) error {
			subject := fmt.Sprintf("Appointment confirmed for %s at %s", apt.Date.Format(model.DateLayout), apt.Time)
			body := buildConfirmationBody(apt, pat, links)

			if err := s.email.Send(ctx, *pat.Email, subject, body); err != nil {
				s.metrics.NotificationsSent.WithLabelValues("email", "error").Inc()
				return err
			}
			s.metrics.NotificationsSent.WithLabelValues("email", "success").Inc()
			return nil
		},
	}
}

func buildConfirmationBody(apt *model.Appointment, pat *model.Patient, links []model.ConsentLink) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Dear %s,</p>", pat.Name)
	fmt.Fprintf(&b, "<p>Your appointment is confirmed for %s at %s.</p>",
		apt.Date.Format(model.DateLayout), apt.Time)

	if len(links) > 0 {
		b.WriteString("<p>Please review and sign the following consent forms before your visit:</p><ul>")
		for _, link := range links {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, link.URL, link.Title)
		}
		b.WriteString("</ul>")
	}

	b.WriteString("<p>Thank you.</p>")
	return b.String()
}

// appendEvent writes a domain event into the outbox inside the current
// transaction; the worker publishes it after commit.
func (s *Service) appendEvent(ctx context.Context, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   raw,
	})
}
