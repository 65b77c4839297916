package notify

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/formdesk/formdesk/internal/access"
	"github.com/formdesk/formdesk/internal/models"
	"github.com/formdesk/formdesk/internal/telemetry"
)

// DefaultBatchSize is the fixed number of recipients per notification
// request.
const DefaultBatchSize = 100

// Fanout resolves the recipients of a form change across all shared
// organisations and emits size-bounded notification batches. It never
// fails the caller: the form mutation has already succeeded, so every
// fan-out fault is caught, logged and swallowed.
type Fanout struct {
	dir       access.Directory
	sink      Sink
	batchSize int
}

// NewFanout creates a fan-out over the directory and sink.
func NewFanout(dir access.Directory, sink Sink) *Fanout {
	return &Fanout{
		dir:       dir,
		sink:      sink,
		batchSize: DefaultBatchSize,
	}
}

// Notify emits change notifications for a persisted form to every member
// of its shared organisations, excluding the actor. No-op when the form
// has no accesses or no recipients remain.
func (f *Fanout) Notify(ctx context.Context, actorID string, form *models.Form, templateName string, sendEmail bool) {
	if err := f.notify(ctx, actorID, form, templateName, sendEmail); err != nil {
		telemetry.GetMetrics().NotificationFailuresTotal.Add(ctx, 1)
		log.Error().Err(err).
			Str("form_id", form.ID).
			Str("template", templateName).
			Msg("Notifications failed")
	}
}

func (f *Fanout) notify(ctx context.Context, actorID string, form *models.Form, templateName string, sendEmail bool) error {
	if len(form.FormAccesses) == 0 {
		return nil
	}

	recipients, err := f.resolveRecipients(ctx, actorID, form)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	channels := []Channel{ChannelInApp}
	if sendEmail {
		channels = append(channels, ChannelEmail)
	}

	link := "/forms/view/" + form.ID

	metrics := telemetry.GetMetrics()
	for start := 0; start < len(recipients); start += f.batchSize {
		end := start + f.batchSize
		if end > len(recipients) {
			end = len(recipients)
		}

		req := &Request{
			AbsoluteRouteURL: link,
			Channels:         channels,
			TemplateName:     templateName,
			Severity:         SeverityInfo,
			PlaceholderData: map[string]string{
				"formName": form.Title,
				"userName": form.OwnerName,
				"link":     link,
			},
			Recipients: recipients[start:end],
		}

		if err := f.sink.Queue(ctx, req); err != nil {
			return err
		}

		metrics.NotificationBatchesTotal.Add(ctx, 1)
		metrics.NotificationRecipientsTotal.Add(ctx, int64(end-start))
	}

	return f.sink.Flush(ctx)
}

// resolveRecipients unions the member lists of all shared organisations,
// de-duplicated by user id, with the actor excluded. One directory call
// per organisation; the calls are independent and read-only.
func (f *Fanout) resolveRecipients(ctx context.Context, actorID string, form *models.Form) ([]Recipient, error) {
	seen := make(map[string]struct{})
	var recipients []Recipient

	for _, fa := range form.FormAccesses {
		users, err := f.dir.UsersByOrganisationID(ctx, fa.OrganisationID, true)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.ID == actorID {
				continue
			}
			if _, ok := seen[u.ID]; ok {
				continue
			}
			seen[u.ID] = struct{}{}
			recipients = append(recipients, Recipient{
				UserID:            u.ID,
				Email:             u.Email,
				PreferredLanguage: u.PreferredLanguage,
			})
		}
	}

	return recipients, nil
}
