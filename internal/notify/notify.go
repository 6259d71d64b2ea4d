// Package notify delivers ticket notifications to the contact assigned by
// the knowledge base. Email is the default channel; urgent plans fan out to
// Slack as well. Transport failures are logged and reported as a boolean;
// they never block ticket creation.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/clubhouse247/clubops/internal/enrich"
	"github.com/clubhouse247/clubops/internal/knowledge"
	"github.com/clubhouse247/clubops/internal/storage"
	"github.com/clubhouse247/clubops/internal/ticket"
)

// Mailer sends one email.
type Mailer interface {
	Send(to, subject, body string) error
}

// SlackPoster posts one message to a channel. *slack.Client satisfies it.
type SlackPoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Dispatcher routes notifications to the configured channels.
type Dispatcher struct {
	base         *knowledge.Base
	mailer       Mailer
	slack        SlackPoster // nil when Slack is not configured
	slackChannel string
}

// NewDispatcher creates a Dispatcher. slackPoster may be nil; urgent plans
// then degrade to email only.
func NewDispatcher(base *knowledge.Base, mailer Mailer, slackPoster SlackPoster, slackChannel string) *Dispatcher {
	return &Dispatcher{base: base, mailer: mailer, slack: slackPoster, slackChannel: slackChannel}
}

// Send emails the contact assigned to the category. Returns false and logs
// on transport failure; never returns an error to the caller.
func (d *Dispatcher) Send(category knowledge.Category, subject, body string) bool {
	contact := d.base.Contact(category)
	if err := d.mailer.Send(contact.Email, subject, body); err != nil {
		slog.Warn("email notification failed", "to", contact.Email, "category", category, "error", err)
		return false
	}
	slog.Info("email notification sent", "to", contact.Email, "category", category)
	return true
}

// Execute delivers a notification over every channel in the plan in
// parallel. Returns true if at least one channel succeeded.
func (d *Dispatcher) Execute(ctx context.Context, plan enrich.NotificationPlan, category knowledge.Category, subject, body string) bool {
	results := make([]bool, len(plan.Channels))

	g, _ := errgroup.WithContext(ctx)
	for i, ch := range plan.Channels {
		g.Go(func() error {
			switch ch {
			case enrich.ChannelEmail:
				results[i] = d.Send(category, subject, body)
			case enrich.ChannelSlack:
				results[i] = d.postSlack(subject, body, plan.Urgency)
			default:
				slog.Warn("unknown notification channel", "channel", ch)
			}
			return nil
		})
	}
	g.Wait()

	for _, ok := range results {
		if ok {
			return true
		}
	}
	return false
}

func (d *Dispatcher) postSlack(subject, body string, urgency enrich.Urgency) bool {
	if d.slack == nil || d.slackChannel == "" {
		slog.Info("slack not configured, channel skipped")
		return false
	}
	text := subject + "\n" + body
	if urgency == enrich.UrgencyUrgent {
		text = ":rotating_light: " + text
	}
	if _, _, err := d.slack.PostMessage(d.slackChannel, slack.MsgOptionText(text, false)); err != nil {
		slog.Warn("slack notification failed", "channel", d.slackChannel, "error", err)
		return false
	}
	slog.Info("slack notification sent", "channel", d.slackChannel)
	return true
}

// TicketSubject formats the notification subject line for a ticket.
func TicketSubject(t storage.Ticket) string {
	return fmt.Sprintf("ClubOps Ticket %s - %s priority", t.ID, strings.ToUpper(t.Priority))
}

// TicketBody formats the plain-text notification body for a ticket.
func TicketBody(t storage.Ticket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "New ticket assignment\n\n")
	fmt.Fprintf(&sb, "Ticket:      %s\n", t.ID)
	fmt.Fprintf(&sb, "Priority:    %s\n", strings.ToUpper(t.Priority))
	fmt.Fprintf(&sb, "Category:    %s\n", t.Category)
	fmt.Fprintf(&sb, "Assigned to: %s\n\n", t.AssignedTo)
	fmt.Fprintf(&sb, "Issue:\n%s\n", t.Description)

	if steps := ticket.Steps(t); len(steps) > 0 {
		sb.WriteString("\nRecommended next steps:\n")
		for i, step := range steps {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
		}
	}
	sb.WriteString("\nPlease address this issue and update the ticket status in ClubOps when completed.\n")
	return sb.String()
}
