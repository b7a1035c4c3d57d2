// Package notify fans ticket notifications out to the channels of a
// notification group. Delivery is best effort: a failing channel is
// reported in the result map, never as an error.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bulletops/bullet/internal/channel"
	"github.com/bulletops/bullet/internal/config"
	"github.com/bulletops/bullet/internal/model"
	"github.com/bulletops/bullet/internal/store"
	"github.com/bulletops/bullet/internal/telemetry"
	"github.com/bulletops/bullet/internal/template"
)

// ProjectGetter resolves projects referenced by tickets.
type ProjectGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
}

// GroupGetter resolves notification groups referenced by projects.
type GroupGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.NotificationGroup, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.NotificationGroup, error)
}

// ContactGetter resolves the contacts of a channel config.
type ContactGetter interface {
	GetByIDs(ctx context.Context, ids []string) ([]*model.Contact, error)
}

// TemplateGetter resolves notification templates.
type TemplateGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.NotificationTemplate, error)
	GetByName(ctx context.Context, name string) (*model.NotificationTemplate, error)
}

// Stores groups the persistence lookups a dispatch needs.
type Stores struct {
	Projects  ProjectGetter
	Groups    GroupGetter
	Contacts  ContactGetter
	Templates TemplateGetter
}

// SenderFactory builds channel senders. Production wiring uses the real
// transports; tests substitute fakes.
type SenderFactory struct {
	Feishu func(webhookURL string) channel.Sender
	Slack  func(webhookURL string) channel.Sender
	Email  func(to []string, subject, htmlBody string) channel.Sender
	SMS    func(to []string, message string) channel.Sender
}

func defaultSenderFactory(settings *config.Settings) SenderFactory {
	return SenderFactory{
		Feishu: func(webhookURL string) channel.Sender {
			return channel.NewFeishuSender(webhookURL, "")
		},
		Slack: func(webhookURL string) channel.Sender {
			return channel.NewSlackSender(webhookURL)
		},
		Email: func(to []string, subject, htmlBody string) channel.Sender {
			s := channel.NewResendSender(settings.ResendAPIKey, settings.ResendFromEmail, to)
			if settings.ResendAPIURL != "" {
				s.APIURL = settings.ResendAPIURL
			}
			s.Subject = subject
			s.HTMLBody = htmlBody
			return s
		},
		SMS: func(to []string, message string) channel.Sender {
			s := channel.NewTwilioSender(settings.TwilioAccountSID, settings.TwilioAuthToken,
				settings.TwilioFromNumber, to)
			s.Message = message
			return s
		},
	}
}

// Options mirror the notification kinds a dispatch can describe.
type Options struct {
	IsEscalated        bool
	IsRepeated         bool
	IsAckNotification  bool
	AcknowledgedByName string
}

// Dispatcher resolves groups, contacts and templates and hands rendered
// events to the channel senders.
type Dispatcher struct {
	stores  Stores
	baseURL string
	senders SenderFactory
}

// NewDispatcher creates a dispatcher with production channel transports.
func NewDispatcher(st *store.Store, settings *config.Settings) *Dispatcher {
	return NewDispatcherWith(Stores{
		Projects:  st.Projects,
		Groups:    st.Groups,
		Contacts:  st.Contacts,
		Templates: st.Templates,
	}, settings.BaseURL, defaultSenderFactory(settings))
}

// NewDispatcherWith creates a dispatcher with explicit stores and senders.
func NewDispatcherWith(stores Stores, baseURL string, senders SenderFactory) *Dispatcher {
	return &Dispatcher{stores: stores, baseURL: baseURL, senders: senders}
}

// NotifyTicket sends the ticket to the group bound at the given escalation
// level. Level 1 is the first configured group. Missing projects, groups or
// levels yield an empty result, not an error.
func (d *Dispatcher) NotifyTicket(ctx context.Context, ticket *model.Ticket, escalationLevel int) map[string]bool {
	log := telemetry.LogFromContext(ctx)

	project := d.projectFor(ctx, ticket)
	if project == nil {
		return map[string]bool{}
	}
	if len(project.NotificationGroupIDs) == 0 {
		log.WithField("project_id", project.ID.String()).Warn("Project has no notification groups configured")
		return map[string]bool{}
	}

	groupID := project.GroupIDAtLevel(escalationLevel)
	if groupID == "" {
		log.WithField("project_id", project.ID.String()).
			WithField("level", escalationLevel).
			Warn("Escalation level exceeds configured groups")
		return map[string]bool{}
	}

	group := d.groupByID(ctx, groupID)
	if group == nil {
		return map[string]bool{}
	}

	tpl := d.TemplateForProject(ctx, project)

	log.WithField("ticket_id", ticket.ID.String()).
		WithField("group", group.Name).
		WithField("level", escalationLevel).
		WithField("template", tpl.Name).
		Info("Sending ticket notification")

	return d.SendToGroup(ctx, ticket, group, tpl, project, Options{})
}

// NotifyTicketAcknowledged tells every previously notified group, level 1
// through the ticket's current level, that the ticket was acknowledged.
// Result keys are prefixed with the level to stay unique.
func (d *Dispatcher) NotifyTicketAcknowledged(ctx context.Context, ticket *model.Ticket, acknowledgedBy string) map[string]bool {
	log := telemetry.LogFromContext(ctx)

	project := d.projectFor(ctx, ticket)
	if project == nil {
		return map[string]bool{}
	}
	if !project.NotifyOnAck {
		return map[string]bool{}
	}
	if len(project.NotificationGroupIDs) == 0 {
		log.WithField("project_id", project.ID.String()).Warn("Project has no notification groups configured")
		return map[string]bool{}
	}

	var levelIDs []string
	for level := 1; level <= ticket.EscalationLevel; level++ {
		groupID := project.GroupIDAtLevel(level)
		if groupID == "" {
			break
		}
		levelIDs = append(levelIDs, groupID)
	}

	groupsByID := d.groupsByID(ctx, levelIDs)
	tpl := d.TemplateForProject(ctx, project)

	all := map[string]bool{}
	for i, groupID := range levelIDs {
		level := i + 1
		group := groupsByID[groupID]
		if group == nil {
			log.WithField("group_id", groupID).Warn("Notification group not found")
			continue
		}
		results := d.SendToGroup(ctx, ticket, group, tpl, project, Options{
			IsAckNotification:  true,
			AcknowledgedByName: acknowledgedBy,
		})
		for key, ok := range results {
			all[fmt.Sprintf("L%d:%s", level, key)] = ok
		}
	}
	return all
}

// groupsByID loads all named groups in one query. Malformed and missing ids
// simply have no entry in the returned map.
func (d *Dispatcher) groupsByID(ctx context.Context, ids []string) map[string]*model.NotificationGroup {
	log := telemetry.LogFromContext(ctx)

	valid := ids[:0:0]
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			log.WithField("group_id", id).Warn("Malformed notification group id")
			continue
		}
		valid = append(valid, id)
	}
	byID := make(map[string]*model.NotificationGroup, len(valid))
	if len(valid) == 0 {
		return byID
	}

	groups, err := d.stores.Groups.GetByIDs(ctx, valid)
	if err != nil {
		log.WithField("error", err.Error()).Error("Failed to load notification groups")
		return byID
	}
	for _, g := range groups {
		byID[g.ID.String()] = g
	}
	return byID
}

// SendToGroup delivers one notification to every channel of one group.
// The returned map has one entry per attempted delivery: "feishu:<name>"
// and "slack:<name>" per contact, "email" and "sms" per batch.
func (d *Dispatcher) SendToGroup(ctx context.Context, ticket *model.Ticket, group *model.NotificationGroup,
	tpl *model.NotificationTemplate, project *model.Project, opts Options) map[string]bool {

	results := map[string]bool{}

	var renderedCard map[string]interface{}
	var emailSubject, emailBody, smsMessage string

	tplCtx := template.BuildContext(ticket, project, d.baseURL, template.Options{
		IsEscalated:        opts.IsEscalated,
		IsRepeated:         opts.IsRepeated,
		IsAckNotification:  opts.IsAckNotification,
		AcknowledgedByName: opts.AcknowledgedByName,
	})
	if tpl != nil {
		renderedCard = template.RenderFeishuCard(tpl, tplCtx)
		emailSubject, emailBody = template.RenderEmail(tpl, tplCtx)
		smsMessage = template.RenderSMS(tpl, tplCtx)
	}

	event := d.buildEvent(ticket, tplCtx, renderedCard)

	for _, cfg := range group.ChannelConfigs {
		d.sendToChannelConfig(ctx, event, cfg, results, emailSubject, emailBody, smsMessage)
	}
	return results
}

func (d *Dispatcher) buildEvent(ticket *model.Ticket, tplCtx template.Context, renderedCard map[string]interface{}) *channel.Event {
	meta := map[string]interface{}{
		channel.MetaTicketID:    ticket.ID.String(),
		channel.MetaAckToken:    ticket.AckToken,
		channel.MetaTitle:       ticket.Title,
		channel.MetaDescription: ticket.Description,
		channel.MetaSeverity:    ticket.Severity,
		channel.MetaAckURL:      tplCtx.AckURL,
		channel.MetaDetailURL:   tplCtx.DetailURL,
	}
	if renderedCard != nil {
		meta[channel.MetaTemplateCard] = renderedCard
	}
	return &channel.Event{
		Source:  ticket.Source,
		Type:    "notification",
		Payload: ticket.Payload,
		Labels:  ticket.Labels,
		Meta:    meta,
	}
}

func (d *Dispatcher) sendToChannelConfig(ctx context.Context, event *channel.Event, cfg model.ChannelConfig,
	results map[string]bool, emailSubject, emailBody, smsMessage string) {

	log := telemetry.LogFromContext(ctx)

	contacts, err := d.stores.Contacts.GetByIDs(ctx, cfg.ContactIDs)
	if err != nil {
		log.WithField("channel_type", string(cfg.Type)).
			WithField("error", err.Error()).
			Error("Failed to load contacts for channel")
		return
	}
	if len(contacts) == 0 {
		log.WithField("channel_type", string(cfg.Type)).Warn("No contacts found for channel config")
		return
	}

	switch cfg.Type {
	case model.ChannelFeishu:
		for _, contact := range contacts {
			if !contact.HasFeishu() {
				log.WithField("contact", contact.Name).Warn("Contact has no feishu webhook url")
				continue
			}
			sender := d.senders.Feishu(contact.FeishuWebhookURL)
			results["feishu:"+contact.Name] = channel.SendSafe(ctx, sender, event)
		}

	case model.ChannelEmail:
		var emails []string
		for _, contact := range contacts {
			emails = append(emails, contact.Emails...)
		}
		if len(emails) == 0 {
			log.Warn("No email addresses found in contacts")
			return
		}
		sender := d.senders.Email(emails, emailSubject, emailBody)
		results["email"] = channel.SendSafe(ctx, sender, event)

	case model.ChannelSMS:
		var phones []string
		for _, contact := range contacts {
			phones = append(phones, contact.Phones...)
		}
		if len(phones) == 0 {
			log.Warn("No phone numbers found in contacts")
			return
		}
		sender := d.senders.SMS(phones, smsMessage)
		results["sms"] = channel.SendSafe(ctx, sender, event)

	case model.ChannelSlack:
		for _, contact := range contacts {
			if !contact.HasSlack() {
				log.WithField("contact", contact.Name).Warn("Contact has no slack webhook url")
				continue
			}
			sender := d.senders.Slack(contact.SlackWebhookURL)
			results["slack:"+contact.Name] = channel.SendSafe(ctx, sender, event)
		}

	default:
		log.WithField("channel_type", string(cfg.Type)).Warn("Unknown channel type")
	}
}

// TemplateForProject resolves the project's configured template, falling
// back to the builtin default and finally to an empty in-memory template so
// rendering never blocks a dispatch.
func (d *Dispatcher) TemplateForProject(ctx context.Context, project *model.Project) *model.NotificationTemplate {
	log := telemetry.LogFromContext(ctx)

	if project.NotificationTemplateID != "" {
		if id, err := uuid.Parse(project.NotificationTemplateID); err == nil {
			tpl, err := d.stores.Templates.GetByID(ctx, id)
			if err == nil {
				return tpl
			}
		}
		log.WithField("template_id", project.NotificationTemplateID).
			WithField("project_id", project.ID.String()).
			Warn("Configured template not found, using default")
	}

	tpl, err := d.stores.Templates.GetByName(ctx, model.DefaultTemplateName)
	if err == nil {
		return tpl
	}

	log.Warn("No default template found, using empty fallback")
	return &model.NotificationTemplate{Name: "fallback"}
}

func (d *Dispatcher) projectFor(ctx context.Context, ticket *model.Ticket) *model.Project {
	log := telemetry.LogFromContext(ctx)
	id, err := uuid.Parse(ticket.ProjectID)
	if err != nil {
		log.WithField("project_id", ticket.ProjectID).Warn("Ticket has malformed project id")
		return nil
	}
	project, err := d.stores.Projects.GetByID(ctx, id)
	if err != nil {
		log.WithField("project_id", ticket.ProjectID).Warn("Project not found")
		return nil
	}
	return project
}

func (d *Dispatcher) groupByID(ctx context.Context, groupID string) *model.NotificationGroup {
	log := telemetry.LogFromContext(ctx)
	id, err := uuid.Parse(groupID)
	if err != nil {
		log.WithField("group_id", groupID).Warn("Malformed notification group id")
		return nil
	}
	group, err := d.stores.Groups.GetByID(ctx, id)
	if err != nil {
		log.WithField("group_id", groupID).Warn("Notification group not found")
		return nil
	}
	return group
}
