// Package notification tells applicants about decisions by email (SES) and
// announces funded loans on an SNS topic.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	awsclient "loan-api/internal/common/aws"
	"loan-api/internal/common/config"
	"loan-api/internal/common/errors"
	"loan-api/internal/common/logger"
	"loan-api/internal/common/metrics"
	"loan-api/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
)

type template struct {
	subject string
	body    string
}

var templates = map[string]template{
	models.NotificationTypeDecision: {
		subject: "Your loan application {{applicationId}}",
		body: "Hello {{firstName}},\n\n" +
			"Your application {{applicationId}} for {{amount}} has been {{status}}.\n" +
			"Reason: {{reason}}\n",
	},
	models.NotificationTypeFunded: {
		subject: "Loan {{applicationId}} funded",
		body:    "Loan application {{applicationId}} ({{firstName}} {{lastName}}, {{amount}}) has been funded.",
	},
}

type Notifier struct {
	ses    awsclient.SESService
	sns    awsclient.SNSService
	cfg    config.NotificationConfig
	logger logger.Logger
}

// NewNotifier builds a Notifier. A nil client disables its channel.
func NewNotifier(cfg config.NotificationConfig, sesClient awsclient.SESService, snsClient awsclient.SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		ses:    sesClient,
		sns:    snsClient,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// ApplicationSubmitted emails the applicant the decision.
func (n *Notifier) ApplicationSubmitted(ctx context.Context, app models.Application) {
	n.NotifyDecision(ctx, app)
}

// StatusChanged publishes to SNS when a loan becomes funded.
func (n *Notifier) StatusChanged(ctx context.Context, app models.Application, previous models.Status) {
	if app.Status != models.StatusFunded || previous == models.StatusFunded {
		return
	}
	n.NotifyFunded(ctx, app)
}

func (n *Notifier) NotifyDecision(ctx context.Context, app models.Application) models.Notification {
	subject, body := render(models.NotificationTypeDecision, app)
	notification := newNotification(app, models.NotificationChannelEmail, models.NotificationTypeDecision, subject, body)

	if !n.cfg.Email.Enabled || n.ses == nil || app.Email == "" {
		return n.finish(notification, nil, true)
	}

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{app.Email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	return n.finish(notification, err, false)
}

func (n *Notifier) NotifyFunded(ctx context.Context, app models.Application) models.Notification {
	subject, body := render(models.NotificationTypeFunded, app)
	notification := newNotification(app, models.NotificationChannelSNS, models.NotificationTypeFunded, subject, body)

	if !n.cfg.SNS.Enabled || n.sns == nil {
		return n.finish(notification, nil, true)
	}

	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.cfg.SNS.TopicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"applicationId": {DataType: aws.String("String"), StringValue: aws.String(app.ID)},
			"status":        {DataType: aws.String("String"), StringValue: aws.String(string(app.Status))},
		},
	})
	return n.finish(notification, err, false)
}

func (n *Notifier) finish(notification models.Notification, err error, disabled bool) models.Notification {
	switch {
	case disabled:
		notification.Status = models.NotificationStatusDisabled
	case err != nil:
		notification.Status = models.NotificationStatusFailed
		stdErr := errors.NewNotificationSendFailedError(notification.Channel, err)
		n.logger.Error("notification send failed", map[string]interface{}{
			"applicationId":  notification.ApplicationID,
			"notificationId": notification.ID,
			"channel":        notification.Channel,
			"errorCode":      string(stdErr.Code),
			"error":          err,
		})
	default:
		notification.Status = models.NotificationStatusSent
		n.logger.Info("notification sent", map[string]interface{}{
			"applicationId":  notification.ApplicationID,
			"notificationId": notification.ID,
			"channel":        notification.Channel,
			"type":           notification.Type,
		})
	}

	metrics.Notifications.WithLabelValues(notification.Channel, notification.Status).Inc()
	return notification
}

func newNotification(app models.Application, channel, kind, subject, body string) models.Notification {
	return models.Notification{
		ID:            uuid.New().String(),
		ApplicationID: app.ID,
		Channel:       channel,
		Type:          kind,
		Subject:       subject,
		Body:          body,
		SentAt:        time.Now().UTC().Format(time.RFC3339),
	}
}

func render(kind string, app models.Application) (string, string) {
	reason := ""
	if app.Decision != nil {
		reason = app.Decision.Reason
	}
	data := map[string]string{
		"applicationId": app.ID,
		"firstName":     app.FirstName,
		"lastName":      app.LastName,
		"amount":        fmt.Sprintf("%.2f", app.Amount),
		"status":        string(app.Status),
		"reason":        reason,
	}

	t := templates[kind]
	return renderTemplate(t.subject, data), renderTemplate(t.body, data)
}

func renderTemplate(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	return result
}
