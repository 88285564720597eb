// internal/notify/aws.go
package notify

import (
	"context"
	"database/sql"
	"fmt"

	"leadrouter/internal/common/logger"
	"leadrouter/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Interfaces over the AWS clients for mocking.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type AWSConfig struct {
	Region       string
	FromEmail    string
	EmailEnabled bool
	TextEnabled  bool
}

// AWSGateway delivers notifications over SES (email) and SNS (text
// channel). The text channel is reserved for time-critical kinds to avoid
// message fatigue.
type AWSGateway struct {
	config    AWSConfig
	db        *sql.DB
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
}

func NewAWSGateway(ctx context.Context, cfg AWSConfig, db *sql.DB, log logger.Logger) (*AWSGateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &AWSGateway{
		config:    cfg,
		db:        db,
		logger:    log.WithFields(map[string]interface{}{"component": "notification-gateway"}),
		sesClient: ses.NewFromConfig(awsCfg),
		snsClient: sns.NewFromConfig(awsCfg),
	}, nil
}

// NewAWSGatewayWithClients wires explicit clients, used by tests.
func NewAWSGatewayWithClients(cfg AWSConfig, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *AWSGateway {
	return &AWSGateway{
		config:    cfg,
		db:        db,
		logger:    log.WithFields(map[string]interface{}{"component": "notification-gateway"}),
		sesClient: sesClient,
		snsClient: snsClient,
	}
}

// Send resolves the recipient contact, renders the message for the notice
// kind, and delivers over the enabled channels. The text channel fires only
// for urgent and overdue notices.
func (g *AWSGateway) Send(ctx context.Context, notice models.Notice) (Delivery, error) {
	email, phone, err := g.recipientContact(ctx, notice.RecipientType, notice.RecipientID)
	if err != nil {
		g.logger.Warn("recipient not found", map[string]interface{}{
			"recipientId":   notice.RecipientID,
			"recipientType": notice.RecipientType,
			"error":         err,
		})
		return Delivery{}, fmt.Errorf("resolve recipient: %w", err)
	}

	subject, body := renderMessage(notice)

	var externalID string
	delivered := false

	if g.config.EmailEnabled && email != "" {
		id, err := g.sendEmail(ctx, email, subject, body)
		if err != nil {
			g.logger.Error("email send failed", map[string]interface{}{
				"handoffId": notice.HandoffID,
				"kind":      notice.Kind,
				"error":     err,
			})
		} else {
			delivered = true
			externalID = id
		}
	}

	if g.config.TextEnabled && phone != "" && textChannelKind(notice.Kind) {
		id, err := g.sendText(ctx, phone, body)
		if err != nil {
			g.logger.Error("text send failed", map[string]interface{}{
				"handoffId": notice.HandoffID,
				"kind":      notice.Kind,
				"error":     err,
			})
		} else {
			delivered = true
			if externalID == "" {
				externalID = id
			}
		}
	}

	if !delivered {
		return Delivery{}, fmt.Errorf("no channel delivered %s notification for handoff %s", notice.Kind, notice.HandoffID)
	}
	return Delivery{Delivered: true, ExternalID: externalID}, nil
}

func (g *AWSGateway) recipientContact(ctx context.Context, recipientType, recipientID string) (string, string, error) {
	var query string
	switch recipientType {
	case models.RecipientVendor:
		query = `SELECT email, phone FROM vendors WHERE id = $1`
	case models.RecipientSDR:
		query = `SELECT email, phone FROM sdrs WHERE id = $1`
	default:
		return "", "", fmt.Errorf("invalid recipient type: %s", recipientType)
	}

	var email, phone string
	err := g.db.QueryRowContext(ctx, query, recipientID).Scan(&email, &phone)
	return email, phone, err
}

func (g *AWSGateway) sendEmail(ctx context.Context, to, subject, body string) (string, error) {
	out, err := g.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(g.config.FromEmail),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func (g *AWSGateway) sendText(ctx context.Context, to, message string) (string, error) {
	out, err := g.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func textChannelKind(kind models.NotificationKind) bool {
	return kind == models.KindUrgent || kind == models.KindOverdue
}

func renderMessage(n models.Notice) (string, string) {
	switch n.Kind {
	case models.KindWarning:
		return fmt.Sprintf("SLA warning: lead %s", n.ProspectID),
			fmt.Sprintf("First contact for lead %s is due in %.1f hours. Service: %s.",
				n.ProspectID, n.HoursRemaining, n.ServiceType)
	case models.KindOverdue:
		return fmt.Sprintf("SLA overdue: lead %s", n.ProspectID),
			fmt.Sprintf("First contact for lead %s is %.1f hours overdue. Service: %s. Please reach out immediately.",
				n.ProspectID, n.HoursOverdue, n.ServiceType)
	case models.KindFeedback:
		return fmt.Sprintf("How did lead %s go?", n.ProspectID),
			fmt.Sprintf("Please rate the quality of lead %s (service: %s) from 1 to 5.",
				n.ProspectID, n.ServiceType)
	case models.KindUrgent:
		return fmt.Sprintf("Urgent lead assigned: %s", n.ProspectID),
			fmt.Sprintf("A high-urgency lead for %s was assigned to you. SLA clock is running.",
				n.ServiceType)
	case models.KindConverted:
		return fmt.Sprintf("Lead converted: %s", n.ProspectID),
			fmt.Sprintf("The lead %s you handed off was converted. Service: %s.",
				n.ProspectID, n.ServiceType)
	default:
		return fmt.Sprintf("Lead update: %s", n.ProspectID), fmt.Sprintf("Update on lead %s.", n.ProspectID)
	}
}
