package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/awvreport/src/config"
	"github.com/username/awvreport/src/logger"
	"github.com/username/awvreport/src/models"
)

// EmailService sends the post-run summary: the order aggregates sorted by
// absolute EUR amount, largest first, for a quick plausibility check before
// the extract is uploaded.
type EmailService interface {
	SendRunSummary(period models.Period, filename string, aggregates []models.OrderAggregate) error
}

func NewEmailService() EmailService {
	if config.Cfg == nil {
		logger.L.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SummaryRecipient == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SummaryRecipient missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
			recipient:   config.Cfg.SummaryRecipient,
		}
	default:
		return &MockEmailService{}
	}
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
	recipient   string
}

func (s *MailgunEmailService) SendRunSummary(period models.Period, filename string, aggregates []models.OrderAggregate) error {
	subject := fmt.Sprintf("AWV report %s created", period)
	body := summaryBody(period, filename, aggregates)

	sender := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	message := s.mg.NewMessage(sender, subject, body, s.recipient)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, _, err := s.mg.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send run summary email: %w", err)
	}
	logger.L.Info("Run summary email sent", "recipient", s.recipient, "period", period.String())
	return nil
}

type MockEmailService struct{}

func (s *MockEmailService) SendRunSummary(period models.Period, filename string, aggregates []models.OrderAggregate) error {
	logger.L.Info("MockEmailService: run summary",
		"period", period.String(), "filename", filename, "orderAggregates", len(aggregates))
	return nil
}

// summaryBody lists the order aggregates descending by absolute amount.
func summaryBody(period models.Period, filename string, aggregates []models.OrderAggregate) string {
	sorted := make([]models.OrderAggregate, len(aggregates))
	copy(sorted, aggregates)
	sort.Slice(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].AmountEUR) > math.Abs(sorted[j].AmountEUR)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "Reporting period: %s\n", period)
	fmt.Fprintf(&b, "Output file: %s\n\n", filename)
	fmt.Fprintf(&b, "Order aggregates (TEUR, largest first):\n")
	for _, agg := range sorted {
		fmt.Fprintf(&b, "%10.1f  %-4s %-4s %-12s %s\n",
			math.Abs(agg.AmountEUR), agg.Currency, agg.Side, agg.ISIN, agg.Description)
	}
	if len(sorted) == 0 {
		b.WriteString("(no reportable transactions)\n")
	}
	return b.String()
}
