package jobs

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/ledgerline/ledgerline/internal/billing"
)

// ClientDirectory resolves the billing email for a client.
type ClientDirectory interface {
	Email(ctx context.Context, scopeID, clientID string) (string, error)
}

// MailerConfig configures the SMTP deliverer.
type MailerConfig struct {
	Host string
	Port int
	From string
}

// SMTPDeliverer emails a document notification to the client on record.
type SMTPDeliverer struct {
	cfg     MailerConfig
	clients ClientDirectory
	send    func(addr, from string, to []string, msg []byte) error
}

// NewSMTPDeliverer constructs a Deliverer over plain SMTP.
func NewSMTPDeliverer(cfg MailerConfig, clients ClientDirectory) *SMTPDeliverer {
	return &SMTPDeliverer{
		cfg:     cfg,
		clients: clients,
		send: func(addr, from string, to []string, msg []byte) error {
			return smtp.SendMail(addr, nil, from, to, msg)
		},
	}
}

// Deliver sends the notification mail.
func (d *SMTPDeliverer) Deliver(ctx context.Context, doc *billing.Document) error {
	if doc.ClientID == "" {
		return fmt.Errorf("jobs: document %s has no client", doc.ID)
	}
	to, err := d.clients.Email(ctx, doc.ScopeID, doc.ClientID)
	if err != nil {
		return fmt.Errorf("jobs: resolve client %s: %w", doc.ClientID, err)
	}

	label := "Invoice"
	if doc.Type == billing.TypeQuote {
		label = "Quote"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", d.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s %s\r\n", label, doc.Number)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s %s is ready. Total due: %.2f\r\n", label, doc.Number, doc.Totals.TTC)

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	return d.send(addr, d.cfg.From, []string{to}, []byte(b.String()))
}

var _ Deliverer = (*SMTPDeliverer)(nil)
