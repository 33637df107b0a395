package notify

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

type SESMailer struct {
	Client *ses.Client
	Sender string
}

// NewSESMailer uses static credentials when keyID is set, the default AWS chain otherwise.
func NewSESMailer(ctx context.Context, region, keyID, secret, sender string) (*SESMailer, error) {
	if sender == "" {
		return nil, fmt.Errorf("ses: sender address is not configured")
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if keyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keyID, secret, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESMailer{Client: ses.NewFromConfig(cfg), Sender: sender}, nil
}

func (m *SESMailer) Send(ctx context.Context, to, subject, text, body string) error {
	if to == "" {
		return fmt.Errorf("ses: recipient address is empty")
	}
	out, err := m.Client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(m.Sender),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(text), Charset: aws.String("UTF-8")},
				Html: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return err
	}
	log.Printf("ses: sent %q to %s (message %s)", subject, to, aws.ToString(out.MessageId))
	return nil
}

// LogMailer only logs; used when no SES sender is configured.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, text, body string) error {
	log.Printf("mail to %s: %s\n%s", to, subject, text)
	return nil
}

func confirmation(u auth.User, p orders.OrderPlacedPayload) (subject, text, body string) {
	subject = fmt.Sprintf("Order #%d confirmation", p.OrderID)

	var tb, hb strings.Builder
	fmt.Fprintf(&tb, "Hi %s,\n\nThank you for your order #%d.\n\n", u.Username, p.OrderID)
	fmt.Fprintf(&hb, "<p>Hi %s,</p><p>Thank you for your order #%d.</p><ul>", html.EscapeString(u.Username), p.OrderID)
	for _, it := range p.Items {
		fmt.Fprintf(&tb, "  medicine #%d  x%d  @ %s\n", it.MedicineID, it.Qty, it.UnitPrice)
		fmt.Fprintf(&hb, "<li>medicine #%d &times; %d @ %s</li>", it.MedicineID, it.Qty, it.UnitPrice)
	}
	fmt.Fprintf(&tb, "\nTotal: %s\n", p.Total)
	fmt.Fprintf(&hb, "</ul><p><strong>Total: %s</strong></p>", p.Total)
	return subject, tb.String(), hb.String()
}
