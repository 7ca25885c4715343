package notify

import (
	"context"
	"fmt"

	"stayhub/internal/config"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

const otpSubject = "Verify Your Email"

func otpBody(code string) string {
	return fmt.Sprintf("Your verification code is %s.\n\nIt expires in 10 minutes. "+
		"If you did not create an account, ignore this message.\n", code)
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailSender delivers verification codes over SMTP.
type EmailSender struct {
	client sender
	from   string
	logger zerolog.Logger
}

func NewEmailSender(cfg config.MailConfig, logger *zerolog.Logger) (*EmailSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &EmailSender{
		client: client,
		from:   cfg.From,
		logger: logger.With().Str("component", "mailer").Logger(),
	}, nil
}

func (s *EmailSender) buildOTPMessage(email, code string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := msg.To(email); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	msg.Subject(otpSubject)
	msg.SetBodyString(mail.TypeTextPlain, otpBody(code))
	return msg, nil
}

func (s *EmailSender) SendOTP(ctx context.Context, email, code string) error {
	msg, err := s.buildOTPMessage(email, code)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", email, err)
	}
	s.logger.Debug().Str("email", email).Msg("verification code sent")
	return nil
}

// LogMailer writes codes to the log instead of sending them. Development only.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With().Str("component", "mailer").Logger()}
}

func (m *LogMailer) SendOTP(_ context.Context, email, code string) error {
	m.logger.Warn().Str("email", email).Str("code", code).Msg("smtp not configured, verification code logged")
	return nil
}
