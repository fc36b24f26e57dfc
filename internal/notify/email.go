package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/utafrali/ReviewGo/internal/domain"
)

// Mailer sends composed messages. *gomail.Dialer satisfies it.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// UserLookup resolves a user's mailing address.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// EmailConfig configures the SMTP sink.
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// NewDialer builds the SMTP dialer for cfg.
func NewDialer(cfg EmailConfig) *gomail.Dialer {
	return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
}

// EmailSink mails review authors about moderation results and replies, and
// the admin address about new and reported reviews.
type EmailSink struct {
	mailer Mailer
	users  UserLookup
	from   string
	admin  string
}

// NewEmailSink creates an email sink.
func NewEmailSink(mailer Mailer, users UserLookup, from, adminEmail string) *EmailSink {
	return &EmailSink{mailer: mailer, users: users, from: from, admin: adminEmail}
}

func (s *EmailSink) Name() string { return "email" }

// Send mails event to its recipient. Events without a resolvable recipient
// are skipped.
func (s *EmailSink) Send(ctx context.Context, event *Event) error {
	to, err := s.recipient(ctx, event)
	if err != nil {
		return err
	}
	if to == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", event.Subject())
	m.SetBody("text/plain", event.Body())

	// gomail has no context support; bail out before dialing if the
	// delivery deadline already passed.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func (s *EmailSink) recipient(ctx context.Context, event *Event) (string, error) {
	switch event.Type {
	case EventNewReview, EventReviewReported:
		return s.admin, nil
	case EventReviewApproved, EventReviewRejected, EventNewReply:
		user, err := s.users.GetByID(ctx, event.AuthorID)
		if err != nil {
			return "", fmt.Errorf("resolve author %s: %w", event.AuthorID, err)
		}
		return user.Email, nil
	default:
		return "", nil
	}
}
