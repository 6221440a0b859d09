package auth

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"
)

// LogMailer writes verification links to the log instead of sending email.
type LogMailer struct {
	frontendURL string
	log         zerolog.Logger
}

// NewLogMailer creates a mailer that links to frontendURL/verify-email.
func NewLogMailer(frontendURL string, log zerolog.Logger) *LogMailer {
	return &LogMailer{frontendURL: frontendURL, log: log}
}

// VerificationURL builds the link sent to the user.
func (m *LogMailer) VerificationURL(token string) string {
	return m.frontendURL + "/verify-email?token=" + url.QueryEscape(token)
}

func (m *LogMailer) SendVerification(_ context.Context, email, token string) error {
	m.log.Info().
		Str("email", email).
		Str("verification_url", m.VerificationURL(token)).
		Msg("Verification email (not sent, logged only)")
	return nil
}
