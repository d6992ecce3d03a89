package main

import (
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContactMessage is one contact-form submission.
type ContactMessage struct {
	FullName string `form:"fullName" json:"fullName" binding:"required,max=200"`
	Email    string `form:"email" json:"email" binding:"required,email"`
	Message  string `form:"message" json:"message" binding:"required,max=5000"`
}

// Mailer delivers contact-form submissions.
type Mailer interface {
	Send(ctx context.Context, msg ContactMessage) error
}

type smtpMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func newSMTPMailer(cfg SMTPConfig) *smtpMailer {
	return &smtpMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *smtpMailer) Send(ctx context.Context, msg ContactMessage) error {
	if m.cfg.User == "" || m.cfg.Pass == "" {
		return ErrSMTPNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	to := m.cfg.To
	if to == "" {
		to = m.cfg.User
	}

	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	if err := m.send(m.cfg.Host+":"+m.cfg.Port, auth, m.cfg.User, []string{to}, composeContactEmail(m.cfg.User, to, msg)); err != nil {
		return fmt.Errorf("send contact email: %w", err)
	}
	return nil
}

func composeContactEmail(from, to string, msg ContactMessage) []byte {
	name := headerSafe(msg.FullName)
	body := fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Message:
%s

---
Sent from your portfolio contact form
`, msg.FullName, msg.Email, msg.Message)

	return []byte("To: " + to + "\r\n" +
		"Subject: Portfolio Contact: " + name + "\r\n" +
		"From: " + from + "\r\n" +
		"Reply-To: " + headerSafe(msg.Email) + "\r\n" +
		"\r\n" +
		body + "\r\n")
}

// headerSafe strips line breaks so user input cannot add headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// submitContact answers with the contact section's success or error message
// in the visitor's current language.
func (s *Server) submitContact(c *gin.Context) {
	l := s.localizer(c)

	var msg ContactMessage
	if err := c.ShouldBind(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": l.T("contact.errorMessage"),
			"error":   err.Error(),
		})
		return
	}

	if err := s.mailer.Send(c.Request.Context(), msg); err != nil {
		logger().Error("error sending contact email",
			zap.String("request_id", c.GetString(correlationIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": l.T("contact.errorMessage")})
		return
	}

	logger().Info("contact email sent", zap.String("request_id", c.GetString(correlationIDKey)))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": l.T("contact.successMessage")})
}
