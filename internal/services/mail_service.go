package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"path/filepath"
	"strconv"
	"strings"

	"portfolio/internal/config"

	"go.uber.org/zap"
)

type MailService struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	Enabled  bool

	templateDir string
	log         *zap.Logger
}

func NewMailService(cfg *config.Config, log *zap.Logger) *MailService {
	enabled := cfg.SMTPHost != "" && cfg.SMTPUser != "" && cfg.SMTPPassword != "" && cfg.SMTPFrom != ""
	if !enabled {
		log.Warn("MailService disabled: missing SMTP environment variables")
	}

	return &MailService{
		Host:        cfg.SMTPHost,
		Port:        strconv.Itoa(cfg.SMTPPort),
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		Enabled:     enabled,
		templateDir: filepath.Join("web", "templates", "email"),
		log:         log,
	}
}

func (s *MailService) sendAsync(to []string, subject string, body string) {
	if !s.Enabled {
		return
	}

	go func() {
		auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
		addr := fmt.Sprintf("%s:%s", s.Host, s.Port)

		mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
		msg := []byte(fmt.Sprintf("To: %s\r\n"+
			"From: Portfolio <%s>\r\n"+
			"Subject: %s\r\n"+
			"%s\r\n%s", strings.Join(to, ","), s.From, subject, mime, body))

		if err := smtp.SendMail(addr, auth, s.From, to, msg); err != nil {
			s.log.Error("Failed to send email",
				zap.Strings("to", to),
				zap.String("side_effect", "mail"),
				zap.Error(err),
			)
			return
		}
		s.log.Info("Email sent", zap.Strings("to", to), zap.String("subject", subject))
	}()
}

func (s *MailService) parseTemplate(templateName string, data interface{}) (string, error) {
	path := filepath.Join(s.templateDir, templateName)
	t, err := template.ParseFiles(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", templateName, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", templateName, err)
	}
	return buf.String(), nil
}

// SendCommentNotification 评论或回复提醒
func (s *MailService) SendCommentNotification(email, actorName, projectTitle, content, link string, reply bool) {
	if !s.Enabled || email == "" {
		return
	}
	data := map[string]interface{}{
		"ActorName":    actorName,
		"ProjectTitle": projectTitle,
		"Content":      content,
		"Link":         link,
		"Reply":        reply,
	}
	body, err := s.parseTemplate("comment.html", data)
	if err != nil {
		s.log.Error("Error rendering comment email", zap.Error(err))
		return
	}

	subject := "💬 " + actorName + " commented on " + projectTitle
	if reply {
		subject = "💬 " + actorName + " replied to your comment on " + projectTitle
	}
	s.sendAsync([]string{email}, subject, body)
}

// SendContactNotification 联系表单转发给站长
func (s *MailService) SendContactNotification(ownerEmail, name, email, subject, message string) {
	if !s.Enabled || ownerEmail == "" {
		return
	}
	body, err := s.parseTemplate("contact.html", map[string]string{
		"Name":    name,
		"Email":   email,
		"Subject": subject,
		"Message": message,
	})
	if err != nil {
		s.log.Error("Error rendering contact email", zap.Error(err))
		return
	}
	if subject == "" {
		subject = "(no subject)"
	}
	s.sendAsync([]string{ownerEmail}, "📬 [Contact] "+subject, body)
}
