package services

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"portfolio/internal/identity"
	"portfolio/internal/models"
	"portfolio/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxContactName    = 100
	maxContactSubject = 200
	maxContactMessage = 5000
)

type ContactInput struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Subject string `json:"subject" form:"subject"`
	Message string `json:"message" form:"message"`
}

type ContactService struct {
	store      store.Store
	mail       *MailService
	ownerEmail string
	log        *zap.Logger
	now        func() time.Time
}

func NewContactService(st store.Store, mail *MailService, ownerEmail string, log *zap.Logger) *ContactService {
	return &ContactService{
		store:      st,
		mail:       mail,
		ownerEmail: ownerEmail,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// singleLine 去掉换行，防止邮件头注入
func singleLine(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}

func (in ContactInput) normalize() (ContactInput, error) {
	out := ContactInput{
		Name:    singleLine(in.Name),
		Subject: singleLine(in.Subject),
		Message: strings.TrimSpace(in.Message),
	}
	switch {
	case out.Name == "":
		return out, invalid("name is required")
	case utf8.RuneCountInString(out.Name) > maxContactName:
		return out, invalid("name exceeds %d characters", maxContactName)
	case utf8.RuneCountInString(out.Subject) > maxContactSubject:
		return out, invalid("subject exceeds %d characters", maxContactSubject)
	case out.Message == "":
		return out, invalid("message is required")
	case utf8.RuneCountInString(out.Message) > maxContactMessage:
		return out, invalid("message exceeds %d characters", maxContactMessage)
	}

	addr, err := mail.ParseAddress(singleLine(in.Email))
	if err != nil {
		return out, invalid("email address is invalid")
	}
	out.Email = addr.Address
	return out, nil
}

// Submit 保存联系表单并异步转发给站长。匿名提交必须先通过验证码（human 由调用方校验）。
func (s *ContactService) Submit(ctx context.Context, actor *identity.Actor, in ContactInput, human bool) (*models.ContactMessage, error) {
	if actor == nil && !human {
		return nil, invalid("captcha answer is wrong")
	}
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	m := &models.ContactMessage{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Subject:   in.Subject,
		Message:   in.Message,
		CreatedAt: s.now(),
	}
	if actor != nil {
		m.UserID = actor.UserID
	}
	if err := s.store.CreateContactMessage(ctx, m); err != nil {
		return nil, err
	}

	s.log.Info("Contact message received", zap.String("message_id", m.ID), zap.String("email", m.Email))
	if s.mail != nil {
		s.mail.SendContactNotification(s.ownerEmail, m.Name, m.Email, m.Subject, m.Message)
	}
	return m, nil
}

func (s *ContactService) List(ctx context.Context, actor *identity.Actor, limit int) ([]models.ContactMessage, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	return s.store.ListContactMessages(ctx, limit)
}

func (s *ContactService) MarkHandled(ctx context.Context, actor *identity.Actor, id string, handled bool) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrPermissionDenied
	}
	return s.store.MarkContactHandled(ctx, id, handled)
}
