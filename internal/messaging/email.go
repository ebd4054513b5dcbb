package messaging

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"go.uber.org/zap"

	"github.com/liaxp/backend/pkg/config"
	"github.com/liaxp/backend/pkg/logger"
)

// Mailer sends operator-facing email, currently the post-run delivery digest.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg config.EmailConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *Mailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Info("Email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// SendRunDigest mails the outcome of a scheduled delivery run.
func (m *Mailer) SendRunDigest(to, companyID, moment string, sent, failed int) error {
	subject := fmt.Sprintf("[LiaXP] Envio %s concluído - %d enviadas, %d falhas", moment, sent, failed)
	body := fmt.Sprintf(`<h3>Resumo do envio</h3>
<p>Empresa: %s<br>
Momento: %s<br>
Mensagens enviadas: %d<br>
Falhas: %d</p>`, companyID, moment, sent, failed)

	return m.Send(to, subject, body)
}
