package smtp

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

var Instance Provider

type Provider interface {
	SendEMail(to, subject, message string) error
}

func Connect(host string, port int, user, password, from string) {
	Instance = &impl{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
	}
}

type impl struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

func (i impl) SendEMail(to, subject, message string) error {
	logger := log.WithField("mail_to", to)
	if i.host == "" || to == "" {
		logger.Warn("Письмо не отправлено, тк не настроен smtp клиент")
		return nil
	}
	m := gomail.NewMessage()
	m.SetHeader("From", i.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "GAR Loader - "+subject)
	m.SetBody("text/plain", message)

	d := gomail.NewDialer(i.host, i.port, i.user, i.password)
	if err := d.DialAndSend(m); err != nil {
		logger.WithError(err).Error("Ошибка отправки сообщения")
		return errors.Wrap(err, "ошибка отправки письма")
	}
	return nil
}
