package initializers

import (
	"gar-loader/config"
	"gar-loader/lib/smtp"
)

func InitSmtp() {
	smtp.Connect(config.Conf.Smtp.Host, config.Conf.Smtp.Port,
		config.Conf.Smtp.User, config.Conf.Smtp.Password, config.Conf.Smtp.From)
}
