package initializers

import (
	"context"

	log "github.com/sirupsen/logrus"

	"gar-loader/config"
	s3client "gar-loader/s3"
)

func InitS3() {
	if !*config.Conf.S3.Enabled {
		log.Info("S3 хранилище архивов выключено")
		return
	}
	client, err := s3client.NewClient()
	if err != nil {
		log.WithError(err).Error("Ошибка инициализации клиента S3")
		return
	}
	if err = client.MakeBucket(context.Background()); err != nil {
		log.WithError(err).Error("Ошибка создания корзины S3")
		return
	}

	s3client.Client = client
	log.Info("S3 клиент успешно инициализирован")
}
