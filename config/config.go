package config

import (
	"github.com/gotify/configor"
)

var Conf *Configuration

type Configuration struct {
	App struct {
		ListenAddr string `default:"" env:"APP_HOST"`
		Port       int    `default:"8080" env:"APP_PORT"`
	}
	Database struct {
		Host           string `default:"127.0.0.1" env:"DB_HOST"`
		Port           string `default:"5432" env:"DB_PORT"`
		Name           string `default:"gar" env:"DB_NAME"`
		User           string `default:"postgres" env:"DB_USER"`
		Password       string `default:"postgres" env:"DB_PASSWORD"`
		MigrateOnStart *bool  `default:"true" env:"DB_MIGRATE_ON_START"`
		DebugMode      *bool  `default:"false" env:"DB_DEBUG_MODE"`
	}
	Gar struct {
		// Корень сервиса публикации реестра
		SourceURL  string `default:"https://fias.nalog.ru/WebServices/Public" env:"GAR_SOURCE_URL"`
		RegionCode string `default:"" env:"GAR_REGION_CODE"`
		// Рабочая директория: сюда складываются выгрузки, обновления и бэкапы
		XMLDirectory string `default:"./gar_xml" env:"GAR_XML_DIRECTORY"`
		BatchSize    int    `default:"5000" env:"GAR_BATCH_SIZE"`
		// Интервал цикла демона, минуты
		UpdateIntervalMin int `default:"1440" env:"GAR_UPDATE_INTERVAL_MIN"`
		// Повторы запроса ленты версий при недоступности источника
		FetchRetries int `default:"5" env:"GAR_FETCH_RETRIES"`
		// Снимок всего набора таблиц перед дельтой вместо только затронутых
		BackupWholeDataset *bool `default:"false" env:"GAR_BACKUP_WHOLE_DATASET"`
		// Срок хранения бэкапов, дни
		BackupRetentionDays int `default:"30" env:"GAR_BACKUP_RETENTION_DAYS"`
		// Срок хранения скачанных архивов обновлений, дни
		UpdateRetentionDays int `default:"7" env:"GAR_UPDATE_RETENTION_DAYS"`
		// Путь выгрузки итоговой статистики в xlsx, пусто - не выгружать
		SummaryXLSXPath string `default:"" env:"GAR_SUMMARY_XLSX_PATH"`
	}
	S3 struct {
		Enabled         *bool  `default:"false" env:"S3_ENABLED"`
		Endpoint        string `default:"" env:"S3_ENDPOINT"`
		AccessKeyID     string `default:"" env:"S3_ACCESS_KEY_ID"`
		SecretAccessKey string `default:"" env:"S3_SECRET_ACCESS_KEY"`
		BucketName      string `default:"gar-archives" env:"S3_BUCKET_NAME"`
		UseSSL          *bool  `default:"true" env:"S3_USE_SSL"`
	}
	Smtp struct {
		Host     string `default:"" env:"SMTP_HOST"`
		Port     int    `default:"587" env:"SMTP_PORT"`
		User     string `default:"" env:"SMTP_USER"`
		Password string `default:"" env:"SMTP_PASSWORD"`
		From     string `default:"" env:"SMTP_FROM"`
		// Адрес оператора для уведомлений о сбоях обновления
		NotifyTo string `default:"" env:"SMTP_NOTIFY_TO"`
	}
}

func configFiles() []string {
	return []string{"config.yml"}
}

func InitConfig() {
	if Conf != nil {
		return
	}
	conf := new(Configuration)
	err := configor.New(&configor.Config{}).Load(conf, configFiles()...)
	if err != nil {
		panic(err)
	}
	Conf = conf
}
