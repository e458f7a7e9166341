package initializers

import (
	"context"

	"gar-loader/config"
	"gar-loader/fiberlog"
	xlsexport "gar-loader/lib/export/xls"
	"gar-loader/lib/gar"
	garworker "gar-loader/lib/gar/worker"
	"gar-loader/models"
)

var LoggerConfig *fiberlog.Config

func InitAllServices(ctx context.Context, mode models.RunMode) {
	LoggerConfig = InitLogger()
	config.InitConfig()
	InitDBConnection()
	InitS3()
	InitSmtp()
	xlsexport.NewHandler()
	gar.NewHandler()
	if mode == models.RunModeDaemon {
		garworker.StartWorker(ctx, gar.Instance)
	}
}
