package garworker

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"gar-loader/config"
	xlsexport "gar-loader/lib/export/xls"
	"gar-loader/lib/gar/updater"
	"gar-loader/lib/smtp"
	baseworker "gar-loader/lib/utils/base-worker"
	"gar-loader/models"
)

// Задача периодического обновления реестра. Сбой цикла не
// останавливает демона: оператор получает письмо, следующая
// попытка - через обычный интервал

type impl struct {
	*baseworker.BaseImpl
	upd updater.Provider
}

func StartWorker(ctx context.Context, upd updater.Provider) {
	interval := time.Duration(config.Conf.Gar.UpdateIntervalMin) * time.Minute
	i := &impl{
		BaseImpl: baseworker.NewInstance("GarUpdateJob", 10*time.Second, interval),
		upd:      upd,
	}
	go i.Run(ctx, i.handle)
}

func (i impl) handle(ctx context.Context) {
	logger := i.GetLogger()
	run, err := i.upd.RunOnce(ctx, false)
	if err != nil {
		if errors.Is(err, updater.ErrLeaseHeld) {
			logger.Info("обновление выполняет другой экземпляр, цикл пропущен")
			return
		}
		logger.WithError(err).Error("цикл обновления завершился ошибкой")
		i.notifyFailure(run, err)
		return
	}
	if run.State == models.UpdateStateNoUpdates {
		return
	}
	i.saveSummary(run)
}

func (i impl) saveSummary(run *updater.RunResult) {
	path := config.Conf.Gar.SummaryXLSXPath
	if path == "" || xlsexport.Instance == nil {
		return
	}
	if err := xlsexport.Instance.SaveRunSummary(run, path); err != nil {
		i.GetLogger().WithError(err).Warn("сводка обновления не сохранена")
	}
}

func (i impl) notifyFailure(run *updater.RunResult, runErr error) {
	if smtp.Instance == nil {
		return
	}
	body := fmt.Sprintf("Цикл обновления ГАР завершился ошибкой: %v\n", runErr)
	if run != nil {
		body += fmt.Sprintf("Состояние: %v\n", run.State.ToHuman())
		for _, delta := range run.Deltas {
			if delta.Err != "" {
				body += fmt.Sprintf("Версия %v: %v\n", delta.VersionID, delta.Err)
			}
		}
	}
	err := smtp.Instance.SendEMail(config.Conf.Smtp.NotifyTo, "сбой обновления", body)
	if err != nil {
		i.GetLogger().WithError(err).Warn("уведомление о сбое не отправлено")
	}
}
