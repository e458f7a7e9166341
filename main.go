package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberRecover "github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"gar-loader/config"
	apiv1 "gar-loader/controllers/v1"
	"gar-loader/db"
	"gar-loader/fiberlog"
	"gar-loader/initializers"
	xlsexport "gar-loader/lib/export/xls"
	"gar-loader/lib/gar"
	"gar-loader/lib/gar/updater"
	"gar-loader/models"
)

func main() {
	var (
		fullImport = flag.Bool("full", false, "полная загрузка реестра")
		update     = flag.Bool("update", false, "однократное применение накопившихся обновлений")
		check      = flag.Bool("check", false, "проверка наличия обновлений без применения")
		force      = flag.Bool("force", false, "повторное применение текущей версии при отсутствии новых")
		dir        = flag.String("dir", "", "директория с распакованной полной выгрузкой (для -full)")
	)
	flag.Parse()

	mode := models.RunModeDaemon
	switch {
	case *fullImport:
		mode = models.RunModeFullImport
	case *update:
		mode = models.RunModeUpdate
	case *check:
		mode = models.RunModeCheckOnly
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initializers.InitAllServices(ctx, mode)
	log.WithField("run_mode", mode).Info("запуск")

	switch mode {
	case models.RunModeFullImport:
		run, err := gar.Instance.FullImport(ctx, *dir)
		finishRun(run, err)
	case models.RunModeUpdate:
		run, err := gar.Instance.RunOnce(ctx, *force)
		finishRun(run, err)
	case models.RunModeCheckOnly:
		result, err := gar.Instance.Check(ctx)
		if err != nil {
			log.WithError(err).Error("проверка обновлений не выполнена")
			os.Exit(1)
		}
		log.
			WithField("current_version", result.CurrentVersion).
			WithField("latest_version", result.LatestVersion).
			WithField("pending", len(result.Pending)).
			WithField("missing_deltas", len(result.MissingDeltas)).
			Info("проверка обновлений выполнена")
	case models.RunModeDaemon:
		runDaemon(ctx, cancel)
	}
}

func finishRun(run *updater.RunResult, err error) {
	saveSummary(run)
	if err != nil {
		log.WithError(err).Error("загрузка завершилась ошибкой")
		os.Exit(1)
	}
}

func saveSummary(run *updater.RunResult) {
	path := config.Conf.Gar.SummaryXLSXPath
	if run == nil || path == "" || len(run.Deltas) == 0 {
		return
	}
	if err := xlsexport.Instance.SaveRunSummary(run, path); err != nil {
		log.WithError(err).Warn("сводка загрузки не сохранена")
	}
}

func runDaemon(ctx context.Context, cancel context.CancelFunc) {
	app := fiber.New()
	app.Use(fiberRecover.New())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingDB(); err != nil {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}
		return c.SendString("ok")
	})

	apiV1 := fiber.New()
	apiV1.Use(fiberlog.New(*initializers.LoggerConfig))
	app.Mount("/api/v1", apiV1)

	garApi := fiber.New()
	apiV1.Mount("/gar", garApi)
	apiv1.InitGarApiRouters(garApi, gar.Instance)

	// gracefully shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	wg := sync.WaitGroup{}
	go func() {
		<-c
		wg.Add(1)
		defer wg.Done()
		log.Info("Gracefully shutting down...")
		cancel()
		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("Error when try gracefully shutting down")
		}
		time.Sleep(time.Second)
		log.Info("Gracefully shutting down finished")
	}()

	if err := app.Listen(fmt.Sprintf("%s:%d", config.Conf.App.ListenAddr, config.Conf.App.Port)); err != nil {
		log.Fatal(err)
	}

	wg.Wait()
	log.Info("HTTP server successfully stopped")
}
