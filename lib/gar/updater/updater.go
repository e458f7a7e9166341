package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"gar-loader/lib/gar/backup"
	"gar-loader/lib/gar/fetcher"
	"gar-loader/lib/gar/importer"
	"gar-loader/models"
	garapimodels "gar-loader/models/api/gar"
)

// Цикл обновления: обнаружение новых версий, скачивание и применение
// дельт строго по возрастанию. Перед каждой дельтой снимается бэкап;
// сбой применения откатывает таблицы к снимку и останавливает цикл,
// уже применённые дельты остаются. Роль применения защищена арендой
// в БД, второй экземпляр пропускает цикл

var ErrLeaseHeld = errors.New("аренда обновления занята другим экземпляром")

type Provider interface {
	// Check - только обнаружение, без скачивания и применения
	Check(ctx context.Context) (*CheckResult, error)
	// RunOnce применяет все неприменённые дельты; force повторно
	// применяет последнюю версию при отсутствии новых
	RunOnce(ctx context.Context, force bool) (*RunResult, error)
	// FullImport загружает полную выгрузку: из localDir, либо
	// скачиванием последней опубликованной при пустом аргументе
	FullImport(ctx context.Context, localDir string) (*RunResult, error)
	Status() Status
}

type CheckResult struct {
	CurrentVersion int64                      `json:"current_version"`
	LatestVersion  int64                      `json:"latest_version"`
	Pending        []garapimodels.VersionInfo `json:"pending"`
	// версии новее текущей, у которых нет дельты: их изменения
	// доступны только полной перезагрузкой
	MissingDeltas []int64 `json:"missing_deltas,omitempty"`
}

type DeltaResult struct {
	VersionID   int64            `json:"version_id"`
	TextVersion string           `json:"text_version"`
	Import      *importer.Result `json:"import,omitempty"`
	Err         string           `json:"error,omitempty"`
}

type RunResult struct {
	Mode       models.RunMode     `json:"mode"`
	State      models.UpdateState `json:"state"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Deltas     []DeltaResult      `json:"deltas"`
}

type Status struct {
	State     models.UpdateState `json:"state"`
	LastRun   *RunResult         `json:"last_run,omitempty"`
	LastRunAt time.Time          `json:"last_run_at"`
}

type Deps struct {
	Fetcher  fetcher.Provider
	Importer importer.Provider
	Backup   backup.Provider
	Versions VersionStore
}

type Options struct {
	WorkDir  string
	LeaseTTL time.Duration
	// снимок всего набора таблиц перед дельтой вместо только затронутых
	BackupWholeDataset  bool
	BackupRetentionDays int
	UpdateRetentionDays int
}

func NewInstance(deps Deps, opts Options) Provider {
	if opts.LeaseTTL <= 0 {
		opts.LeaseTTL = 2 * time.Hour
	}
	if opts.BackupRetentionDays <= 0 {
		opts.BackupRetentionDays = 30
	}
	if opts.UpdateRetentionDays <= 0 {
		opts.UpdateRetentionDays = 7
	}
	holder, _ := os.Hostname()
	return &impl{
		deps:   deps,
		opts:   opts,
		holder: fmt.Sprintf("%v-%v", holder, os.Getpid()),
		state:  models.UpdateStateIdle,
	}
}

type impl struct {
	deps   Deps
	opts   Options
	holder string

	mu        sync.RWMutex
	state     models.UpdateState
	lastRun   *RunResult
	lastRunAt time.Time
}

func (i *impl) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Status{
		State:     i.state,
		LastRun:   i.lastRun,
		LastRunAt: i.lastRunAt,
	}
}

func (i *impl) setState(state models.UpdateState) {
	i.mu.Lock()
	i.state = state
	i.mu.Unlock()
	log.WithField("update_state", state.ToHuman()).Info("смена состояния цикла обновления")
}

func (i *impl) finishRun(run *RunResult, state models.UpdateState) *RunResult {
	run.State = state
	run.FinishedAt = time.Now()
	i.mu.Lock()
	i.state = state
	i.lastRun = run
	i.lastRunAt = run.FinishedAt
	i.mu.Unlock()
	log.WithField("update_state", state.ToHuman()).Info("цикл обновления завершён")
	return run
}

// enterDiscovering переводит цикл в обнаружение, если не идёт
// применение: Check не должен затирать состояние работающего цикла
func (i *impl) enterDiscovering() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == models.UpdateStateApplying || i.state == models.UpdateStateDiscovering {
		return false
	}
	i.state = models.UpdateStateDiscovering
	return true
}

func (i *impl) leaveDiscovering() {
	i.mu.Lock()
	if i.state == models.UpdateStateDiscovering {
		i.state = models.UpdateStateIdle
	}
	i.mu.Unlock()
}

func (i *impl) Check(ctx context.Context) (*CheckResult, error) {
	if i.enterDiscovering() {
		defer i.leaveDiscovering()
	}

	current, err := i.deps.Versions.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := i.deps.Fetcher.LatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	pending, missing, err := i.deps.Fetcher.PendingVersions(ctx, current)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		CurrentVersion: current,
		LatestVersion:  latest.VersionID,
		Pending:        pending,
		MissingDeltas:  missing,
	}, nil
}

func (i *impl) RunOnce(ctx context.Context, force bool) (*RunResult, error) {
	run := &RunResult{Mode: models.RunModeUpdate, StartedAt: time.Now()}
	i.setState(models.UpdateStateDiscovering)

	current, err := i.deps.Versions.CurrentVersion(ctx)
	if err != nil {
		return i.finishRun(run, models.UpdateStateIdle), err
	}
	afterVersion := current
	if force && current > 0 {
		// повторное применение текущей версии
		afterVersion = current - 1
	}
	pending, missing, err := i.deps.Fetcher.PendingVersions(ctx, afterVersion)
	if err != nil {
		return i.finishRun(run, models.UpdateStateIdle), err
	}
	if len(missing) > 0 {
		// изменения этих версий дельтами не покрыты
		log.WithField("versions", missing).
			Warn("у части новых версий нет дельты, требуется полная перезагрузка")
	}
	if len(pending) == 0 {
		log.WithField("current_version", current).Info("обновлений нет")
		return i.finishRun(run, models.UpdateStateNoUpdates), nil
	}

	acquired, err := i.deps.Versions.AcquireLease(ctx, i.holder, i.opts.LeaseTTL)
	if err != nil {
		return i.finishRun(run, models.UpdateStateIdle), err
	}
	if !acquired {
		log.Info("аренда обновления занята, цикл пропущен")
		return i.finishRun(run, models.UpdateStateIdle), ErrLeaseHeld
	}
	defer func() {
		if err := i.deps.Versions.ReleaseLease(context.Background(), i.holder); err != nil {
			log.WithError(err).Warn("не удалось освободить аренду обновления")
		}
	}()

	i.setState(models.UpdateStateApplying)
	for _, info := range pending {
		delta, err := i.applyDelta(ctx, info)
		run.Deltas = append(run.Deltas, delta)
		if err != nil {
			// цикл останавливается: более поздние дельты зависят от этой
			return i.finishRun(run, models.UpdateStateRolledBack), err
		}
		// продление на каждую дельту, применение может идти долго
		if _, err = i.deps.Versions.AcquireLease(ctx, i.holder, i.opts.LeaseTTL); err != nil {
			return i.finishRun(run, models.UpdateStateRolledBack), err
		}
	}

	i.cleanup(ctx)
	return i.finishRun(run, models.UpdateStateCommitted), nil
}

// applyDelta - одна версия: скачивание с проверкой целостности,
// распаковка, снимок таблиц, импорт, отметка версии. Любая ошибка
// после снимка восстанавливает таблицы из него
func (i *impl) applyDelta(ctx context.Context, info garapimodels.VersionInfo) (DeltaResult, error) {
	out := DeltaResult{VersionID: info.VersionID, TextVersion: info.TextVersion}
	logger := log.WithField("version_id", info.VersionID)
	logger.Info("применение дельты")

	downloadDir := filepath.Join(i.opts.WorkDir, "updates")
	archivePath, err := i.deps.Fetcher.DownloadDelta(ctx, info, downloadDir)
	if err != nil {
		out.Err = err.Error()
		return out, err
	}
	extractDir := filepath.Join(downloadDir, fmt.Sprintf("delta_%v", info.VersionID))
	if err = i.deps.Fetcher.Extract(archivePath, extractDir); err != nil {
		out.Err = err.Error()
		return out, err
	}

	tables := importer.AllTables()
	if !i.opts.BackupWholeDataset {
		if tables, err = i.deps.Importer.AffectedTables(extractDir); err != nil {
			out.Err = err.Error()
			return out, err
		}
	}
	rec, err := i.deps.Backup.Snapshot(ctx, info.VersionID, tables)
	if err != nil {
		out.Err = err.Error()
		return out, err
	}

	result, err := i.deps.Importer.ImportDirectory(ctx, extractDir)
	if err != nil {
		out.Err = err.Error()
		logger.WithError(err).Error("дельта не применена, откат к снимку")
		if restoreErr := i.deps.Backup.Restore(ctx, rec); restoreErr != nil {
			logger.WithError(restoreErr).Error("откат к снимку не выполнен")
		}
		return out, err
	}
	out.Import = result

	if err = i.deps.Versions.MarkApplied(ctx, info); err != nil {
		out.Err = err.Error()
		logger.WithError(err).Error("версия не отмечена, откат к снимку")
		if restoreErr := i.deps.Backup.Restore(ctx, rec); restoreErr != nil {
			logger.WithError(restoreErr).Error("откат к снимку не выполнен")
		}
		return out, err
	}

	if err = i.deps.Backup.ArchiveDelta(ctx, info.VersionID, archivePath); err != nil {
		// применённую дельту ошибка выгрузки архива не отменяет
		logger.WithError(err).Warn("архив дельты не выгружен во внешнее хранилище")
	}
	logger.Info("дельта применена")
	return out, nil
}

func (i *impl) FullImport(ctx context.Context, localDir string) (*RunResult, error) {
	run := &RunResult{Mode: models.RunModeFullImport, StartedAt: time.Now()}
	i.setState(models.UpdateStateApplying)

	acquired, err := i.deps.Versions.AcquireLease(ctx, i.holder, i.opts.LeaseTTL)
	if err != nil {
		return i.finishRun(run, models.UpdateStateIdle), err
	}
	if !acquired {
		return i.finishRun(run, models.UpdateStateIdle), ErrLeaseHeld
	}
	defer func() {
		if err := i.deps.Versions.ReleaseLease(context.Background(), i.holder); err != nil {
			log.WithError(err).Warn("не удалось освободить аренду обновления")
		}
	}()

	// версия пакета известна только из ленты; для локальной директории
	// отметка ставится по последней опубликованной версии
	latest, feedErr := i.deps.Fetcher.LatestVersion(ctx)

	importDir := localDir
	if importDir == "" {
		if feedErr != nil {
			return i.finishRun(run, models.UpdateStateIdle), feedErr
		}
		downloadDir := filepath.Join(i.opts.WorkDir, "full")
		archivePath, err := i.deps.Fetcher.DownloadFull(ctx, *latest, downloadDir)
		if err != nil {
			return i.finishRun(run, models.UpdateStateIdle), err
		}
		importDir = filepath.Join(downloadDir, fmt.Sprintf("full_%v", latest.VersionID))
		if err = i.deps.Fetcher.Extract(archivePath, importDir); err != nil {
			return i.finishRun(run, models.UpdateStateIdle), err
		}
	}

	result, err := i.deps.Importer.ImportDirectory(ctx, importDir)
	if err != nil {
		return i.finishRun(run, models.UpdateStateRolledBack), err
	}
	delta := DeltaResult{Import: result}
	if feedErr == nil {
		delta.VersionID = latest.VersionID
		delta.TextVersion = latest.TextVersion
		if err = i.deps.Versions.MarkApplied(ctx, *latest); err != nil {
			return i.finishRun(run, models.UpdateStateRolledBack), err
		}
	} else {
		log.WithError(feedErr).Warn("лента версий недоступна, отметка версии пропущена")
	}
	run.Deltas = append(run.Deltas, delta)
	return i.finishRun(run, models.UpdateStateCommitted), nil
}

// cleanup - ретенция: скачанные выгрузки и снимки старше порога
func (i *impl) cleanup(ctx context.Context) {
	if i.opts.UpdateRetentionDays > 0 {
		dir := filepath.Join(i.opts.WorkDir, "updates")
		olderThan := time.Duration(i.opts.UpdateRetentionDays) * 24 * time.Hour
		if removed, err := i.deps.Fetcher.CleanupDownloads(dir, olderThan); err != nil {
			log.WithError(err).Warn("не удалось удалить устаревшие выгрузки")
		} else if removed > 0 {
			log.WithField("removed", removed).Info("устаревшие выгрузки удалены")
		}
	}
	if i.opts.BackupRetentionDays > 0 {
		if dropped, err := i.deps.Backup.Cleanup(ctx, i.opts.BackupRetentionDays); err != nil {
			log.WithError(err).Warn("не удалось удалить устаревшие бэкапы")
		} else if dropped > 0 {
			log.WithField("dropped", dropped).Info("устаревшие бэкапы удалены")
		}
	}
}
