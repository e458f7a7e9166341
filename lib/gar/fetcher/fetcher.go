package fetcher

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	garapimodels "gar-loader/models/api/gar"
)

// Ошибки источника разделены по способу обработки:
// недоступность переживается повторами, порча ленты и архивов - нет
var (
	ErrSourceUnavailable = errors.New("источник выгрузок недоступен")
	ErrSourceCorrupt     = errors.New("источник вернул некорректный ответ")
	ErrPackageIntegrity  = errors.New("архив не прошёл проверку целостности")
)

type Provider interface {
	// LatestVersion - последняя опубликованная версия ленты
	LatestVersion(ctx context.Context) (*garapimodels.VersionInfo, error)
	// PendingVersions - версии строго новее afterVersion, по
	// возрастанию. Версии без ссылки на дельту перечисляются отдельно:
	// их изменения доступны только полной перезагрузкой
	PendingVersions(ctx context.Context, afterVersion int64) (pending []garapimodels.VersionInfo, missingDelta []int64, err error)
	DownloadFull(ctx context.Context, info garapimodels.VersionInfo, destDir string) (archivePath string, err error)
	DownloadDelta(ctx context.Context, info garapimodels.VersionInfo, destDir string) (archivePath string, err error)
	Extract(archivePath, destDir string) error
	// CleanupDownloads удаляет скачанные архивы и распакованные
	// директории старше olderThan
	CleanupDownloads(dir string, olderThan time.Duration) (removed int, err error)
}

type impl struct {
	sourceURL string
	retries   int
	client    *http.Client
}

const feedPath string = "%s/GetAllDownloadFileInfo"

func NewInstance(sourceURL string, retries int) Provider {
	if retries <= 0 {
		retries = 5
	}
	return &impl{
		sourceURL: strings.TrimRight(sourceURL, "/"),
		retries:   retries,
		client:    &http.Client{Timeout: 10 * time.Minute},
	}
}

func (i impl) LatestVersion(ctx context.Context) (*garapimodels.VersionInfo, error) {
	feed, err := i.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}
	if len(feed) == 0 {
		return nil, errors.Wrap(ErrSourceCorrupt, "лента версий пуста")
	}
	latest := feed[0]
	for _, info := range feed[1:] {
		if info.VersionID > latest.VersionID {
			latest = info
		}
	}
	return &latest, nil
}

func (i impl) PendingVersions(ctx context.Context, afterVersion int64) ([]garapimodels.VersionInfo, []int64, error) {
	feed, err := i.fetchFeed(ctx)
	if err != nil {
		return nil, nil, err
	}
	pending := make([]garapimodels.VersionInfo, 0)
	missing := make([]int64, 0)
	for _, info := range feed {
		if info.VersionID <= afterVersion {
			continue
		}
		if info.GarXMLDeltaURL == "" {
			missing = append(missing, info.VersionID)
			continue
		}
		pending = append(pending, info)
	}
	sort.Slice(pending, func(a, b int) bool {
		return pending[a].VersionID < pending[b].VersionID
	})
	sort.Slice(missing, func(a, b int) bool { return missing[a] < missing[b] })
	if len(missing) > 0 {
		log.WithField("versions", missing).
			Warn("в ленте есть версии без дельты, их изменения дельтами не покрыты")
	}
	return pending, missing, nil
}

func (i impl) DownloadFull(ctx context.Context, info garapimodels.VersionInfo, destDir string) (string, error) {
	if info.GarXMLFullURL == "" {
		return "", errors.Wrap(ErrSourceCorrupt, "у версии нет ссылки на полную выгрузку")
	}
	name := fmt.Sprintf("gar_full_%v.zip", info.VersionID)
	return i.download(ctx, info.GarXMLFullURL, filepath.Join(destDir, name), 0, "")
}

func (i impl) DownloadDelta(ctx context.Context, info garapimodels.VersionInfo, destDir string) (string, error) {
	if info.GarXMLDeltaURL == "" {
		return "", errors.Wrap(ErrSourceCorrupt, "у версии нет ссылки на дельту")
	}
	name := fmt.Sprintf("gar_delta_%v.zip", info.VersionID)
	return i.download(ctx, info.GarXMLDeltaURL, filepath.Join(destDir, name), info.DeltaSize, info.DeltaMd5)
}

func (i impl) fetchFeed(ctx context.Context) ([]garapimodels.VersionInfo, error) {
	uri := fmt.Sprintf(feedPath, i.sourceURL)
	logger := log.WithField("external_request", uri)

	var feed []garapimodels.VersionInfo
	operation := func() error {
		body, err := i.get(ctx, uri)
		if err != nil {
			logger.WithError(err).Warn("лента версий недоступна, будет повтор")
			return err
		}
		if err = json.Unmarshal(body, &feed); err != nil {
			logger.WithError(err).Error("ошибка сериализации ленты версий")
			return backoff.Permanent(errors.Wrap(ErrSourceCorrupt, err.Error()))
		}
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(i.retries)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return feed, nil
}

// download пишет тело ответа в destPath, попутно считая md5.
// Непустые wantSize/wantMd5 сверяются после скачивания, битый файл удаляется
func (i impl) download(ctx context.Context, uri, destPath string, wantSize int64, wantMd5 string) (string, error) {
	logger := log.
		WithField("external_request", uri).
		WithField("dest_path", destPath)

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", errors.Wrap(err, "ошибка создания директории выгрузки")
	}

	r, _ := http.NewRequestWithContext(ctx, "GET", uri, nil)
	response, err := i.client.Do(r)
	if err != nil {
		logger.WithError(err).Error("ошибка скачивания архива")
		return "", errors.Wrap(ErrSourceUnavailable, err.Error())
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		logger.WithField("response_status_code", response.StatusCode).Error("ошибка скачивания архива")
		return "", errors.Wrapf(ErrSourceUnavailable, "статус ответа %v", response.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return "", errors.Wrap(err, "ошибка создания файла архива")
	}
	hash := md5.New()
	written, err := io.Copy(out, io.TeeReader(response.Body, hash))
	closeErr := out.Close()
	if err != nil {
		os.Remove(destPath)
		return "", errors.Wrap(ErrSourceUnavailable, err.Error())
	}
	if closeErr != nil {
		os.Remove(destPath)
		return "", errors.Wrap(closeErr, "ошибка записи файла архива")
	}

	if wantSize > 0 && written != wantSize {
		os.Remove(destPath)
		return "", errors.Wrapf(ErrPackageIntegrity, "размер %v, ожидался %v", written, wantSize)
	}
	if wantMd5 != "" {
		gotMd5 := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(gotMd5, wantMd5) {
			os.Remove(destPath)
			return "", errors.Wrapf(ErrPackageIntegrity, "md5 %v, ожидался %v", gotMd5, wantMd5)
		}
	}
	logger.WithField("size", written).Info("архив скачан")
	return destPath, nil
}

func (i impl) get(ctx context.Context, uri string) ([]byte, error) {
	r, _ := http.NewRequestWithContext(ctx, "GET", uri, nil)
	r.Header.Add("Content-Type", "application/json")
	response, err := i.client.Do(r)
	if err != nil {
		return nil, errors.Wrap(ErrSourceUnavailable, err.Error())
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, errors.Wrap(ErrSourceUnavailable, err.Error())
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, errors.Wrapf(ErrSourceUnavailable, "статус ответа %v", response.StatusCode)
	}
	return body, nil
}

func (i impl) CleanupDownloads(dir string, olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "ошибка чтения директории выгрузок")
	}
	deadline := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(deadline) {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if err = os.RemoveAll(full); err != nil {
			log.WithError(err).WithField("path", full).Warn("не удалось удалить устаревшую выгрузку")
			continue
		}
		removed++
	}
	return removed, nil
}
