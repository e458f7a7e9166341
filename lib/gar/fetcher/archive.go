package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func (i impl) Extract(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return errors.Wrap(ErrPackageIntegrity, err.Error())
	}
	defer reader.Close()

	if err = os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrap(err, "ошибка создания директории распаковки")
	}

	extracted := 0
	for _, file := range reader.File {
		if err = extractFile(file, destDir); err != nil {
			return err
		}
		extracted++
	}
	log.
		WithField("archive", archivePath).
		WithField("files", extracted).
		Info("архив распакован")
	return nil
}

func extractFile(file *zip.File, destDir string) error {
	// защита от путей, выводящих запись за пределы destDir
	cleaned := filepath.Clean(file.Name)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return errors.Wrapf(ErrPackageIntegrity, "недопустимый путь в архиве: %v", file.Name)
	}
	target := filepath.Join(destDir, cleaned)

	if file.FileInfo().IsDir() {
		return errors.Wrap(os.MkdirAll(target, 0o755), "ошибка создания директории")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(err, "ошибка создания директории")
	}

	in, err := file.Open()
	if err != nil {
		return errors.Wrap(ErrPackageIntegrity, err.Error())
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return errors.Wrap(err, "ошибка создания файла")
	}
	_, err = io.Copy(out, in)
	closeErr := out.Close()
	if err != nil {
		return errors.Wrap(ErrPackageIntegrity, err.Error())
	}
	if closeErr != nil {
		return errors.Wrap(closeErr, "ошибка записи файла")
	}
	return nil
}
