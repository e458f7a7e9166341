package xlsexport

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"gar-loader/lib/gar/updater"
)

type Provider interface {
	// ExportRunSummary - итоговая сводка цикла обновления: по строке
	// на каждую применённую дельту
	ExportRunSummary(run *updater.RunResult) (*bytes.Buffer, error)
	SaveRunSummary(run *updater.RunResult, path string) error
}

var Instance Provider

func NewHandler() {
	Instance = impl{}
}

type impl struct{}

var summaryHeaders = []string{
	"Версия", "Описание", "Файлов", "Записей разобрано", "Ошибок разбора",
	"Строк загружено", "Параметров применено", "Покрытие домов", "Длительность", "Ошибка",
}

func (i impl) ExportRunSummary(run *updater.RunResult) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Error("ошибка закрытия файла")
		}
	}()
	sheet := "Sheet1"
	row := 0
	row, err := writeHeader(f, sheet, row, summaryHeaders)
	if err != nil {
		return nil, errors.Wrap(err, "ошибка формирования заголовка в xlsx")
	}
	for _, delta := range run.Deltas {
		row++
		if err = writeDeltaRow(f, sheet, row, delta); err != nil {
			return nil, errors.Wrap(err, "ошибка формирования таблицы с данными в xlsx")
		}
	}
	f.SetSheetName(sheet, "Обновления")
	return f.WriteToBuffer()
}

func (i impl) SaveRunSummary(run *updater.RunResult, path string) error {
	buf, err := i.ExportRunSummary(run)
	if err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, buf.Bytes(), 0o644), "ошибка записи файла сводки")
}

func writeDeltaRow(f *excelize.File, sheet string, row int, delta updater.DeltaResult) error {
	col := 1
	if err := writeColumn(f, sheet, col, row, delta.VersionID); err != nil {
		return err
	}

	col++
	if err := writeColumn(f, sheet, col, row, delta.TextVersion); err != nil {
		return err
	}

	res := delta.Import
	if res != nil {
		col++
		if err := writeColumn(f, sheet, col, row, res.Files); err != nil {
			return err
		}

		col++
		if err := writeColumn(f, sheet, col, row, res.Decode.Decoded); err != nil {
			return err
		}

		col++
		if err := writeColumn(f, sheet, col, row, res.Decode.DecodeErrors); err != nil {
			return err
		}

		col++
		loaded := res.Loaded.Units + res.Loaded.Settlements + res.Loaded.Streets + res.Loaded.Houses + res.Loaded.Plots
		if err := writeColumn(f, sheet, col, row, loaded); err != nil {
			return err
		}

		col++
		if err := writeColumn(f, sheet, col, row, res.ParamsUpdated); err != nil {
			return err
		}

		col++
		ratio := res.Coverage.Ratios()["houses_linked"]
		if err := writeColumn(f, sheet, col, row, fmt.Sprintf("%.1f%%", ratio*100)); err != nil {
			return err
		}

		col++
		if err := writeColumn(f, sheet, col, row, res.Duration.String()); err != nil {
			return err
		}
	} else {
		col += 7
	}

	col++
	if delta.Err != "" {
		if err := writeColumn(f, sheet, col, row, delta.Err); err != nil {
			return err
		}
	}
	return nil
}
