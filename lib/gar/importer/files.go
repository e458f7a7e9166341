package importer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FileKind - вид файла выгрузки, определяется по префиксу имени
type FileKind string

const (
	KindAddressObjects FileKind = "AS_ADDR_OBJ"
	KindMunHierarchy   FileKind = "AS_MUN_HIERARCHY"
	KindAdmHierarchy   FileKind = "AS_ADM_HIERARCHY"
	KindHouses         FileKind = "AS_HOUSES"
	KindSteads         FileKind = "AS_STEADS"
	KindHouseParams    FileKind = "AS_HOUSES_PARAMS"
	KindSteadParams    FileKind = "AS_STEADS_PARAMS"
	KindUnknown        FileKind = ""
)

// packageFiles - файлы одной выгрузки, сгруппированные по виду
// и отсортированные по имени
type packageFiles struct {
	AddressObjects []string
	MunHierarchy   []string
	AdmHierarchy   []string
	Houses         []string
	Steads         []string
	HouseParams    []string
	SteadParams    []string
	SkippedFiles   int
}

// classifyFile сопоставляет имя файла виду. Длинные префиксы
// проверяются раньше коротких: AS_HOUSES_PARAMS не является AS_HOUSES,
// AS_ADDR_OBJ_DIVISION и прочие служебные файлы не загружаются
func classifyFile(name string) FileKind {
	base := strings.ToUpper(filepath.Base(name))
	if !strings.HasSuffix(base, ".XML") {
		return KindUnknown
	}
	switch {
	case strings.HasPrefix(base, "AS_HOUSES_PARAMS_"):
		return KindHouseParams
	case strings.HasPrefix(base, "AS_STEADS_PARAMS_"):
		return KindSteadParams
	case strings.HasPrefix(base, "AS_HOUSES_"):
		return KindHouses
	case strings.HasPrefix(base, "AS_STEADS_"):
		return KindSteads
	case strings.HasPrefix(base, "AS_MUN_HIERARCHY_"):
		return KindMunHierarchy
	case strings.HasPrefix(base, "AS_ADM_HIERARCHY_"):
		return KindAdmHierarchy
	case strings.HasPrefix(base, "AS_ADDR_OBJ_PARAMS_"),
		strings.HasPrefix(base, "AS_ADDR_OBJ_DIVISION_"):
		return KindUnknown
	case strings.HasPrefix(base, "AS_ADDR_OBJ_"):
		return KindAddressObjects
	}
	return KindUnknown
}

// collectFiles обходит распакованную выгрузку. Выгрузка делится на
// региональные поддиректории; при заданном коде региона читается
// только его поддиректория
func collectFiles(dir, regionCode string) (*packageFiles, error) {
	root := dir
	if regionCode != "" {
		regionDir := filepath.Join(dir, regionCode)
		if info, err := os.Stat(regionDir); err == nil && info.IsDir() {
			root = regionDir
		}
	}

	out := &packageFiles{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		switch classifyFile(path) {
		case KindAddressObjects:
			out.AddressObjects = append(out.AddressObjects, path)
		case KindMunHierarchy:
			out.MunHierarchy = append(out.MunHierarchy, path)
		case KindAdmHierarchy:
			out.AdmHierarchy = append(out.AdmHierarchy, path)
		case KindHouses:
			out.Houses = append(out.Houses, path)
		case KindSteads:
			out.Steads = append(out.Steads, path)
		case KindHouseParams:
			out.HouseParams = append(out.HouseParams, path)
		case KindSteadParams:
			out.SteadParams = append(out.SteadParams, path)
		default:
			out.SkippedFiles++
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "ошибка обхода директории выгрузки")
	}
	for _, group := range [][]string{
		out.AddressObjects, out.MunHierarchy, out.AdmHierarchy,
		out.Houses, out.Steads, out.HouseParams, out.SteadParams,
	} {
		sort.Strings(group)
	}
	return out, nil
}

func (p packageFiles) total() int {
	return len(p.AddressObjects) + len(p.MunHierarchy) + len(p.AdmHierarchy) +
		len(p.Houses) + len(p.Steads) + len(p.HouseParams) + len(p.SteadParams)
}
