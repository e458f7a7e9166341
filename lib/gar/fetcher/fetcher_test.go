package fetcher

import (
	"archive/zip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	garapimodels "gar-loader/models/api/gar"
)

const feedBody = `[
	{"VersionId": 20230101, "TextVersion": "Обновление от 01.01.2023", "GarXMLFullURL": "%[1]s/full/20230101", "GarXMLDeltaURL": ""},
	{"VersionId": 20230115, "TextVersion": "Обновление от 15.01.2023", "GarXMLFullURL": "%[1]s/full/20230115", "GarXMLDeltaURL": "%[1]s/delta/20230115"},
	{"VersionId": 20230108, "TextVersion": "Обновление от 08.01.2023", "GarXMLFullURL": "%[1]s/full/20230108", "GarXMLDeltaURL": "%[1]s/delta/20230108"}
]`

func newFeedServer(t *testing.T, deltaPayload []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/GetAllDownloadFileInfo", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, feedBody, srv.URL)
	})
	mux.HandleFunc("/delta/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(deltaPayload)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLatestVersion(t *testing.T) {
	srv := newFeedServer(t, nil)
	f := NewInstance(srv.URL, 1)

	latest, err := f.LatestVersion(context.Background())
	require.Nil(t, err)
	require.Equal(t, int64(20230115), latest.VersionID)
}

func TestPendingVersionsOrderedAfterMarker(t *testing.T) {
	srv := newFeedServer(t, nil)
	f := NewInstance(srv.URL, 1)

	pending, missing, err := f.PendingVersions(context.Background(), 20230101)
	require.Nil(t, err)
	// версия без дельты отфильтрована, остальные - по возрастанию
	require.Len(t, pending, 2)
	require.Equal(t, int64(20230108), pending[0].VersionID)
	require.Equal(t, int64(20230115), pending[1].VersionID)
	require.Empty(t, missing)

	pending, _, err = f.PendingVersions(context.Background(), 20230115)
	require.Nil(t, err)
	require.Empty(t, pending)
}

func TestPendingVersionsReportsMissingDelta(t *testing.T) {
	srv := newFeedServer(t, nil)
	f := NewInstance(srv.URL, 1)

	// маркер ниже версии без дельты: она не теряется молча,
	// а возвращается отдельным списком
	pending, missing, err := f.PendingVersions(context.Background(), 20221231)
	require.Nil(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, []int64{20230101}, missing)
}

func TestFeedRetryOnUnavailable(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"VersionId": 1, "GarXMLDeltaURL": "x"}]`))
	}))
	defer srv.Close()

	f := NewInstance(srv.URL, 5)
	latest, err := f.LatestVersion(context.Background())
	require.Nil(t, err)
	require.Equal(t, int64(1), latest.VersionID)
	require.Equal(t, 3, calls)
}

func TestFeedCorruptNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`не json`))
	}))
	defer srv.Close()

	f := NewInstance(srv.URL, 5)
	_, err := f.LatestVersion(context.Background())
	require.True(t, errors.Is(err, ErrSourceCorrupt))
	require.Equal(t, 1, calls)
}

func TestDownloadDeltaIntegrity(t *testing.T) {
	payload := []byte("содержимое дельты")
	sum := md5.Sum(payload)
	srv := newFeedServer(t, payload)
	f := NewInstance(srv.URL, 1)
	destDir := t.TempDir()

	info := garapimodels.VersionInfo{
		VersionID:      20230108,
		GarXMLDeltaURL: srv.URL + "/delta/20230108",
		DeltaSize:      int64(len(payload)),
		DeltaMd5:       hex.EncodeToString(sum[:]),
	}

	path, err := f.DownloadDelta(context.Background(), info, destDir)
	require.Nil(t, err)
	got, err := os.ReadFile(path)
	require.Nil(t, err)
	require.Equal(t, payload, got)
}

func TestDownloadDeltaMd5Mismatch(t *testing.T) {
	srv := newFeedServer(t, []byte("содержимое дельты"))
	f := NewInstance(srv.URL, 1)
	destDir := t.TempDir()

	info := garapimodels.VersionInfo{
		VersionID:      20230108,
		GarXMLDeltaURL: srv.URL + "/delta/20230108",
		DeltaMd5:       "00000000000000000000000000000000",
	}

	_, err := f.DownloadDelta(context.Background(), info, destDir)
	require.True(t, errors.Is(err, ErrPackageIntegrity))
	// битый файл не остаётся на диске
	_, statErr := os.Stat(filepath.Join(destDir, "gar_delta_20230108.zip"))
	require.True(t, os.IsNotExist(statErr))
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "delta.zip")

	out, err := os.Create(archivePath)
	require.Nil(t, err)
	zw := zip.NewWriter(out)
	w, err := zw.Create("66/AS_HOUSES_20230108.XML")
	require.Nil(t, err)
	_, err = w.Write([]byte("<HOUSES></HOUSES>"))
	require.Nil(t, err)
	require.Nil(t, zw.Close())
	require.Nil(t, out.Close())

	destDir := filepath.Join(dir, "unpacked")
	f := NewInstance("http://127.0.0.1", 1)
	require.Nil(t, f.Extract(archivePath, destDir))

	got, err := os.ReadFile(filepath.Join(destDir, "66", "AS_HOUSES_20230108.XML"))
	require.Nil(t, err)
	require.Equal(t, "<HOUSES></HOUSES>", string(got))
}

func TestExtractRejectsNotAnArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "broken.zip")
	require.Nil(t, os.WriteFile(archivePath, []byte("не архив"), 0o644))

	f := NewInstance("http://127.0.0.1", 1)
	err := f.Extract(archivePath, filepath.Join(dir, "unpacked"))
	require.True(t, errors.Is(err, ErrPackageIntegrity))
}
