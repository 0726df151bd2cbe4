package datasets_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/sealedml/datasets"
	"github.com/ezoic/sealedml/pkg/errors"
)

func wdbcFile(malignant, benign int) string {
	var b strings.Builder
	for i := 0; i < malignant+benign; i++ {
		diagnosis := "B"
		if i < malignant {
			diagnosis = "M"
		}
		b.WriteString(wdbcRow(strconv.Itoa(800000+i), diagnosis, float64(i%17)))
		b.WriteByte('\n')
	}
	return b.String()
}

func wdbcServer(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestBreastCancer_DownloadsAndCaches(t *testing.T) {
	srv, hits := wdbcServer(t, wdbcFile(212, 357))
	home := t.TempDir()
	ctx := context.Background()

	ds, err := datasets.BreastCancer(ctx, datasets.WithDataHome(home), datasets.WithSourceURL(srv.URL))
	require.NoError(t, err)
	n, d := ds.Dims()
	assert.Equal(t, 569, n)
	assert.Equal(t, 30, d)
	zeros, ones := ds.ClassCounts()
	assert.Equal(t, 212, zeros)
	assert.Equal(t, 357, ones)
	assert.Equal(t, datasets.BreastCancerFeatureNames(), ds.FeatureNames)
	assert.Equal(t, []string{"malignant", "benign"}, ds.TargetNames)
	assert.FileExists(t, filepath.Join(home, "wdbc.data"))

	again, err := datasets.BreastCancer(ctx, datasets.WithDataHome(home), datasets.WithSourceURL(srv.URL),
		datasets.WithOffline())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, ds.X.RawMatrix().Data, again.X.RawMatrix().Data)
}

func TestBreastCancer_DataHomeFromEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv(datasets.DataHomeEnv, home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "wdbc.data"), []byte(wdbcFile(212, 357)), 0o600))

	got, err := datasets.DataHome()
	require.NoError(t, err)
	assert.Equal(t, home, got)

	ds, err := datasets.BreastCancer(context.Background(), datasets.WithOffline())
	require.NoError(t, err)
	n, _ := ds.Dims()
	assert.Equal(t, 569, n)
}

func TestBreastCancer_RejectsWrongData(t *testing.T) {
	ctx := context.Background()

	srv, _ := wdbcServer(t, wdbcFile(213, 356))
	home := t.TempDir()
	_, err := datasets.BreastCancer(ctx, datasets.WithDataHome(home), datasets.WithSourceURL(srv.URL))
	var ve *errors.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.NoFileExists(t, filepath.Join(home, "wdbc.data"))

	srv, _ = wdbcServer(t, wdbcFile(100, 100))
	_, err = datasets.BreastCancer(ctx, datasets.WithDataHome(t.TempDir()), datasets.WithSourceURL(srv.URL))
	var de *errors.DimensionError
	assert.ErrorAs(t, err, &de)

	missing := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(missing.Close)
	_, err = datasets.BreastCancer(ctx, datasets.WithDataHome(t.TempDir()), datasets.WithSourceURL(missing.URL))
	assert.ErrorContains(t, err, "404")

	_, err = datasets.BreastCancer(ctx, datasets.WithDataHome(t.TempDir()), datasets.WithOffline())
	assert.ErrorContains(t, err, "not cached")
}

func TestBreastCancer_Canceled(t *testing.T) {
	srv, _ := wdbcServer(t, wdbcFile(212, 357))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := datasets.BreastCancer(ctx, datasets.WithDataHome(t.TempDir()), datasets.WithSourceURL(srv.URL))
	assert.ErrorIs(t, err, context.Canceled)
}
