package datasets

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	sealedErrors "github.com/ezoic/sealedml/pkg/errors"
	"github.com/ezoic/sealedml/pkg/log"
)

const (
	// BreastCancerURL is where the Wisconsin diagnostic data is published.
	BreastCancerURL = "https://archive.ics.uci.edu/ml/machine-learning-databases/breast-cancer-wisconsin/wdbc.data"
	// DataHomeEnv overrides the directory fetched data sets are cached in.
	DataHomeEnv = "SEALEDML_DATA"

	breastCancerFile      = "wdbc.data"
	breastCancerSamples   = 569
	breastCancerMalignant = 212
	breastCancerBenign    = 357
)

type fetchConfig struct {
	home    string
	url     string
	client  *http.Client
	offline bool
}

// FetchOption configures BreastCancer.
type FetchOption func(*fetchConfig)

// WithDataHome sets the cache directory. The default is $SEALEDML_DATA, or
// sealedml under the user cache directory.
func WithDataHome(dir string) FetchOption {
	return func(c *fetchConfig) { c.home = dir }
}

// WithSourceURL replaces BreastCancerURL.
func WithSourceURL(url string) FetchOption {
	return func(c *fetchConfig) { c.url = url }
}

// WithHTTPClient sets the client used for the download.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) { c.client = client }
}

// WithOffline fails instead of downloading when the cache is empty.
func WithOffline() FetchOption {
	return func(c *fetchConfig) { c.offline = true }
}

// DataHome returns the default cache directory.
func DataHome() (string, error) {
	if dir := os.Getenv(DataHomeEnv); dir != "" {
		return dir, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", sealedErrors.Wrap(err, "locate cache directory")
	}
	return filepath.Join(cache, "sealedml"), nil
}

// BreastCancer returns the Wisconsin diagnostic breast cancer data: 569
// samples, 30 features, 212 malignant (label 0) and 357 benign (label 1).
// The file is read from the data home and downloaded there on first use.
// Anything but the published shape and class balance is an error.
func BreastCancer(ctx context.Context, opts ...FetchOption) (*Dataset, error) {
	cfg := fetchConfig{url: BreastCancerURL, client: &http.Client{Timeout: time.Minute}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.home == "" {
		home, err := DataHome()
		if err != nil {
			return nil, err
		}
		cfg.home = home
	}

	path := filepath.Join(cfg.home, breastCancerFile)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
	case os.IsNotExist(err) && !cfg.offline:
		if raw, err = download(ctx, cfg, path); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		return nil, sealedErrors.Newf("%s is not cached and downloads are disabled", path)
	default:
		return nil, sealedErrors.Wrapf(err, "read %s", path)
	}

	records, err := parseCSV(bytes.NewReader(raw), path)
	if err != nil {
		return nil, err
	}
	ds, err := breastCancerFromRecords(records, path)
	if err != nil {
		return nil, err
	}
	if err := checkBreastCancer(ds); err != nil {
		return nil, sealedErrors.Wrapf(err, "%s", path)
	}
	return ds, nil
}

func checkBreastCancer(ds *Dataset) error {
	n, _ := ds.Dims()
	if n != breastCancerSamples {
		return sealedErrors.NewDimensionError("BreastCancer", breastCancerSamples, n, 0)
	}
	zeros, ones := ds.ClassCounts()
	if zeros != breastCancerMalignant || ones != breastCancerBenign {
		return sealedErrors.NewValidationError("diagnosis", "class balance must be 212 malignant and 357 benign",
			[2]int{zeros, ones})
	}
	return nil
}

// download fetches the data, validates it and then moves it into place so a
// broken transfer never poisons the cache.
func download(ctx context.Context, cfg fetchConfig, path string) ([]byte, error) {
	logger.Info("Downloading breast cancer data", "url", cfg.url, "path", path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.url, nil)
	if err != nil {
		return nil, sealedErrors.Wrapf(err, "request %s", cfg.url)
	}
	resp, err := cfg.client.Do(req)
	if err != nil {
		return nil, sealedErrors.Wrapf(err, "download %s", cfg.url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, sealedErrors.Newf("download %s: %s", cfg.url, resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, sealedErrors.Wrapf(err, "download %s", cfg.url)
	}

	records, err := parseCSV(bytes.NewReader(raw), cfg.url)
	if err != nil {
		return nil, err
	}
	ds, err := breastCancerFromRecords(records, cfg.url)
	if err != nil {
		return nil, err
	}
	if err := checkBreastCancer(ds); err != nil {
		return nil, sealedErrors.Wrapf(err, "%s", cfg.url)
	}

	if err := os.MkdirAll(cfg.home, 0o755); err != nil {
		return nil, sealedErrors.Wrapf(err, "create %s", cfg.home)
	}
	tmp, err := os.CreateTemp(cfg.home, breastCancerFile+".*")
	if err != nil {
		return nil, sealedErrors.Wrapf(err, "cache %s", path)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return nil, sealedErrors.Wrapf(err, "cache %s", path)
	}
	if err := tmp.Close(); err != nil {
		return nil, sealedErrors.Wrapf(err, "cache %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, sealedErrors.Wrapf(err, "cache %s", path)
	}
	logger.Debug("Breast cancer data cached", "path", path, log.BytesKey, len(raw))
	return raw, nil
}
