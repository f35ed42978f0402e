// Package fetch downloads the consolidated fuel-price dataset from Kaggle and
// keeps the extracted CSV in a local cache directory.
package fetch

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// ErrFileNotInArchive is returned when the downloaded archive lacks Config.File.
var ErrFileNotInArchive = errors.New("fetch: file not in archive")

// DefaultBaseURL is the Kaggle public API root.
const DefaultBaseURL = "https://www.kaggle.com/api/v1"

// Config locates the dataset and the credentials used to download it.
type Config struct {
	BaseURL  string
	Owner    string // e.g. "paulobosco"
	Dataset  string // e.g. "dataset-combustiveis-2020-a-2025"
	File     string // CSV inside the archive, e.g. "consolidada_tratada.csv"
	Username string
	Key      string
	CacheDir string

	// Progress receives the byte progress bar; nil disables it.
	Progress io.Writer
	// Client defaults to an http.Client with a generous timeout.
	Client *http.Client
}

// Dir is the cache directory for this dataset.
func (c Config) Dir() string {
	return filepath.Join(c.CacheDir, c.Owner, c.Dataset)
}

// Target is the path the extracted CSV lives at.
func (c Config) Target() string {
	return filepath.Join(c.Dir(), path.Base(c.File))
}

// Download returns the path of the extracted CSV, downloading and unpacking
// the dataset archive only when the file is not cached yet.
func Download(ctx context.Context, cfg Config) (string, error) {
	if cfg.Owner == "" || cfg.Dataset == "" || cfg.File == "" {
		return "", errors.New("fetch: owner, dataset and file are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 30 * time.Minute}
	}

	target := cfg.Target()
	if info, err := os.Stat(target); err == nil && info.Size() > 0 {
		log.Info().Str("path", target).Msg("📦 dataset cached")
		return target, nil
	}

	if err := os.MkdirAll(cfg.Dir(), 0o755); err != nil {
		return "", errors.Wrap(err, "create cache dir")
	}

	archive := filepath.Join(cfg.Dir(), cfg.Dataset+".zip")
	if err := downloadArchive(ctx, cfg, archive); err != nil {
		return "", err
	}
	defer os.Remove(archive)

	if err := extract(archive, cfg.File, target); err != nil {
		return "", err
	}
	log.Info().Str("path", target).Msg("📦 dataset extracted")
	return target, nil
}

func downloadArchive(ctx context.Context, cfg Config, dest string) error {
	url := fmt.Sprintf("%s/datasets/download/%s/%s", strings.TrimRight(cfg.BaseURL, "/"), cfg.Owner, cfg.Dataset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if cfg.Username != "" || cfg.Key != "" {
		req.SetBasicAuth(cfg.Username, cfg.Key)
	}

	log.Info().Str("url", url).Msg("⬇️ downloading dataset")
	resp, err := cfg.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "download %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("download %s: status %s", url, resp.Status)
	}

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create archive")
	}

	var body io.Reader = resp.Body
	var bar *pb.ProgressBar
	if cfg.Progress != nil {
		bar = pb.New64(max(resp.ContentLength, 0)).SetUnits(pb.U_BYTES)
		bar.Output = cfg.Progress
		bar.Prefix(cfg.Dataset + " ")
		bar.Start()
		body = bar.NewProxyReader(resp.Body)
	}

	_, err = io.Copy(out, body)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return errors.Wrap(err, "write archive")
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "close archive")
	}
	return os.Rename(tmp, dest)
}

// extract copies the archive member whose base name matches name to dest.
func extract(archive, name, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return errors.Wrap(err, "open archive")
	}
	defer r.Close()

	want := path.Base(name)
	for _, f := range r.File {
		if f.FileInfo().IsDir() || path.Base(f.Name) != want {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return errors.Wrapf(err, "open %s", f.Name)
		}
		defer rc.Close()

		tmp := dest + ".tmp"
		out, err := os.Create(tmp)
		if err != nil {
			return errors.Wrap(err, "create csv")
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			os.Remove(tmp)
			return errors.Wrapf(err, "extract %s", f.Name)
		}
		if err := out.Close(); err != nil {
			return errors.Wrap(err, "close csv")
		}
		return os.Rename(tmp, dest)
	}
	return errors.Wrapf(ErrFileNotInArchive, "%s", name)
}
