package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultCacheDir is where remote datasets are stored between runs.
const DefaultCacheDir = "~/.cache/sketchguess/datasets"

// DownloadConfig configures dataset downloading
type DownloadConfig struct {
	CacheDir      string
	ForceDownload bool
	Token         string // Bearer token for private datasets
	Client        *http.Client
}

// Downloader fetches and caches remote dataset files
type Downloader struct {
	config DownloadConfig
}

// NewDownloader creates a new dataset downloader
func NewDownloader(config DownloadConfig) *Downloader {
	if config.CacheDir == "" {
		config.CacheDir = DefaultCacheDir
	}
	if strings.HasPrefix(config.CacheDir, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			config.CacheDir = filepath.Join(homeDir, config.CacheDir[1:])
		}
	}
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	return &Downloader{config: config}
}

// IsRemote reports whether a dataset path is an http(s) URL.
func IsRemote(datasetPath string) bool {
	return strings.HasPrefix(datasetPath, "http://") || strings.HasPrefix(datasetPath, "https://")
}

// CachePath returns where the file at rawURL is cached. The file keeps its
// extension so the loader can detect the format.
func (d *Downloader) CachePath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid dataset URL: %w", err)
	}
	sum := sha256.Sum256([]byte(rawURL))
	name := hex.EncodeToString(sum[:8]) + "-" + path.Base(u.Path)
	return filepath.Join(d.config.CacheDir, name), nil
}

// Fetch downloads rawURL unless it is already cached and returns the local path.
func (d *Downloader) Fetch(rawURL string) (string, error) {
	cachedPath, err := d.CachePath(rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.config.CacheDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	if !d.config.ForceDownload {
		if _, err := os.Stat(cachedPath); err == nil {
			slog.Info("Using cached dataset", "path", cachedPath)
			return cachedPath, nil
		}
	}

	slog.Info("Downloading dataset", "url", rawURL)
	if err := d.downloadFile(rawURL, cachedPath); err != nil {
		return "", fmt.Errorf("failed to download dataset: %w", err)
	}
	slog.Info("Dataset downloaded successfully", "path", cachedPath)
	return cachedPath, nil
}

func (d *Downloader) downloadFile(rawURL, destPath string) error {
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if d.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.config.Token)
	}

	resp, err := d.config.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tempPath := destPath + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("download failed: %w", err)
	}
	slog.Debug("Download complete", "bytes", written)

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}

// Open returns a loader for datasetPath, downloading it first when it is a URL.
func Open(datasetPath string, config DownloadConfig) (*Loader, error) {
	if !IsRemote(datasetPath) {
		return NewLoader(datasetPath), nil
	}
	local, err := NewDownloader(config).Fetch(datasetPath)
	if err != nil {
		return nil, err
	}
	return NewLoader(local), nil
}
