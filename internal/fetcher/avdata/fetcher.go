package avdata

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
	"github.com/JakeFAU/ntsb-publisher/internal/progress"
)

// Config controls the fetcher.
type Config struct {
	ListingURL string
	DataDir    string
	UserAgent  string
	Timeout    time.Duration
}

// Fetcher lists, downloads, and unpacks the current month's extracts.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	client    *http.Client
	clock     feed.Clock
	out       io.Writer
	logger    *zap.Logger
}

// New builds a Fetcher. Download progress is drawn on out when it is non-nil.
func New(cfg Config, clock feed.Clock, out io.Writer, logger *zap.Logger) (*Fetcher, error) {
	if cfg.ListingURL == "" {
		cfg.ListingURL = DefaultListingURL
	}
	if cfg.DataDir == "" {
		return nil, errors.New("fetcher data dir is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	transport := newHTTPTransport()
	// No client timeout: archives take minutes and ctx bounds the download.
	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		client:    &http.Client{Transport: transport},
		clock:     clock,
		out:       out,
		logger:    logger,
	}, nil
}

// MonthPattern matches the archives relevant in the month of now: the
// monthly updates "upNNMON.zip" and the full "avall.zip".
func MonthPattern(now time.Time) *regexp.Regexp {
	month := strings.ToUpper(now.Format("Jan"))
	return regexp.MustCompile(`^(up[0-9]{2}` + month + `|avall)\.zip`)
}

// Update brings the data dir up to date and returns the names of the
// extracts relevant this month. Archives already unpacked this month, and
// published this month, are reused without a download.
func (f *Fetcher) Update(ctx context.Context) ([]string, error) {
	now := f.clock.Now()
	pattern := MonthPattern(now)
	files, err := f.List(ctx)
	if err != nil {
		return nil, err
	}
	f.logger.Info("searching listing", zap.String("pattern", pattern.String()), zap.Int("files", len(files)))

	var extracts []string
	for _, file := range files {
		name := extractName(file.Name)
		if f.isCurrent(file, now) {
			f.logger.Info("extract already downloaded", zap.String("file", file.Name))
			extracts = append(extracts, name)
			continue
		}
		if !pattern.MatchString(file.Name) {
			f.logger.Debug("ignoring archive", zap.String("file", file.Name))
			continue
		}
		if err := f.fetch(ctx, file); err != nil {
			return extracts, err
		}
		extracts = append(extracts, name)
	}
	f.logger.Info("extracts ready", zap.Strings("extracts", extracts))
	return extracts, nil
}

func (f *Fetcher) fetch(ctx context.Context, file File) error {
	if file.URL == "" {
		return fmt.Errorf("archive %s has no download link", file.Name)
	}
	archive := filepath.Join(f.cfg.DataDir, filepath.Base(file.Name))
	f.logger.Info("downloading archive", zap.String("file", file.Name), zap.String("url", file.URL))
	if err := f.download(ctx, file.URL, archive); err != nil {
		return err
	}
	if err := unzip(archive, f.cfg.DataDir); err != nil {
		return err
	}
	return nil
}

// isCurrent reports whether the unpacked database of file exists locally
// and both copies date from now's month.
func (f *Fetcher) isCurrent(file File, now time.Time) bool {
	info, err := os.Stat(f.databasePath(file.Name))
	if err != nil {
		return false
	}
	return sameMonth(info.ModTime(), now) && sameMonth(file.Date, now)
}

func (f *Fetcher) databasePath(name string) string {
	return filepath.Join(f.cfg.DataDir, extractName(name)+".mdb")
}

func extractName(archive string) string {
	base := filepath.Base(archive)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func sameMonth(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// download streams url into dest, drawing progress when the size is known.
func (f *Fetcher) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("download %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	var bar *progress.Bar
	if f.out != nil && resp.ContentLength > 0 {
		bar = progress.NewBar(f.out, int(resp.ContentLength))
		bar.Start()
	}
	_, err = io.Copy(&progressWriter{w: tmp, bar: bar}, resp.Body)
	if bar != nil {
		bar.Finish()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename %s: %w", dest, err)
	}
	return nil
}

type progressWriter struct {
	w       io.Writer
	bar     *progress.Bar
	written int
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += n
	if p.bar != nil {
		p.bar.Update(p.written, 0)
	}
	return n, err //nolint:wrapcheck
}

// unzip extracts archive into dir and removes the archive.
func unzip(archive, dir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		if r != nil {
			_ = r.Close()
		}
		return fmt.Errorf("open archive %s: %w", archive, err)
	}
	for _, entry := range r.File {
		if err := extractEntry(entry, dir); err != nil {
			_ = r.Close()
			return fmt.Errorf("extract %s: %w", entry.Name, err)
		}
	}
	if err := r.Close(); err != nil {
		return fmt.Errorf("close archive %s: %w", archive, err)
	}
	if err := os.Remove(archive); err != nil {
		return fmt.Errorf("remove archive %s: %w", archive, err)
	}
	return nil
}

func extractEntry(entry *zip.File, dir string) error {
	target := filepath.Join(dir, filepath.FromSlash(entry.Name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("entry escapes %s", dir)
	}
	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, 0o755) //nolint:wrapcheck
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err //nolint:wrapcheck
	}
	src, err := entry.Open()
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer func() { _ = src.Close() }()
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(0o644))
	if err != nil {
		return err //nolint:wrapcheck
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err //nolint:wrapcheck
	}
	return dst.Close() //nolint:wrapcheck
}
