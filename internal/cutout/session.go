// Package cutout downloads FIRST survey FITS cutouts for a list of sky
// positions.
package cutout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"cutout-forge/internal/fitsimg"
	"cutout-forge/internal/logging"
)

const (
	DefaultBaseURL   = "https://third.ucllnl.org/cgi-bin/firstcutout"
	DefaultImageSize = 2.5
	fitsImageType    = "FITS image"
)

var (
	// ErrClosed is returned by a Session after Close.
	ErrClosed = errors.New("cutout: session closed")
	// ErrNotFITS marks a response body that does not decode as a FITS
	// image. The service answers positions outside the survey with an
	// HTML page.
	ErrNotFITS = errors.New("cutout: response is not a FITS image")
)

// Options configures a Session. Zero values take the defaults.
type Options struct {
	BaseURL string
	// ImageSize is the cutout edge in arcminutes.
	ImageSize float64
	Timeout   time.Duration
	UserAgent string
	Logger    zerolog.Logger
}

// Session is an open connection to the cutout service. It is safe for
// concurrent use and must be released with Close.
type Session struct {
	client    *resty.Client
	baseURL   string
	imageSize float64
	log       zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewSession builds a Session from opts.
func NewSession(opts Options) *Session {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.ImageSize <= 0 {
		opts.ImageSize = DefaultImageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "cutout-forge"
	}

	client := resty.New()
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)

	return &Session{
		client:    client,
		baseURL:   opts.BaseURL,
		imageSize: opts.ImageSize,
		log:       logging.Component(opts.Logger, "fetch"),
	}
}

// Close releases idle connections. Later calls fail with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.GetClient().CloseIdleConnections()
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Fetch downloads the cutout at c and returns the raw FITS bytes after
// checking they decode.
func (s *Session) Fetch(ctx context.Context, c Coordinate) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"RA":        c.Query(),
			"ImageSize": strconv.FormatFloat(s.imageSize, 'f', -1, 64),
			"ImageType": fitsImageType,
		}).
		Get(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("cutout: request %s: %w", c.ID, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("cutout: %s: status %d", c.ID, res.StatusCode())
	}
	body := res.Body()
	if _, err := fitsimg.Decode(bytes.NewReader(body)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFITS, c.ID, err)
	}
	return body, nil
}

// Failure is one coordinate FetchAll could not download.
type Failure struct {
	Index      int
	Coordinate Coordinate
	Err        error
}

// Report summarises a FetchAll run.
type Report struct {
	Written  []string
	Failures []Failure
}

// FileName is the name FetchAll stores coordinate i under.
func FileName(i int, c Coordinate) string {
	return fmt.Sprintf("%04d_%.5f_%+.5f.fits", i, c.RA, c.Dec)
}

// FetchAll downloads every coordinate into dir, one after another. A
// coordinate that fails is recorded and skipped; only a cancelled context,
// a closed session or a local write error stops the run.
func (s *Session) FetchAll(ctx context.Context, coords []Coordinate, dir string) (Report, error) {
	var rep Report
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rep, err
	}
	for i, c := range coords {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		data, err := s.Fetch(ctx, c)
		if errors.Is(err, ErrClosed) {
			return rep, err
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rep, ctxErr
			}
			s.log.Warn().Err(err).Int("index", i).Str("source", c.ID).Msg("could not fetch cutout")
			rep.Failures = append(rep.Failures, Failure{Index: i, Coordinate: c, Err: err})
			continue
		}
		path := filepath.Join(dir, FileName(i, c))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return rep, fmt.Errorf("cutout: write %s: %w", path, err)
		}
		s.log.Debug().Int("index", i).Str("source", c.ID).Str("path", path).Msg("fetched cutout")
		rep.Written = append(rep.Written, path)
	}
	s.log.Info().
		Int("written", len(rep.Written)).
		Int("failed", len(rep.Failures)).
		Msg("fetch finished")
	return rep, nil
}
