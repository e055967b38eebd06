// Package upload sends image files to the backend and attaches them to a section draft.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/pages-admin/internal/api"
	"github.com/debemdeboas/pages-admin/internal/config"
	"github.com/debemdeboas/pages-admin/internal/model"
)

var (
	ErrNotImage = errors.New("not an image")
	ErrTooLarge = errors.New("file exceeds the upload size limit")
	ErrNoFiles  = errors.New("no files selected")

	// ErrMissingURL is reported when the backend accepted a file but named no URL for it.
	ErrMissingURL = api.ErrMissingURL
)

// Uploader stores one file and returns its public URL. *api.Client is the default.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64, progress api.ProgressFunc) (string, error)
}

// Draft is the section being edited; form.Controller[model.Section] satisfies it.
type Draft interface {
	Update(fn func(*model.Section)) error
}

// File is one selected file. ContentType may be empty, in which case it is sniffed.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Event is a point in the upload stream. Progress events have Done unset;
// every file ends with exactly one Done event carrying its URL or Err.
type Event struct {
	Index   int
	File    string
	Percent int
	Done    bool
	URL     string
	Err     error
	// Message is the operator-facing text for Err.
	Message string
}

type Controller struct {
	uploader Uploader
	maxBytes int64
	logger   zerolog.Logger
}

type Option func(*Controller)

func WithMaxBytes(n int64) Option {
	return func(c *Controller) { c.maxBytes = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func New(u Uploader, opts ...Option) *Controller {
	c := &Controller{
		uploader: u,
		maxBytes: int64(config.AppConfig.Upload.MaxBytes),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

const sniffLen = 3072

// Prepare settles f's content type and rejects anything that must not reach
// the network. The returned file reads the same bytes as f.
func (c *Controller) Prepare(f File) (File, error) {
	if c.maxBytes > 0 && f.Size > c.maxBytes {
		return f, fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, f.Name, f.Size, c.maxBytes)
	}

	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if ct == "" || ct == "application/octet-stream" {
		head := make([]byte, sniffLen)
		n, err := io.ReadFull(f.Body, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return f, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		head = head[:n]
		ct = mimetype.Detect(head).String()
		f.Body = io.MultiReader(bytes.NewReader(head), f.Body)
		c.logger.Debug().Str("file", f.Name).Str("content_type", ct).Msg("Sniffed content type")
	}
	f.ContentType = ct

	if !strings.HasPrefix(ct, "image/") {
		return f, fmt.Errorf("%w: %s is %s", ErrNotImage, f.Name, ct)
	}
	return f, nil
}

// Upload processes files one after another and streams their progress. A
// failed file does not stop the others. Each success appends an image
// reference, captioned with the file name, to draft. The channel is closed
// after the last file.
func (c *Controller) Upload(ctx context.Context, draft Draft, files []File) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)
		if len(files) == 0 {
			send(ctx, events, Event{Index: -1, Done: true, Err: ErrNoFiles, Message: config.ErrNoFilesSelected})
			return
		}
		for i, f := range files {
			send(ctx, events, c.uploadOne(ctx, draft, i, f, events))
		}
	}()
	return events
}

func (c *Controller) uploadOne(ctx context.Context, draft Draft, index int, f File, events chan<- Event) Event {
	done := Event{Index: index, File: f.Name, Done: true}
	log := c.logger.With().Str("file", f.Name).Logger()

	f, err := c.Prepare(f)
	if err != nil {
		log.Warn().Err(err).Msg("Rejected file before upload")
		done.Err, done.Message = err, rejectMessage(err)
		return done
	}

	send(ctx, events, Event{Index: index, File: f.Name})
	last := 0
	progress := func(sent, total int64) {
		if total <= 0 {
			return
		}
		pct := int(math.Round(float64(sent) * 100 / float64(total)))
		if pct > 100 {
			pct = 100
		}
		if pct != last {
			last = pct
			send(ctx, events, Event{Index: index, File: f.Name, Percent: pct})
		}
	}

	url, err := c.uploader.Upload(ctx, f.Name, f.ContentType, f.Body, f.Size, progress)
	if err != nil {
		log.Error().Err(err).Msg("Upload failed")
		done.Err = err
		done.Message = api.MessageOr(err, config.ErrUploadFailed)
		if errors.Is(err, ErrMissingURL) {
			done.Message = config.ErrUploadNoURL
		}
		return done
	}

	img := model.ImageReference{URL: url, Caption: f.Name}
	if err := draft.Update(func(s *model.Section) { s.AddImage(img) }); err != nil {
		log.Error().Err(err).Str("url", url).Msg("Uploaded image could not be attached to the draft")
		done.Err, done.Message = err, config.ErrUploadFailed
		return done
	}

	log.Info().Str("url", url).Msg("Image uploaded")
	done.Percent, done.URL = 100, url
	return done
}

func rejectMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotImage):
		return config.ErrOnlyImages
	case errors.Is(err, ErrTooLarge):
		return config.ErrFileTooLarge
	}
	return config.ErrUploadFailed
}

func send(ctx context.Context, ch chan<- Event, ev Event) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}

// Results drains events and returns only the per-file outcomes.
func Results(events <-chan Event) []Event {
	var out []Event
	for ev := range events {
		if ev.Done {
			out = append(out, ev)
		}
	}
	return out
}
