package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/debemdeboas/pages-admin/internal/config"
)

const (
	pathUpload       = "/upload"
	uploadFieldImage = "image"
)

// ErrMissingURL is returned when an upload succeeds but the reply carries no image URL.
var ErrMissingURL = errors.New("invalid server response: image URL is missing")

// ProgressFunc receives the number of file bytes handed to the transport so far.
type ProgressFunc func(sent, total int64)

// Upload streams one file to the backend as multipart field "image" and returns
// the stored image URL. The body is produced through a pipe, so the file is never
// buffered whole.
func (c *Client) Upload(ctx context.Context, filename, contentType string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadFieldImage, escapeQuotes(filename)))
		header.Set(config.HCType, contentType)

		part, err := mw.CreatePart(header)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, &progressReader{r: r, total: size, fn: progress}); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(pathUpload, nil), pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("internal error creating request: %w", err)
	}
	req.Header.Set(config.HCType, mw.FormDataContentType())

	resp, err := c.Do(req)
	// Unblocks the writer goroutine if the transport gave up before draining the pipe.
	pr.Close()
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	return ExtractUploadURL(body)
}

// ExtractUploadURL accepts both {"url": ...} and {"data": {"url": ...}}.
func ExtractUploadURL(body []byte) (string, error) {
	if u, err := jsonparser.GetString(body, "url"); err == nil && u != "" {
		return u, nil
	}
	if u, err := jsonparser.GetString(body, "data", "url"); err == nil && u != "" {
		return u, nil
	}
	return "", ErrMissingURL
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}
