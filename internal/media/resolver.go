// Package media turns raw user-supplied media references into local file
// handles and guarantees cleanup of every file it creates.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Kind classifies a resolved input.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Origin records where a reference came from.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginBase64 Origin = "base64"
	OriginRemote Origin = "remote"
	OriginUpload Origin = "upload"
)

// DefaultPrompt is substituted when a request carries media but no text.
const DefaultPrompt = "Describe this media file in detail."

// DefaultDescribePrompt is the upload endpoint's fallback prompt.
const DefaultDescribePrompt = "Briefly describe this media file."

var imageExts = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png",
	".bmp": "image/bmp", ".gif": "image/gif", ".webp": "image/webp",
}

var videoExts = map[string]string{
	".mp4": "video/mp4", ".avi": "video/x-msvideo", ".mov": "video/quicktime",
	".mkv": "video/x-matroska", ".flv": "video/x-flv", ".wmv": "video/x-ms-wmv",
}

// Reference is a classified, materialized media input. Owned is true iff
// the resolver created the underlying file; only owned files are deleted.
type Reference struct {
	Path   string
	Kind   Kind
	Origin Origin
	Owned  bool
}

// Cleanup removes the underlying file when the resolver owns it. Deletion
// errors are logged and discarded so cleanup never masks a result. Safe on
// a nil receiver.
func (r *Reference) Cleanup(log zerolog.Logger) {
	if r == nil || !r.Owned {
		return
	}
	if err := os.Remove(r.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", r.Path).Err(err).Msg("temp media cleanup failed")
	}
}

// Resolver materializes media references. It is safe for concurrent use.
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger
}

// NewResolver builds a Resolver whose remote fetches abort after timeout.
func NewResolver(timeout time.Duration, log zerolog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Resolver{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     log,
	}
}

// Resolve classifies and materializes one raw reference string. Priority:
// local file forms, then inline base64 image data, then remote URL.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Reference, error) {
	switch {
	case strings.HasPrefix(raw, "file://"),
		strings.HasPrefix(raw, "/"),
		strings.HasPrefix(raw, "./"),
		strings.HasPrefix(raw, "../"):
		return r.resolveLocal(raw)
	case strings.HasPrefix(raw, "data:image"):
		return r.resolveBase64(raw)
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return r.resolveRemote(ctx, raw)
	default:
		return nil, ErrValidation(fmt.Sprintf("unsupported media reference %q", truncate(raw, 64)))
	}
}

func (r *Resolver) resolveLocal(raw string) (*Reference, error) {
	path := strings.TrimPrefix(raw, "file://")
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, ErrValidation("invalid local path: " + path)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFoundError{path: abs}
		}
		if errors.Is(err, os.ErrPermission) {
			return nil, permissionError{path: abs}
		}
		return nil, ErrValidation("cannot access local file: " + abs)
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, permissionError{path: abs}
		}
		return nil, ErrValidation("cannot read local file: " + abs)
	}
	f.Close()
	kind, err := kindFromExt(filepath.Ext(abs))
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("path", abs).Str("kind", string(kind)).Msg("local media resolved")
	return &Reference{Path: abs, Kind: kind, Origin: OriginLocal, Owned: false}, nil
}

func (r *Resolver) resolveBase64(raw string) (*Reference, error) {
	data := raw
	if i := strings.IndexByte(data, ','); i >= 0 {
		data = data[i+1:]
	}
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrValidation("malformed base64 image data: " + err.Error())
	}
	path, err := writeTemp(decoded, ".jpg")
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("path", path).Msg("base64 image saved")
	return &Reference{Path: path, Kind: KindImage, Origin: OriginBase64, Owned: true}, nil
}

func (r *Resolver) resolveRemote(ctx context.Context, url string) (*Reference, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ErrValidation("invalid media URL: " + err.Error())
	}
	req.Header.Set("User-Agent", "vlmd/1.0")
	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, timeoutError{url: url}
		}
		return nil, ErrValidation("cannot download media: " + err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrValidation(fmt.Sprintf("media download returned status %d", resp.StatusCode))
	}

	ct := resp.Header.Get("Content-Type")
	var kind Kind
	var suffix string
	switch {
	case strings.HasPrefix(ct, "image/"):
		kind = KindImage
		suffix = ".png"
		if strings.Contains(ct, "jpeg") || strings.Contains(ct, "jpg") {
			suffix = ".jpg"
		}
	case strings.HasPrefix(ct, "video/"):
		kind = KindVideo
		suffix = ".avi"
		if strings.Contains(ct, "mp4") {
			suffix = ".mp4"
		}
	default:
		return nil, ErrValidation("unsupported media content type: " + ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, timeoutError{url: url}
		}
		return nil, ErrValidation("reading media body: " + err.Error())
	}
	path, err := writeTemp(body, suffix)
	if err != nil {
		return nil, err
	}
	r.log.Info().Str("url", url).Str("path", path).Str("kind", string(kind)).Msg("media downloaded")
	return &Reference{Path: path, Kind: kind, Origin: OriginRemote, Owned: true}, nil
}

// FromUpload materializes an uploaded file. Classification uses the declared
// content type, falling back to the filename extension.
func (r *Resolver) FromUpload(contentType, filename string, body io.Reader) (*Reference, error) {
	var kind Kind
	switch {
	case strings.HasPrefix(contentType, "image/"):
		kind = KindImage
	case strings.HasPrefix(contentType, "video/"):
		kind = KindVideo
	default:
		ext := strings.ToLower(filepath.Ext(filename))
		if _, ok := imageExts[ext]; ok {
			kind = KindImage
		} else if _, ok := videoExts[ext]; ok {
			kind = KindVideo
		} else {
			return nil, ErrValidation(fmt.Sprintf("unsupported file type %q, only images and videos are accepted", contentType))
		}
	}
	suffix := filepath.Ext(filename)
	if suffix == "" {
		suffix = ".jpg"
		if kind == KindVideo {
			suffix = ".mp4"
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, ErrValidation("reading upload: " + err.Error())
	}
	path, err := writeTemp(data, suffix)
	if err != nil {
		return nil, err
	}
	r.log.Debug().Str("path", path).Str("kind", string(kind)).Msg("upload saved")
	return &Reference{Path: path, Kind: kind, Origin: OriginUpload, Owned: true}, nil
}

func kindFromExt(ext string) (Kind, error) {
	ext = strings.ToLower(ext)
	if _, ok := imageExts[ext]; ok {
		return KindImage, nil
	}
	if _, ok := videoExts[ext]; ok {
		return KindVideo, nil
	}
	return "", ErrValidation("unsupported file extension: " + ext)
}

func writeTemp(data []byte, suffix string) (string, error) {
	f, err := os.CreateTemp("", "vlmd-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

func isClientTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
