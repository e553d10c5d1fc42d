package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// BrotliOptions tunes response compression.
type BrotliOptions struct {
	// Quality is the brotli level, 0..11.
	Quality int
	// MinBytes is the smallest body worth compressing. Smaller bodies are
	// sent as-is once the handler returns.
	MinBytes int
	// ExemptRoutes are gin route patterns that always answer with a small
	// envelope, such as draft acknowledgements.
	ExemptRoutes []string
}

const (
	defaultBrotliQuality  = 5
	defaultBrotliMinBytes = 1024
)

// brotliWriter holds the body until it knows whether compression pays off.
// The decision is made once: at MinBytes, on Flush, or when the handler returns.
type brotliWriter struct {
	gin.ResponseWriter
	pending  bytes.Buffer
	enc      *brotli.Writer
	quality  int
	minBytes int
	decided  bool
}

func (w *brotliWriter) Write(p []byte) (int, error) {
	if w.decided {
		if w.enc != nil {
			return w.enc.Write(p)
		}
		return w.ResponseWriter.Write(p)
	}

	w.pending.Write(p)
	if w.pending.Len() < w.minBytes {
		return len(p), nil
	}
	if err := w.decide(true); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// decide fixes the encoding and releases the pending bytes. A handler that
// set its own Content-Encoding is never compressed again.
func (w *brotliWriter) decide(compress bool) error {
	w.decided = true
	if w.pending.Len() == 0 && !compress {
		return nil
	}

	h := w.Header()
	if compress && h.Get("Content-Encoding") == "" {
		h.Set("Content-Encoding", "br")
		h.Del("Content-Length")
		w.enc = brotli.NewWriterLevel(w.ResponseWriter, w.quality)
		_, err := w.enc.Write(w.pending.Bytes())
		w.pending.Reset()
		return err
	}

	_, err := w.ResponseWriter.Write(w.pending.Bytes())
	w.pending.Reset()
	return err
}

// Flush commits to an uncompressed body if nothing was decided yet, so a
// streaming handler is not held back by the threshold.
func (w *brotliWriter) Flush() {
	if !w.decided {
		_ = w.decide(false)
	}
	if w.enc != nil {
		_ = w.enc.Flush()
	}
	w.ResponseWriter.Flush()
}

func (w *brotliWriter) finish() error {
	if !w.decided {
		return w.decide(false)
	}
	if w.enc != nil {
		return w.enc.Close()
	}
	return nil
}

// Brotli compresses responses for clients that send Accept-Encoding: br.
func Brotli(opts BrotliOptions) gin.HandlerFunc {
	if opts.Quality < brotli.BestSpeed || opts.Quality > brotli.BestCompression {
		opts.Quality = defaultBrotliQuality
	}
	if opts.MinBytes <= 0 {
		opts.MinBytes = defaultBrotliMinBytes
	}
	exempt := make(map[string]struct{}, len(opts.ExemptRoutes))
	for _, route := range opts.ExemptRoutes {
		exempt[route] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := exempt[c.FullPath()]; ok || passThrough(c) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			quality:        opts.Quality,
			minBytes:       opts.MinBytes,
		}
		c.Writer = bw

		c.Next()

		if err := bw.finish(); err != nil {
			_ = c.Error(err)
		}
	}
}

// passThrough reports requests whose body must reach the client unbuffered:
// results streams, the countdown socket handshake and bodiless HEAD.
func passThrough(c *gin.Context) bool {
	switch {
	case strings.Contains(c.GetHeader("Accept"), "text/event-stream"):
		return true
	case strings.EqualFold(c.GetHeader("Upgrade"), "websocket"):
		return true
	default:
		return c.Request.Method == http.MethodHead
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
