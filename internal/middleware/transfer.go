package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// TransferTimeout bounds a file relay without buffering it. maxDuration caps
// the whole response and idleTimeout caps the gap between two writes.
func TransferTimeout(maxDuration time.Duration, idleTimeout time.Duration) func(http.Handler) http.Handler {
	if maxDuration <= 0 {
		maxDuration = 2 * time.Minute
	}
	if idleTimeout <= 0 || idleTimeout > maxDuration {
		idleTimeout = maxDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), maxDuration)
			defer cancel()

			rc := http.NewResponseController(w)
			_ = rc.SetWriteDeadline(time.Now().Add(maxDuration))

			tw := &transferWriter{ResponseWriter: w, rc: rc, idle: idleTimeout, cancel: cancel}
			tw.touch()
			defer tw.stop()

			next.ServeHTTP(tw, r.WithContext(ctx))
		})
	}
}

type transferWriter struct {
	http.ResponseWriter
	rc     *http.ResponseController
	idle   time.Duration
	cancel context.CancelFunc

	mu    sync.Mutex
	timer *time.Timer
}

func (tw *transferWriter) touch() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timer != nil {
		tw.timer.Stop()
	}
	tw.timer = time.AfterFunc(tw.idle, func() {
		_ = tw.rc.SetWriteDeadline(time.Now())
		tw.cancel()
	})
}

func (tw *transferWriter) stop() {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.timer != nil {
		tw.timer.Stop()
	}
}

func (tw *transferWriter) Write(b []byte) (int, error) {
	tw.touch()
	return tw.ResponseWriter.Write(b)
}

func (tw *transferWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

func (tw *transferWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
