package server

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"
)

const (
	// streamBoundary separates the multipart frames.
	streamBoundary = "mjpegframe"
	// popTimeout bounds how long a stream waits for a frame before
	// re-checking for client disconnect. An empty buffer (idle session) is
	// not an error, the stream just idles.
	popTimeout = 500 * time.Millisecond
	// jpegQuality trades size for fidelity; the CRT shader output is soft
	// anyway, so mid quality reads fine.
	jpegQuality = 80
	// streamFPS caps the output frame rate. The render loop produces at
	// 60 Hz; the stream pushes at most this many parts per second and lets
	// the buffer's drop-oldest policy absorb the difference.
	streamFPS = 30
)

// handleStream serves the frame buffer as a multipart MJPEG stream, the
// format img tags consume natively. Frames are popped FIFO; a pop timeout
// skips the write and retries, and a gone client ends the handler.
func (server *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")

	server.log.Printf("stream client connected: %s", r.RemoteAddr)
	defer server.log.Printf("stream client gone: %s", r.RemoteAddr)

	frames := server.manager.Frames()
	frameInterval := time.Second / streamFPS
	var lastWrite time.Time
	var jpegBuf bytes.Buffer
	for {
		select {
		case <-r.Context().Done():
			return
		case <-server.rootCtx.Done():
			return
		default:
		}

		frame, ok := frames.Pop(popTimeout)
		if !ok {
			continue
		}

		// Pace to the target output rate. A pop timeout skips this: an idle
		// buffer is already slower than the target.
		if wait := frameInterval - time.Since(lastWrite); wait > 0 {
			time.Sleep(wait)
		}
		lastWrite = time.Now()

		jpegBuf.Reset()
		if err := jpeg.Encode(&jpegBuf, frame.ToRGBA(), &jpeg.Options{Quality: jpegQuality}); err != nil {
			server.log.Printf("frame encode failed: %v", err)
			continue
		}

		if _, err := fmt.Fprintf(w,
			"--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
			streamBoundary, jpegBuf.Len()); err != nil {
			return
		}
		if _, err := w.Write(jpegBuf.Bytes()); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}
