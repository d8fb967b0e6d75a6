package testhelp

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// SpyRequest is what SpyHttpServer saw of the request it received.
type SpyRequest struct {
	Method        string
	Path          string
	ContentType   string
	ContentLength int64
	Body          []byte
}

// SpyHttpServer returns a very basic HTTP test server (spy) that records the request
// in spy and replies with status and body reply.
// To avoid races, call ts.Close() before reading spy.
//
// Example:
//
//	var spy testhelp.SpyRequest
//	ts := testhelp.SpyHttpServer(&spy, http.StatusOK, "ok")
func SpyHttpServer(spy *SpyRequest, status int, reply string) *httptest.Server {
	// In the server we cannot use t *testing.T: it runs on a different goroutine;
	// instead, we return the error via the HTTP protocol itself.
	return httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				w.WriteHeader(http.StatusTeapot)
				fmt.Fprintln(w, "test: reading request:", err)
				return
			}

			spy.Method = req.Method
			spy.Path = req.URL.Path
			spy.ContentType = req.Header.Get("Content-Type")
			spy.ContentLength = req.ContentLength
			spy.Body = body

			w.WriteHeader(status)
			fmt.Fprint(w, reply)
		}))
}

// ChunkedHttpServer returns a test server that replies 200 OK sending each element
// of chunks as a separate, flushed write.
func ChunkedHttpServer(chunks ...string) *httptest.Server {
	return httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			flusher, _ := w.(http.Flusher)
			w.WriteHeader(http.StatusOK)
			for _, c := range chunks {
				fmt.Fprint(w, c)
				if flusher != nil {
					flusher.Flush()
				}
			}
		}))
}

// UnreachableURL returns the URL of a server that has already been closed, so that
// any request to it fails with a connection error.
func UnreachableURL() string {
	ts := httptest.NewServer(http.NotFoundHandler())
	theURL := ts.URL
	ts.Close()
	return theURL
}

// SlowHttpServer returns the URL of a test server that never replies; the client
// is expected to give up first. The server is closed at the end of the test.
func SlowHttpServer(t *testing.T) string {
	t.Helper()
	done := make(chan struct{})
	ts := httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// net/http notices a client disconnect (and cancels the request
			// context) only once the request body has been consumed.
			io.Copy(io.Discard, req.Body)
			select {
			case <-req.Context().Done():
			case <-done:
			}
		}))
	// Cleanups run in reverse order: unblock the handler, then close.
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(done) })
	return ts.URL
}

// TruncatedHttpServer returns a test server that replies 200 OK announcing a body
// longer than partial, sends partial and then closes the connection, so that the
// client gets an error while reading the body.
func TruncatedHttpServer(partial string) *httptest.Server {
	return httptest.NewServer(
		http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			io.Copy(io.Discard, req.Body)
			hj, ok := w.(http.Hijacker)
			if !ok {
				w.WriteHeader(http.StatusTeapot)
				fmt.Fprintln(w, "test: server does not support hijacking")
				return
			}
			conn, bufrw, err := hj.Hijack()
			if err != nil {
				return
			}
			defer conn.Close()
			fmt.Fprintf(bufrw, "HTTP/1.1 200 OK\r\nContent-Type: text/plain\r\n"+
				"Content-Length: %d\r\n\r\n%s", len(partial)+100, partial)
			bufrw.Flush()
		}))
}
