// Command relay_servers serves a synthetic page timeline for manual runs of
// the sse, websocket and probe sources.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/vitalscope/internal/vitals"
	"github.com/torosent/vitalscope/internal/wire"
)

type serverMode string

const (
	modeHTTP      serverMode = "http"
	modeSSE       serverMode = "sse"
	modeWebSocket serverMode = "websocket"
)

func main() {
	mode := flag.String("mode", "", "Server mode: http, sse, websocket")
	port := flag.Int("port", 0, "Listening port")
	pace := flag.Duration("pace", 50*time.Millisecond, "Delay between relayed records")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if *port <= 0 {
		logger.Error("port must be > 0")
		os.Exit(2)
	}

	var err error
	switch serverMode(*mode) {
	case modeHTTP:
		err = runHTTPServer(*port, logger)
	case modeSSE:
		err = runSSEServer(*port, *pace, logger)
	case modeWebSocket:
		err = runWebSocketServer(*port, *pace, logger)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	logger.Error("server stopped", "error", err)
	os.Exit(1)
}

// sampleTimeline is one page view: navigation, first paint, load, then a
// handful of late entries including an ignored recent-input shift.
func sampleTimeline() []wire.Record {
	return []wire.Record{
		{Kind: wire.KindNavigation, Navigation: vitals.NavigationTiming{RequestStart: 12, ResponseStart: 412}},
		{Kind: wire.KindPaint, Paint: wire.Paint{Name: wire.FirstContentfulPaint, StartTime: 1380}},
		{Kind: wire.KindLoad},
		{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryLargestContentfulPaint, StartTime: 1650}},
		{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryLayoutShift, StartTime: 1900, Value: 0.03}},
		{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryLargestContentfulPaint, StartTime: 2710}},
		{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryFirstInput, StartTime: 3200, ProcessingStart: 3288}},
		{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryLayoutShift, StartTime: 3300, Value: 0.2, HadRecentInput: true}},
		{Kind: wire.KindEntry, Entry: vitals.Entry{Type: vitals.EntryLayoutShift, StartTime: 4100, Value: 0.08}},
	}
}

func encodedTimeline() ([][]byte, error) {
	records := sampleTimeline()
	out := make([][]byte, 0, len(records))
	for _, rec := range records {
		data, err := wire.Encode(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

const samplePage = `<!doctype html>
<html><head><title>vitalscope sample</title></head>
<body><h1>Sample page</h1><p>Probe target.</p></body></html>
`

func runHTTPServer(port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writePage(w)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writePage(w)
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("sample page server listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func writePage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(samplePage))
}

func runSSEServer(port int, pace time.Duration, logger *slog.Logger) error {
	timeline, err := encodedTimeline()
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		fmt.Fprint(w, ": relay ready\n\n")
		flusher.Flush()
		for _, rec := range timeline {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(pace):
			}
			fmt.Fprintf(w, "event: record\ndata: %s\n\n", rec)
			flusher.Flush()
		}
		logger.Info("timeline relayed", "transport", "sse", "records", len(timeline))
	}
	mux.HandleFunc("/events", handler)
	mux.HandleFunc("/", handler)

	addr := fmt.Sprintf(":%d", port)
	logger.Info("SSE relay listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func runWebSocketServer(port int, pace time.Duration, logger *slog.Logger) error {
	timeline, err := encodedTimeline()
	if err != nil {
		return err
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/timeline", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		go relayTimeline(conn, timeline, pace, logger)
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("WebSocket relay listening", "addr", addr)
	return http.ListenAndServe(addr, mux)
}

func relayTimeline(conn *websocket.Conn, timeline [][]byte, pace time.Duration, logger *slog.Logger) {
	defer conn.Close()

	// Drain the optional subscribe message and notice client closes.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			logger.Debug("client message", "data", string(data))
		}
	}()

	for _, rec := range timeline {
		select {
		case <-gone:
			return
		case <-time.After(pace):
		}
		if err := conn.WriteMessage(websocket.TextMessage, rec); err != nil {
			return
		}
	}
	logger.Info("timeline relayed", "transport", "websocket", "records", len(timeline))
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "page unloaded")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	select {
	case <-gone:
	case <-time.After(time.Second):
	}
}
