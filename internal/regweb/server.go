// Package regweb serves the process registry's live event stream over a
// websocket relay plus a small read-only HTML dump page, the same way
// internal/web exposed the mail app's agent/message state to a browser.
package regweb

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"time"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/registry"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/registry/eventlog"
	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Server is the HTTP surface for a running string-keyed process registry: a
// JSON REST facade, a websocket relay of key events, and a markdown-rendered
// dump page of the current name table.
type Server struct {
	reg    *registry.Handle[string]
	log    *eventlog.Store // optional, nil disables /dump's recent-events panel
	hub    *Hub
	owners *httpOwners
	mux    *http.ServeMux
	srv    *http.Server
	addr   string
	dumpT  *template.Template
}

// Config holds configuration for the registry web server.
type Config struct {
	Addr string

	// EventLog is optional; when set, the dump page also lists recent
	// key events instead of only the current name table.
	EventLog *eventlog.Store
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{Addr: ":8090"}
}

// NewServer wires reg behind an HTTP server per cfg.
func NewServer(cfg *Config, reg *registry.Handle[string]) (*Server, error) {
	tmpl, err := template.New("dump").Funcs(template.FuncMap{
		"markdown": markdownToHTML,
	}).Parse(dumpPageTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dump page template: %w", err)
	}

	s := &Server{
		reg:    reg,
		log:    cfg.EventLog,
		hub:    NewHub(),
		owners: newHTTPOwners(),
		mux:    http.NewServeMux(),
		addr:   cfg.Addr,
		dumpT:  tmpl,
	}
	s.registerRoutes()
	go s.hub.Run()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/dump", s.handleDump)
	s.mux.HandleFunc("/ws", s.handleWebSocket)

	api := func(h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(jsonMiddleware(h))
	}
	s.mux.HandleFunc("/api/v1/health", api(s.handleHealth))
	s.mux.HandleFunc("/api/v1/names", api(s.handleNames))
	s.mux.HandleFunc("/api/v1/register", api(s.handleRegister))
	s.mux.HandleFunc("/api/v1/unregister", api(s.handleUnregister))
	s.mux.HandleFunc("/api/v1/lookup", api(s.handleLookup))
}

// Start runs the HTTP server until it errors or Shutdown is called.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.InfoS(context.Background(), "registry web relay listening", "addr", s.addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and tears down every connected
// websocket client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func jsonMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next(w, r)
	}
}

// upgrader accepts same-origin and no-origin (non-browser client) requests.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// handleWebSocket upgrades GET /ws?name=<key> into a live relay of that
// key's registry events, using the same monitor verb any other subscriber
// would use.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name query parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WarnS(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, name)
	sub := newWSSubscriber(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_, err = registry.MonitorName[string](ctx, s.reg, name, sub)
	cancel()
	if err != nil {
		log.WarnS(context.Background(), "failed to install monitor for websocket client", "name", name, "error", err)
		client.Close()
		return
	}

	s.hub.register <- client

	go client.writePump()
	go func() {
		client.readPump()
		// The connection is gone: report the subscriber dead so the
		// registry reaps its subscription.
		sub.Kill(actor.NormalExitReason())
	}()
}

// handleDump renders the current name table (and, if an event log is
// attached, the most recent key events) as a small markdown table turned
// into HTML, the same helper-driven approach the mail dashboard used for
// review bodies.
func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	type row struct {
		Name  string
		Owner string
	}
	var rows []row
	_, err := registry.FoldNames[string, struct{}](ctx, s.reg, struct{}{},
		func(_ struct{}, key string, owner actor.ProcessId) struct{} {
			rows = append(rows, row{Name: key, Owner: string(owner)})
			return struct{}{}
		})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	var md string
	md += "| Name | Owner |\n|---|---|\n"
	for _, rw := range rows {
		md += fmt.Sprintf("| %s | %s |\n", rw.Name, rw.Owner)
	}

	var recent []eventlog.Record
	if s.log != nil {
		recent, _ = s.log.RecentEvents(ctx, 50)
	}

	data := struct {
		NameTable string
		Recent    []eventlog.Record
	}{NameTable: md, Recent: recent}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.dumpT.Execute(w, data); err != nil {
		log.WarnS(ctx, "failed to render dump page", "error", err)
	}
}

func markdownToHTML(s string) template.HTML {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}

const dumpPageTemplate = `<!DOCTYPE html>
<html>
<head><title>process registry</title></head>
<body>
<h1>Registered names</h1>
{{ markdown .NameTable }}
{{ if .Recent }}
<h1>Recent key events</h1>
<table>
<tr><th>time</th><th>key</th><th>kind</th><th>owner</th></tr>
{{ range .Recent }}
<tr><td>{{ .RecordedAt }}</td><td>{{ .KeyIdentity }}</td><td>{{ .EventKind }}</td><td>{{ .OwnerPid }}</td></tr>
{{ end }}
</table>
{{ end }}
</body>
</html>
`
