// Command tapestub is a development upstream for tapedeck: an in-memory
// sheet API serving the versioned JSON, full JSON and CSV tiers, plus a toy
// CORS proxy, with a mutation ticker so delta polls and change
// notifications have something to observe.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/cors"
)

// maxChangeLog bounds how many versions back a delta poll can reach; older
// requests get needsReload, same as the real API.
const maxChangeLog = 50

type change struct {
	Key string            `json:"key"`
	Op  string            `json:"op"`
	Row map[string]string `json:"row,omitempty"`
}

type versionedChange struct {
	version int64
	change  change
}

// sheet is one mutable dataset.
type sheet struct {
	mu      sync.Mutex
	header  []string
	rows    []map[string]string
	version int64
	log     []versionedChange
}

func newSheet(size int) *sheet {
	s := &sheet{header: []string{"ticker", "score", "pe", "updated"}, version: 1}
	for i := 0; i < size; i++ {
		s.rows = append(s.rows, map[string]string{
			"ticker":  fmt.Sprintf("TK%03d", i),
			"score":   strconv.Itoa(50 + rand.Intn(50)),
			"pe":      fmt.Sprintf("%.1f", 5+rand.Float64()*40),
			"updated": time.Now().UTC().Format(time.RFC3339),
		})
	}
	return s
}

func (s *sheet) grid() (int64, [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grid := [][]string{append([]string(nil), s.header...)}
	for _, r := range s.rows {
		row := make([]string, len(s.header))
		for i, col := range s.header {
			row[i] = r[col]
		}
		grid = append(grid, row)
	}
	return s.version, grid
}

func (s *sheet) changesSince(since int64) (int64, []change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if since == s.version {
		return s.version, nil, false
	}
	oldest := s.version - int64(len(s.log))
	if since < oldest || since > s.version {
		return s.version, nil, true
	}
	// Last write per key wins; emit in original order.
	latest := make(map[string]int)
	var out []change
	for _, vc := range s.log {
		if vc.version <= since {
			continue
		}
		if i, ok := latest[vc.change.Key]; ok {
			out[i] = vc.change
			continue
		}
		latest[vc.change.Key] = len(out)
		out = append(out, vc.change)
	}
	return s.version, out, false
}

// mutate applies one random change and logs it under the new version.
func (s *sheet) mutate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++

	roll := rand.Intn(10)
	switch {
	case roll == 0 && len(s.rows) > 5:
		i := rand.Intn(len(s.rows))
		key := s.rows[i]["ticker"]
		s.rows = append(s.rows[:i], s.rows[i+1:]...)
		s.record(change{Key: key, Op: "delete"})
	case roll == 1:
		row := map[string]string{
			"ticker":  fmt.Sprintf("NW%03d", rand.Intn(1000)),
			"score":   strconv.Itoa(50 + rand.Intn(50)),
			"pe":      fmt.Sprintf("%.1f", 5+rand.Float64()*40),
			"updated": time.Now().UTC().Format(time.RFC3339),
		}
		s.rows = append(s.rows, row)
		s.record(change{Key: row["ticker"], Op: "upsert", Row: row})
	default:
		i := rand.Intn(len(s.rows))
		s.rows[i]["score"] = strconv.Itoa(50 + rand.Intn(50))
		s.rows[i]["updated"] = time.Now().UTC().Format(time.RFC3339)
		s.record(change{Key: s.rows[i]["ticker"], Op: "upsert", Row: cloneRow(s.rows[i])})
	}
	return s.version
}

func (s *sheet) record(c change) {
	s.log = append(s.log, versionedChange{version: s.version, change: c})
	if len(s.log) > maxChangeLog {
		s.log = s.log[len(s.log)-maxChangeLog:]
	}
}

func cloneRow(r map[string]string) map[string]string {
	out := make(map[string]string, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type server struct {
	sheets map[string]*sheet
}

func (sv *server) sheet(w http.ResponseWriter, r *http.Request) *sheet {
	name := strings.TrimSuffix(r.PathValue("name"), ".csv")
	s, ok := sv.sheets[name]
	if !ok {
		http.NotFound(w, r)
		return nil
	}
	return s
}

func (sv *server) handleVersioned(w http.ResponseWriter, r *http.Request) {
	s := sv.sheet(w, r)
	if s == nil {
		return
	}
	version, grid := s.grid()
	writeJSON(w, map[string]any{"version": version, "values": grid})
}

func (sv *server) handleFull(w http.ResponseWriter, r *http.Request) {
	s := sv.sheet(w, r)
	if s == nil {
		return
	}
	_, grid := s.grid()
	writeJSON(w, grid)
}

func (sv *server) handleChanges(w http.ResponseWriter, r *http.Request) {
	s := sv.sheet(w, r)
	if s == nil {
		return
	}
	since, err := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if err != nil {
		http.Error(w, "bad since parameter", http.StatusBadRequest)
		return
	}
	version, changes, needsReload := s.changesSince(since)
	if needsReload {
		writeJSON(w, map[string]any{"needsReload": true})
		return
	}
	if changes == nil {
		changes = []change{}
	}
	writeJSON(w, map[string]any{"version": version, "changes": changes})
}

func (sv *server) handleCSV(w http.ResponseWriter, r *http.Request) {
	s := sv.sheet(w, r)
	if s == nil {
		return
	}
	_, grid := s.grid()
	w.Header().Set("Content-Type", "text/csv")
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(grid); err != nil {
		log.Printf("write csv: %v", err)
	}
}

// handleProxy imitates a public CORS proxy: fetch ?url= and relay the body.
func (sv *server) handleProxy(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}
	resp, err := http.Get(target)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("proxy copy: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8787", "listen address")
	sources := flag.String("sources", "scores,fundamentals,thresholds", "comma-separated dataset names")
	seedRows := flag.Int("rows", 40, "rows per dataset")
	mutateEvery := flag.Duration("mutate", 20*time.Second, "mutation cadence (0 disables)")
	flag.Parse()

	sv := &server{sheets: make(map[string]*sheet)}
	for _, name := range strings.Split(*sources, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			sv.sheets[name] = newSheet(*seedRows)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/values/{name}", sv.handleVersioned)
	mux.HandleFunc("GET /v1/changes/{name}", sv.handleChanges)
	mux.HandleFunc("GET /values/{name}", sv.handleFull)
	mux.HandleFunc("GET /export/{name}", sv.handleCSV)
	mux.HandleFunc("GET /proxy", sv.handleProxy)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *mutateEvery > 0 {
		go func() {
			ticker := time.NewTicker(*mutateEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					for name, s := range sv.sheets {
						log.Printf("mutated %s, now v%d", name, s.mutate())
					}
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:    *addr,
		Handler: cors.AllowAll().Handler(mux),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("tapestub serving %d datasets on %s", len(sv.sheets), *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "tapestub: %v\n", err)
		os.Exit(1)
	}
}
