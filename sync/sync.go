// Package sync implements periodic snapshot replication between peer
// servers over HTTP, grounded on syncer/syncer.go's pull/push loop but
// adapted from pulling individual Redis-style operations to pulling
// whole document snapshots and merging them in — the right replication
// unit for a CRDT document, where the merge itself (not operation
// replay order) is what guarantees convergence.
package sync

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luoyjx/jsoncrdt/server"
)

// Peer is a remote server this node replicates with.
type Peer struct {
	Address string // http base, e.g. http://127.0.0.1:8083
}

// Config configures a Syncer.
type Config struct {
	Peers    []Peer
	Interval time.Duration
}

// Syncer periodically pulls every peer's copy of each document this
// node already knows about, merges it into the local copy, and leaves
// the merged result as the new local copy. Which documents exist is
// asked of server.Server.Documents each round rather than tracked here,
// so a document created by a local Patch starts replicating on the very
// next tick with no separate registration step.
type Syncer struct {
	cfg        Config
	srv        *server.Server
	httpClient *http.Client
}

// New returns a Syncer for srv.
func New(cfg Config, srv *server.Server) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Syncer{
		cfg:        cfg,
		srv:        srv,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Start launches periodic replication in the background until stop is
// closed.
func (s *Syncer) Start(stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.replicateOnce()
			case <-stop:
				return
			}
		}
	}()
}

func (s *Syncer) replicateOnce() {
	docIDs, err := s.srv.Documents()
	if err != nil {
		return
	}
	for _, docID := range docIDs {
		for _, p := range s.cfg.Peers {
			s.pullAndMerge(p, docID)
		}
	}
}

// pullAndMerge fetches docID's snapshot from p, stages it under a
// scratch document id, and merges it into the local copy, storing the
// merge result as the local document.
func (s *Syncer) pullAndMerge(p Peer, docID string) {
	url := fmt.Sprintf("%s/snapshot?doc=%s", p.Address, docID)
	resp, err := s.httpClient.Get(url)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return
	}
	if resp.StatusCode != http.StatusOK {
		return
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		return
	}

	remoteDoc := "_remote:" + docID
	if err := s.srv.ImportSnapshot(remoteDoc, data); err != nil {
		return
	}
	_ = s.srv.Merge(docID, docID, remoteDoc)
}

// HTTPHandler returns the "/snapshot" handler a peer's HTTP server uses
// to serve this node's documents for pullAndMerge to fetch.
func (s *Syncer) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docID := r.URL.Query().Get("doc")
		if docID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, err := s.srv.ExportSnapshot(docID)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if data == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, bytes.NewReader(data))
	}
}
