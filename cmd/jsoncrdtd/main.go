// Command jsoncrdtd runs a jsoncrdt server: a Redis-protocol frontend over
// a keyspace of JSON CRDT documents, durably persisted, optionally cached
// in Redis, optionally coordinating compaction with peers over Raft, and
// replicating documents with peers over HTTP.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/luoyjx/jsoncrdt/cache"
	"github.com/luoyjx/jsoncrdt/cluster"
	"github.com/luoyjx/jsoncrdt/config"
	"github.com/luoyjx/jsoncrdt/frontend"
	"github.com/luoyjx/jsoncrdt/server"
	"github.com/luoyjx/jsoncrdt/sync"
)

func main() {
	dataDir := flag.String("data", "./jsoncrdt-data", "directory for persistent storage")
	actor := flag.String("actor", "", "actor id this node mints dots under (default: hostname-pid)")
	port := flag.Int("port", 6380, "port to serve the Redis protocol on")
	syncPort := flag.Int("sync-port", 0, "http port peers pull document snapshots from (default: config's HTTPPort)")
	peerAddrs := flag.String("peers", "", "comma-separated http peer addresses, e.g. http://127.0.0.1:8084")
	syncInterval := flag.Duration("sync-interval", 0, "how often to pull peer snapshots (default: config's SyncInterval)")

	raftEnabled := flag.Bool("raft", false, "enable raft-coordinated compaction watermark")
	raftAddr := flag.String("raft-addr", "127.0.0.1:6381", "raft transport bind address")
	raftBootstrap := flag.Bool("raft-bootstrap", false, "bootstrap a new single-node raft cluster")

	cacheAddr := flag.String("cache-addr", "", "redis address for the snapshot cache (default: config's RedisAddr; disabled if both are empty)")
	cacheDB := flag.Int("cache-db", -1, "redis DB index for the snapshot cache (default: config's RedisDB)")

	flag.Parse()

	cfg := config.DefaultConfig()
	config.LoadFromEnv(cfg)
	if *actor != "" {
		cfg.Actor = *actor
	}
	cfg.DataDir = *dataDir
	cfg.ServerPort = *port
	if *peerAddrs != "" {
		cfg.Peers = strings.Split(*peerAddrs, ",")
	}
	if *syncInterval > 0 {
		cfg.SyncInterval = *syncInterval
	}
	if *syncPort > 0 {
		cfg.HTTPPort = *syncPort
	}
	if *cacheAddr != "" {
		cfg.RedisAddr = *cacheAddr
	}
	if *cacheDB >= 0 {
		cfg.RedisDB = *cacheDB
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	defer srv.Close()

	if cfg.RedisAddr != "" {
		snapshotCache, err := cache.New(cfg.RedisAddr, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			log.Fatalf("failed to connect to snapshot cache: %v", err)
		}
		defer snapshotCache.Close()
		srv.SetCache(snapshotCache)
		log.Printf("snapshot cache enabled at %s db=%d", cfg.RedisAddr, cfg.RedisDB)
	}

	if *raftEnabled {
		members, err := cluster.New(cluster.Config{
			NodeID:    cfg.Actor,
			BindAddr:  *raftAddr,
			DataDir:   cfg.DataDir + "/raft",
			Bootstrap: *raftBootstrap,
		})
		if err != nil {
			log.Fatalf("failed to start cluster membership: %v", err)
		}
		defer members.Close()
		srv.SetMembership(members)
		log.Printf("raft membership started on %s (bootstrap=%v)", *raftAddr, *raftBootstrap)
	}

	var peers []sync.Peer
	for _, addr := range cfg.Peers {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			peers = append(peers, sync.Peer{Address: addr})
		}
	}
	syncer := sync.New(sync.Config{Peers: peers, Interval: cfg.SyncInterval}, srv)

	stopSync := make(chan struct{})
	syncer.Start(stopSync)

	syncMux := http.NewServeMux()
	syncMux.Handle("/snapshot", syncer.HTTPHandler())
	syncAddr := cfg.GetHTTPAddress()
	syncHTTP := &http.Server{Addr: syncAddr, Handler: syncMux}
	go func() {
		log.Printf("serving document snapshots for peers on %s", syncAddr)
		if err := syncHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("snapshot http server error: %v", err)
		}
	}()

	redisFrontend := frontend.NewRedisFrontend(srv)
	errCh := make(chan error, 1)
	go func() {
		log.Printf("serving the Redis protocol on %s", cfg.GetAddress())
		if err := redisFrontend.Start(cfg.GetAddress()); err != nil {
			errCh <- fmt.Errorf("redis frontend error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Println("shutting down gracefully...")
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	close(stopSync)
	_ = syncHTTP.Close()
}
