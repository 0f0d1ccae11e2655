// Package frontend exposes server.Server over the Redis wire protocol
// via tidwall/redcon, the same way redisprotocol/redis.go wraps the
// teacher's Server with a redcon command-dispatch switch. The command
// surface here is JSON-document shaped (JSON.GET/JSON.PATCH/JSON.DIFF/
// JSON.MERGE) rather than Redis's per-type commands, since this spec's
// unit of storage is a whole JSON CRDT document, not a typed value.
package frontend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/luoyjx/jsoncrdt/patch"
	"github.com/luoyjx/jsoncrdt/server"
	"github.com/tidwall/redcon"
)

// RedisFrontend handles Redis protocol connections against a
// server.Server.
type RedisFrontend struct {
	srv *server.Server
}

// NewRedisFrontend wraps srv in a Redis-protocol frontend.
func NewRedisFrontend(srv *server.Server) *RedisFrontend {
	return &RedisFrontend{srv: srv}
}

// Start begins serving the Redis protocol on addr. It blocks until the
// listener fails.
func (f *RedisFrontend) Start(addr string) error {
	return redcon.ListenAndServe(addr,
		f.handleCommand,
		f.handleConnect,
		f.handleDisconnect,
	)
}

func (f *RedisFrontend) handleCommand(conn redcon.Conn, cmd redcon.Command) {
	switch strings.ToUpper(string(cmd.Args[0])) {
	case "PING":
		switch len(cmd.Args) {
		case 1:
			conn.WriteString("PONG")
		case 2:
			conn.WriteBulk(cmd.Args[1])
		default:
			conn.WriteError("ERR wrong number of arguments for 'ping' command")
		}

	case "JSON.GET":
		if len(cmd.Args) != 2 {
			conn.WriteError("ERR wrong number of arguments for 'json.get' command")
			return
		}
		docID := string(cmd.Args[1])
		value, err := f.srv.Get(docID)
		if err != nil {
			conn.WriteError(fmt.Sprintf("ERR %v", err))
			return
		}
		data, err := json.Marshal(value)
		if err != nil {
			conn.WriteError(fmt.Sprintf("ERR %v", err))
			return
		}
		conn.WriteBulk(data)

	case "JSON.PATCH":
		if len(cmd.Args) != 3 {
			conn.WriteError("ERR wrong number of arguments for 'json.patch' command")
			return
		}
		docID := string(cmd.Args[1])
		var ops []patch.Operation
		if err := json.Unmarshal(cmd.Args[2], &ops); err != nil {
			conn.WriteError(fmt.Sprintf("ERR invalid patch document: %v", err))
			return
		}
		if err := f.srv.Patch(docID, ops); err != nil {
			conn.WriteError(fmt.Sprintf("ERR %v", err))
			return
		}
		conn.WriteString("OK")

	case "JSON.DIFF":
		if len(cmd.Args) != 3 {
			conn.WriteError("ERR wrong number of arguments for 'json.diff' command")
			return
		}
		docA, docB := string(cmd.Args[1]), string(cmd.Args[2])
		ops, err := f.srv.Diff(docA, docB)
		if err != nil {
			conn.WriteError(fmt.Sprintf("ERR %v", err))
			return
		}
		data, err := json.Marshal(ops)
		if err != nil {
			conn.WriteError(fmt.Sprintf("ERR %v", err))
			return
		}
		conn.WriteBulk(data)

	case "JSON.MERGE":
		if len(cmd.Args) != 4 {
			conn.WriteError("ERR wrong number of arguments for 'json.merge' command")
			return
		}
		dest, docA, docB := string(cmd.Args[1]), string(cmd.Args[2]), string(cmd.Args[3])
		if err := f.srv.Merge(dest, docA, docB); err != nil {
			conn.WriteError(fmt.Sprintf("ERR %v", err))
			return
		}
		conn.WriteString("OK")

	default:
		conn.WriteError("ERR unknown command '" + string(cmd.Args[0]) + "'")
	}
}

func (f *RedisFrontend) handleConnect(conn redcon.Conn) bool {
	return true
}

func (f *RedisFrontend) handleDisconnect(conn redcon.Conn, err error) {}
