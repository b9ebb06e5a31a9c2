// Package handlers implements the MOUNT protocol (RFC 1813 Appendix I) for a
// server that exports a single working copy.
//
// MNT hands out the root handle of the export. The mount list kept for DUMP
// is advisory, as in every NFS server: clients that crash never unmount.
package handlers

import (
	"context"
	"slices"
	"sync"

	"github.com/marmos91/yak/internal/protocol/rpc"
)

// Handler serves the MOUNT program of one export.
type Handler struct {
	export     string
	rootHandle []byte

	mu     sync.Mutex
	mounts map[string]map[string]struct{} // client host -> mounted paths
}

// New returns a handler exporting export, whose root is rootHandle.
func New(export string, rootHandle []byte) *Handler {
	return &Handler{
		export:     export,
		rootHandle: rootHandle,
		mounts:     make(map[string]map[string]struct{}),
	}
}

// ExportPath returns the exported path.
func (h *Handler) ExportPath() string {
	return h.export
}

// MountContext carries the caller of a MOUNT procedure.
type MountContext struct {
	Context    context.Context
	ClientAddr string
	AuthFlavor uint32
	UnixAuth   *rpc.UnixAuth
}

// exports reports whether path names the export. Clients may mount "/" as
// well as the export path itself.
func (h *Handler) exports(path string) bool {
	return path == "/" || path == h.export
}

func (h *Handler) record(client, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	paths, ok := h.mounts[client]
	if !ok {
		paths = make(map[string]struct{})
		h.mounts[client] = paths
	}
	paths[path] = struct{}{}
}

func (h *Handler) forget(client, path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.mounts[client], path)
	if len(h.mounts[client]) == 0 {
		delete(h.mounts, client)
	}
}

func (h *Handler) forgetAll(client string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.mounts[client])
	delete(h.mounts, client)
	return n
}

// entries lists the mount list sorted by host then path.
func (h *Handler) entries() []MountEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []MountEntry
	for host, paths := range h.mounts {
		for path := range paths {
			out = append(out, MountEntry{Hostname: host, Directory: path})
		}
	}
	slices.SortFunc(out, func(a, b MountEntry) int {
		if a.Hostname != b.Hostname {
			if a.Hostname < b.Hostname {
				return -1
			}
			return 1
		}
		switch {
		case a.Directory < b.Directory:
			return -1
		case a.Directory > b.Directory:
			return 1
		}
		return 0
	})
	return out
}

// MountEntry is one mountbody of a DUMP reply.
type MountEntry struct {
	Hostname  string
	Directory string
}
