package status

import (
	"fmt"
	"sync"

	"basegraph.app/advflag/internal/model"
)

type key struct {
	postID  int64
	service model.ReporterKind
}

// Registry owns every status cell of the session, at most one per
// (post, service) pair.
type Registry struct {
	attempts int

	mu    sync.Mutex
	cells map[key]*Cell
}

func NewRegistry(attempts int) *Registry {
	return &Registry{attempts: attempts, cells: make(map[key]*Cell)}
}

// Cell returns the cell for the pair, creating it with probe on first use.
// probe is ignored when the cell already exists.
func (r *Registry) Cell(postID int64, service model.ReporterKind, probe ProbeFunc) *Cell {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{postID: postID, service: service}
	if c, ok := r.cells[k]; ok {
		return c
	}
	c := NewCell(fmt.Sprintf("%s/%d", service, postID), probe, r.attempts)
	r.cells[k] = c
	return c
}

// Lookup returns an existing cell without creating one.
func (r *Registry) Lookup(postID int64, service model.ReporterKind) (*Cell, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cells[key{postID: postID, service: service}]
	return c, ok
}
