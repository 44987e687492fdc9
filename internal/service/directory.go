package service

import (
	"sync"

	"basegraph.app/advflag/internal/model"
)

// postDirectory holds post snapshots by id. The first snapshot of a post wins so
// later page renders cannot change what an action sees.
type postDirectory struct {
	mu      sync.RWMutex
	posts   map[int64]model.Post
	flagged map[int64]model.ReportKind
}

func newPostDirectory() *postDirectory {
	return &postDirectory{
		posts:   make(map[int64]model.Post),
		flagged: make(map[int64]model.ReportKind),
	}
}

// put stores post unless one with the same id exists. It reports whether the
// snapshot was stored.
func (d *postDirectory) put(post model.Post) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.posts[post.ID]; ok {
		return false
	}
	post.Comments = append([]string(nil), post.Comments...)
	d.posts[post.ID] = post
	return true
}

func (d *postDirectory) get(postID int64) (model.Post, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.posts[postID]
	return p, ok
}

func (d *postDirectory) recordFlag(postID int64, kind model.ReportKind) {
	d.mu.Lock()
	d.flagged[postID] = kind
	d.mu.Unlock()
}

func (d *postDirectory) flaggedAs(postID int64) model.ReportKind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.flagged[postID]
}
