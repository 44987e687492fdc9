package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Init configures the snowflake node. Calling it again replaces the node,
// which tests rely on to get a fresh generator.
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("creating snowflake node %d: %w", nodeID, err)
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

// New returns a time-ordered unique id. Init must have been called.
func New() int64 {
	mu.Lock()
	n := node
	mu.Unlock()
	if n == nil {
		panic("id: New called before Init")
	}
	return n.Generate().Int64()
}
