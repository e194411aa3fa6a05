package core

import (
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator issues stable, process-unique string ids for every record
// kind the Store creates. Memory.ID (and its siblings) are never null;
// this is the single place that guarantee is satisfied from.
type IDGenerator struct {
	mu   sync.Mutex
	node *snowflake.Node
}

// NewIDGenerator builds a generator rooted at nodeID (0..1023). Distinct
// processes sharing a store MUST use distinct node ids to avoid
// collisions.
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &IDGenerator{node: node}, nil
}

// Next returns the next id as a decimal string.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return strconv.FormatInt(g.node.Generate().Int64(), 10)
}
