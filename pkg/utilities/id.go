package utilities

import (
	"fmt"
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGenerator hands out int64 snowflake ids. Safe for concurrent use.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given snowflake node (0-1023).
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &IDGenerator{node: node}, nil
}

// Default snowflake nodes. Processes that write to the same database must
// use different nodes; SNOWFLAKE_NODE overrides the default.
const (
	NodeAPI int64 = 1
	NodeCLI int64 = 2
)

// IDGeneratorFromEnv uses the node id in SNOWFLAKE_NODE and falls back to
// defaultNode when it is unset or not a number.
func IDGeneratorFromEnv(defaultNode int64) (*IDGenerator, error) {
	nodeID := defaultNode
	if v, err := strconv.ParseInt(os.Getenv("SNOWFLAKE_NODE"), 10, 64); err == nil {
		nodeID = v
	}
	return NewIDGenerator(nodeID)
}

// Next returns a new id.
func (g *IDGenerator) Next() int64 {
	return g.node.Generate().Int64()
}
