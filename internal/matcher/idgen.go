package matcher

import "github.com/bwmarrin/snowflake"

// idGenerator produces globally unique, monotonic order and trade IDs.
// snowflake.Node already encodes exactly that shape: a node id (here, the
// matcher shard index) in the high bits and a per-millisecond sequence
// counter in the low bits.
type idGenerator struct {
	node *snowflake.Node
}

func newIDGenerator(shardIndex int) (*idGenerator, error) {
	node, err := snowflake.NewNode(int64(shardIndex))
	if err != nil {
		return nil, err
	}
	return &idGenerator{node: node}, nil
}

// next returns the next ID. snowflake IDs are 63-bit non-negative, so the
// int64->uint64 conversion never wraps.
func (g *idGenerator) next() uint64 {
	return uint64(g.node.Generate().Int64())
}
