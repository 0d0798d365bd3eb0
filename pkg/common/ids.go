package common

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
	nodeID   int64 = 1
)

// SetNodeID selects the snowflake node; it must be called before the first id is generated
func SetNodeID(id int64) {
	nodeID = id
}

func idNode() *snowflake.Node {
	nodeOnce.Do(func() {
		n, err := snowflake.NewNode(nodeID)
		if err != nil {
			n, _ = snowflake.NewNode(1)
		}
		node = n
	})
	return node
}

// UUIDint64 returns a new unique int64 id
func UUIDint64() int64 {
	return idNode().Generate().Int64()
}

// UUID returns a new unique id rendered as a decimal string
func UUID() string {
	return idNode().Generate().String()
}
