package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewRecordID generates a globally unique KSUID string. Used for user and
// attendance record identities; ids are immutable once assigned, which the
// sync merge relies on.
func NewRecordID() string {
	return ksuid.New().String()
}

// NewOperationID generates a snowflake ID string used to correlate the log
// entries of a single reconciliation run. The node ID comes from the
// SNOWFLAKE_NODE environment variable; if node setup fails it falls back to
// a KSUID so a unique ID is always returned.
func NewOperationID() string {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return newOperationIDWithNode(1)
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return newOperationIDWithNode(1)
	}
	return newOperationIDWithNode(nodeID)
}

func newOperationIDWithNode(nodeID int64) string {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return NewRecordID()
	}
	return node.Generate().String()
}
