package gen

import (
	"fmt"

	"naano-tracking/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("gen", fx.Provide(NewSnowflakeNode))

// NewSnowflakeNode returns the id generator for this process. NODE_ID must be
// unique per running replica.
func NewSnowflakeNode(c *config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(c.NodeID)
	if err != nil {
		return nil, fmt.Errorf("init snowflake node %d: %w", c.NodeID, err)
	}
	return node, nil
}
