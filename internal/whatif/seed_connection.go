package whatif

import (
	"context"

	"github.com/google/uuid"

	"github.com/sqlfleet/deployctl/internal/seed"
)

// SeedConnection is the what-if variant of seed.Connection: it logs
// "would prepare connection" and "would execute batch beginning with:
// <trimmed first line>" and performs no I/O.
type SeedConnection struct {
	Log Sink
}

var _ seed.Connection = (*SeedConnection)(nil)

func (c *SeedConnection) Prepare(ctx context.Context, runId uuid.UUID, workerId int) error {
	c.log("would prepare connection")
	return nil
}

func (c *SeedConnection) ExecuteBatch(ctx context.Context, sql string) error {
	c.log("would execute batch beginning with: " + firstLine(sql))
	return nil
}

func (c *SeedConnection) Close() error { return nil }

func (c *SeedConnection) log(line string) {
	if c.Log != nil {
		c.Log(line)
	}
}
