package tasksync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportVersion is the current version of the identity export format.
const ExportVersion = "1.0"

// ExportFormat is the top-level structure of an identity export.
type ExportFormat struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Profile    string         `json:"profile"`
	Records    []TaskMetadata `json:"records"`
}

// ExportIdentity writes every identity record as JSON to w, ordered by date
// and title.
func (c *Client) ExportIdentity(ctx context.Context, w io.Writer) error {
	if err := c.Refresh(); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	records := c.identity.GetAllMetadata()

	header := fmt.Sprintf(`{"version":%q,"exported_at":%q,"profile":%s,"records":[`,
		ExportVersion,
		c.now().UTC().Format(time.RFC3339),
		jsonString(c.config.Profile),
	)
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	enc := json.NewEncoder(w)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write separator: %w", err)
			}
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}

	if _, err := io.WriteString(w, "]}\n"); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}
	return nil
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
