package adapter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Cursor is the decoded form of the opaque sync watermark.
// Since is the lower bound of the current pass; Token or Offset locate the
// next page within it; HighWater is the newest update time seen so far and
// becomes the next pass's Since once the pass reaches the end. Generation
// counts completed passes.
type Cursor struct {
	Since      time.Time `json:"since,omitzero"`
	Token      string    `json:"token,omitempty"`
	Offset     int       `json:"offset,omitempty"`
	HighWater  time.Time `json:"hw,omitzero"`
	Generation int       `json:"gen,omitempty"`
}

func EncodeCursor(c Cursor) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	if s == "" {
		return c, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid cursor: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("invalid cursor: %w", err)
	}
	return c, nil
}

// Observe raises the high-water mark to t
func (c *Cursor) Observe(t time.Time) {
	if t.After(c.HighWater) {
		c.HighWater = t
	}
}

// Advance returns the cursor for the page after this one. When hasMore is
// false the pass is complete and the watermark moves to HighWater.
func (c Cursor) Advance(hasMore bool, token string, offset int) Cursor {
	if hasMore {
		return Cursor{Since: c.Since, Token: token, Offset: offset, HighWater: c.HighWater, Generation: c.Generation}
	}
	since := c.Since
	if c.HighWater.After(since) {
		since = c.HighWater
	}
	return Cursor{Since: since, HighWater: since, Generation: c.Generation + 1}
}
