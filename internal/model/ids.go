package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClientID is an identifier chosen by a client. Browsers send these as
// either JSON numbers or strings, so both are accepted and normalized to
// their textual form. The zero value means "no id".
type ClientID string

// IDFromInt converts a store-assigned id into a ClientID.
func IDFromInt(id int64) ClientID {
	return ClientID(strconv.FormatInt(id, 10))
}

// Int reports the id as an integer when it is numeric.
func (c ClientID) Int() (int64, bool) {
	n, err := strconv.ParseInt(string(c), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// UnmarshalJSON accepts a number, a string, or null.
func (c *ClientID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ClientID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*c = ClientID(n.String())
	return nil
}

// MarshalJSON writes integer ids as numbers and everything else as strings.
func (c ClientID) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	if n, ok := c.Int(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(c))
}

// Timestamp is a UTC instant that decodes from an RFC 3339 string or a
// Unix epoch in milliseconds, and always encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t in UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parsing timestamp %q: %w", s, err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("timestamp must be a string or epoch milliseconds: %w", err)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
