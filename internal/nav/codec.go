package nav

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Telegram rejects callback data longer than 64 bytes.
const maxCallbackBytes = 64

// tokenPrefix marks callback data that carries an opaque token instead of an
// inline path.
const tokenPrefix = "tk"

// defaultTokenTTL bounds how long an overflow token stays resolvable. Menus
// older than this are stale anyway; the user re-enters via the batch command.
const defaultTokenTTL = 24 * time.Hour

// Codec encodes a menu state into callback data and back. Path components
// are percent-escaped so names containing the "_" delimiter survive the
// round trip. Encodings that would not fit Telegram's callback-data limit
// are swapped for a short token resolved through an in-process table.
type Codec struct {
	mu     sync.Mutex
	tokens map[string]tokenEntry
	ttl    time.Duration
	now    func() time.Time
}

type tokenEntry struct {
	data     string
	issuedAt time.Time
}

// NewCodec creates a codec with the default token lifetime.
func NewCodec() *Codec {
	return &Codec{
		tokens: make(map[string]tokenEntry),
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
}

// escapeComponent percent-encodes the delimiter and the escape character
// itself. Everything else passes through untouched to keep encodings short.
func escapeComponent(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "_", "%5F")
	return s
}

// Encode joins a state prefix and path components into callback data.
func (c *Codec) Encode(prefix string, fields ...string) string {
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, prefix)
	for _, f := range fields {
		parts = append(parts, escapeComponent(f))
	}
	data := strings.Join(parts, "_")

	if len(data) <= maxCallbackBytes {
		return data
	}
	return tokenPrefix + "_" + c.storeToken(data)
}

// Decode splits callback data into its state prefix and unescaped path
// components. Token-carrying data is resolved through the table first.
func (c *Codec) Decode(data string) (string, []string, error) {
	if rest, ok := strings.CutPrefix(data, tokenPrefix+"_"); ok {
		full, ok := c.lookupToken(rest)
		if !ok {
			return "", nil, fmt.Errorf("unknown or expired callback token %q", rest)
		}
		data = full
	}

	parts := strings.Split(data, "_")
	if len(parts) == 0 || parts[0] == "" {
		return "", nil, fmt.Errorf("empty callback data")
	}

	fields := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		f, err := url.PathUnescape(p)
		if err != nil {
			return "", nil, fmt.Errorf("malformed callback component %q: %w", p, err)
		}
		fields = append(fields, f)
	}
	return parts[0], fields, nil
}

func (c *Codec) storeToken(data string) string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in serious trouble;
		// a time-derived token still works for a single instance.
		copy(buf, fmt.Sprintf("%012x", c.now().UnixNano()))
	}
	token := hex.EncodeToString(buf)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[token] = tokenEntry{data: data, issuedAt: c.now()}
	return token
}

func (c *Codec) lookupToken(token string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tokens[token]
	if !ok {
		return "", false
	}
	if c.now().Sub(entry.issuedAt) > c.ttl {
		delete(c.tokens, token)
		return "", false
	}
	return entry.data, true
}
