// Package id provides centralized ID generation for the shell kernel.
//
// Instance, session, and pop-out identifiers are prefixed ULIDs:
// lexicographically sortable, unique across components, and readable in
// logs (inst_*, sess_*, pop_*). Window ids are deliberately not ULIDs;
// they come from a counter owned by the window manager (see types.WindowID).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InstanceID identifies a running application instance.
type InstanceID string

// SessionID identifies a saved desktop session.
type SessionID string

// PopoutID identifies a detached top-level window being tracked.
type PopoutID string

const (
	InstancePrefix = "inst"
	SessionPrefix  = "sess"
	PopoutPrefix   = "pop"
)

// Generator generates ULIDs with optional prefixes.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // protects entropy reader
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() { defaultGenerator = NewGenerator() })
	return defaultGenerator
}

// NewInstanceID generates a new application instance ID.
func NewInstanceID() InstanceID {
	return InstanceID(Default().GenerateWithPrefix(InstancePrefix))
}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(Default().GenerateWithPrefix(SessionPrefix))
}

// NewPopoutID generates a new pop-out tracking ID.
func NewPopoutID() PopoutID {
	return PopoutID(Default().GenerateWithPrefix(PopoutPrefix))
}

func (id InstanceID) String() string { return string(id) }
func (id SessionID) String() string  { return string(id) }
func (id PopoutID) String() string   { return string(id) }

// IsValid reports whether the part after the prefix parses as a ULID.
func IsValid(s string) bool {
	if i := strings.IndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	_, err := ulid.Parse(s)
	return err == nil
}
