package session

import "strings"

// Capability is a bit set of the rights a client holds on a document.
type Capability uint8

const (
	// CapRead allows fetching snapshots and receiving broadcasts.
	CapRead Capability = 1 << iota
	// CapWrite allows submitting edit operations.
	CapWrite
	// CapComment allows attaching comments (consumed by a collaborator
	// outside this engine; tracked here so the permission check has one
	// home).
	CapComment
)

// CapOwner is the full capability set a document owner holds.
const CapOwner = CapRead | CapWrite | CapComment

// Has reports whether c includes every bit of want.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// String renders the set for logs, e.g. "read|write".
func (c Capability) String() string {
	var parts []string
	if c.Has(CapRead) {
		parts = append(parts, "read")
	}
	if c.Has(CapWrite) {
		parts = append(parts, "write")
	}
	if c.Has(CapComment) {
		parts = append(parts, "comment")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseCapability maps a config/scenario name to a capability set.
// Unknown names map to read-only.
func ParseCapability(name string) Capability {
	switch strings.ToLower(name) {
	case "owner":
		return CapOwner
	case "write", "writer", "editor":
		return CapRead | CapWrite
	case "comment", "commenter":
		return CapRead | CapComment
	default:
		return CapRead
	}
}
