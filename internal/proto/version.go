package proto

import "fmt"

// ProtocolVersion is the wire format's version number, carried as the
// first field of every ClientToServer/ServerToClient message (§6). A
// breaking wire-format change increments it; there is no minor
// version, since client and server are always deployed together in
// this system's intended operation.
type ProtocolVersion = uint32

// IsCompatible reports whether a client and server protocol version
// may exchange messages. Versions are compatible iff they are equal —
// there is no backward-compatibility window.
func IsCompatible(client, server ProtocolVersion) bool {
	return client == server
}

// CompareVersion returns -1, 0, or 1 as v1 is less than, equal to, or
// greater than v2.
func CompareVersion(v1, v2 ProtocolVersion) int {
	switch {
	case v1 < v2:
		return -1
	case v1 > v2:
		return 1
	default:
		return 0
	}
}

// VersionMismatchError describes an incompatible handshake, carrying
// both versions so the server can log which client build is stale.
type VersionMismatchError struct {
	Client, Server ProtocolVersion
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("protocol version mismatch: client=%d server=%d", e.Client, e.Server)
}

// CheckVersion returns a *VersionMismatchError if client and server
// are incompatible, nil otherwise.
func CheckVersion(client, server ProtocolVersion) error {
	if IsCompatible(client, server) {
		return nil
	}
	return &VersionMismatchError{Client: client, Server: server}
}
