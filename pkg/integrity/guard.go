// Package integrity computes and verifies detached authentication tags over
// serialized transaction manifests.
//
// The HMAC key is derived from the machine name, the account name and a fixed
// salt, and is recomputed on every call; nothing secret is persisted. A tag is
// therefore only reproducible on the machine/account that produced it, which
// is how a manifest copied from another machine is detected.
package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// keySalt is mixed into the key derivation. Changing it invalidates every
// existing sidecar.
const keySalt = "autorunkit/manifest-integrity/v1"

// Guard computes and verifies manifest tags for one machine/account pair.
// A Guard is immutable and safe for concurrent use.
type Guard struct {
	machine string
	account string
}

// New returns a Guard bound to machineName and accountName.
func New(machineName, accountName string) *Guard {
	return &Guard{machine: machineName, account: accountName}
}

// DeriveKey returns SHA256(machineName ++ accountName ++ salt).
func DeriveKey(machineName, accountName string) []byte {
	h := sha256.New()
	h.Write([]byte(machineName))
	h.Write([]byte(accountName))
	h.Write([]byte(keySalt))
	return h.Sum(nil)
}

// ComputeTag returns the base64-encoded HMAC-SHA256 of data.
func (g *Guard) ComputeTag(data []byte) string {
	return base64.StdEncoding.EncodeToString(g.mac(data))
}

// VerifyTag reports whether tag authenticates data. A tag that is not valid
// base64, or has the wrong length, verifies as false.
func (g *Guard) VerifyTag(data []byte, tag string) bool {
	got, err := base64.StdEncoding.DecodeString(tag)
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return subtle.ConstantTimeCompare(got, g.mac(data)) == 1
}

// Malformed reports whether tag cannot possibly be a tag produced by
// ComputeTag, as opposed to a well-formed tag that does not match.
func Malformed(tag string) bool {
	got, err := base64.StdEncoding.DecodeString(tag)
	return err != nil || len(got) != sha256.Size
}

func (g *Guard) mac(data []byte) []byte {
	m := hmac.New(sha256.New, DeriveKey(g.machine, g.account))
	m.Write(data)
	return m.Sum(nil)
}
