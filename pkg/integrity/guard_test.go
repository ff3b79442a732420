package integrity

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_VerifyOwnTag(t *testing.T) {
	g := New("WORKSTATION-1", "alice")

	inputs := [][]byte{
		nil,
		{},
		[]byte("manifest"),
		[]byte(`{"id":"20260101T000000Z-abc","status":"Pending"}`),
		make([]byte, 4096),
	}
	for _, in := range inputs {
		tag := g.ComputeTag(in)
		assert.True(t, g.VerifyTag(in, tag), "input %q", in)
	}
}

func TestGuard_DifferentDataFails(t *testing.T) {
	g := New("WORKSTATION-1", "alice")
	x := []byte(`{"status":"Committed"}`)
	y := []byte(`{"status":"Committee"}`)

	assert.False(t, g.VerifyTag(x, g.ComputeTag(y)))
}

func TestGuard_BoundToMachineAndAccount(t *testing.T) {
	data := []byte("manifest bytes")
	tag := New("WORKSTATION-1", "alice").ComputeTag(data)

	assert.False(t, New("WORKSTATION-2", "alice").VerifyTag(data, tag), "copied to another machine")
	assert.False(t, New("WORKSTATION-1", "bob").VerifyTag(data, tag), "other account")
	assert.True(t, New("WORKSTATION-1", "alice").VerifyTag(data, tag), "same machine/account")
}

func TestGuard_MalformedTag(t *testing.T) {
	g := New("m", "a")
	data := []byte("x")

	tests := []string{"", "not base64 !!", "AAAA", g.ComputeTag(data) + "AAAA"}
	for _, tag := range tests {
		assert.False(t, g.VerifyTag(data, tag), "tag %q", tag)
		assert.True(t, Malformed(tag), "tag %q", tag)
	}
	assert.False(t, Malformed(g.ComputeTag(data)))
}

func TestDeriveKey(t *testing.T) {
	want := sha256.Sum256([]byte("m" + "a" + keySalt))
	require.Equal(t, want[:], DeriveKey("m", "a"))
}
