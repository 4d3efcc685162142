package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrincipalStoreLookups(t *testing.T) {
	store := newPrincipalStore([]PrincipalSeed{
		{ID: "p1", Username: "alice", PasswordHash: "hash1", Role: "operator"},
		{ID: "p2", Username: "bob", PasswordHash: "hash2", Role: "supervisor"},
	})

	p, ok := store.byUsernameLookup("alice")
	require.True(t, ok)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, "operator", p.Role)

	p, ok = store.byIDLookup("p2")
	require.True(t, ok)
	require.Equal(t, "bob", p.Username)

	_, ok = store.byUsernameLookup("missing")
	require.False(t, ok)
}
