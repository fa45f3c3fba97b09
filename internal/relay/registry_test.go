package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone_chat/internal/domain"
	apperrors "drone_chat/pkg/errors"
)

func TestRegistry_JoinRules(t *testing.T) {
	tests := []struct {
		name           string
		identity       domain.Participant
		conversationID string
		wantErr        error
	}{
		{"visitor", domain.Participant{Role: domain.RoleVisitor, Name: "Alice"}, "v1", nil},
		{"visitor without name", domain.Participant{Role: domain.RoleVisitor}, "v1", apperrors.ErrValidation},
		{"visitor without conversation", domain.Participant{Role: domain.RoleVisitor, Name: "Alice"}, "", apperrors.ErrValidation},
		{"admin lobby", domain.Participant{Role: domain.RoleAdmin, Name: "Op"}, "", nil},
		{"unknown role", domain.Participant{Role: "pilot", Name: "Bob"}, "v1", apperrors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			_, err := r.Join(newFakeConn("c1"), tt.identity, tt.conversationID)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				admins, visitors := r.Counts()
				assert.Zero(t, admins+visitors)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRegistry_VisitorStaysInOneConversation(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("c1")
	visitor := domain.Participant{Role: domain.RoleVisitor, Name: "Alice"}

	_, err := r.Join(conn, visitor, "v1")
	require.NoError(t, err)

	change, err := r.Join(conn, visitor, "v1")
	require.NoError(t, err)
	assert.False(t, change.NewConnection)

	_, err = r.Join(conn, visitor, "v2")
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = r.Join(conn, domain.Participant{Role: domain.RoleAdmin, Name: "Op"}, "v1")
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRegistry_AdminObservesManyConversations(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("admin")
	admin := domain.Participant{Role: domain.RoleAdmin, Name: "Op"}

	first, err := r.Join(conn, admin, "v1")
	require.NoError(t, err)
	assert.True(t, first.NewConnection)
	assert.Equal(t, 0, first.AdminsBefore)
	assert.Equal(t, 1, first.AdminsAfter)

	second, err := r.Join(conn, admin, "v2")
	require.NoError(t, err)
	assert.False(t, second.NewConnection)
	assert.Equal(t, 1, r.AdminCount())

	change, ok := r.Leave("admin")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"v1", "v2"}, change.Conversations)
	assert.Equal(t, 0, change.AdminsAfter)

	_, ok = r.Leave("admin")
	assert.False(t, ok)
	assert.Empty(t, r.Peers("v1", ""))
}

func TestRegistry_OppositeSide(t *testing.T) {
	r := NewRegistry()
	visitor := newFakeConn("visitor")
	first := newFakeConn("admin-1")
	second := newFakeConn("admin-2")
	_, err := r.Join(visitor, domain.Participant{Role: domain.RoleVisitor, Name: "Alice"}, "v1")
	require.NoError(t, err)
	for _, admin := range []*fakeConn{first, second} {
		_, err := r.Join(admin, domain.Participant{Role: domain.RoleAdmin}, "v1")
		require.NoError(t, err)
	}
	_, err = r.Join(newFakeConn("elsewhere"), domain.Participant{Role: domain.RoleAdmin}, "v2")
	require.NoError(t, err)

	assert.ElementsMatch(t, []Conn{first, second}, r.OppositeSide("v1", domain.RoleVisitor))
	assert.Equal(t, []Conn{visitor}, r.OppositeSide("v1", domain.RoleAdmin))
	assert.Empty(t, r.OppositeSide("v2", domain.RoleAdmin))
}
