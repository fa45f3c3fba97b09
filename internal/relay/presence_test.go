package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drone_chat/internal/domain"
	"drone_chat/internal/protocol"
	"drone_chat/pkg/logger"
)

func adminSignals(c *fakeConn) []string {
	var out []string
	for _, name := range c.names() {
		if name == protocol.EventAdminOnline || name == protocol.EventAdminOffline {
			out = append(out, name)
		}
	}
	return out
}

func presenceJoin(t *testing.T, reg *Registry, pres *Presence, conn Conn, role domain.Role, conversationID string) {
	t.Helper()
	change, err := reg.Join(conn, domain.Participant{Role: role, Name: conn.ID()}, conversationID)
	require.NoError(t, err)
	pres.Joined(conn, change)
}

func TestPresence_LateLeaveDoesNotOverrideNewAdmin(t *testing.T) {
	reg := NewRegistry()
	pres := NewPresence(reg, logger.NewNop())

	visitor := newFakeConn("visitor")
	presenceJoin(t, reg, pres, visitor, domain.RoleVisitor, "v1")
	first := newFakeConn("admin-a")
	presenceJoin(t, reg, pres, first, domain.RoleAdmin, "")

	// admin-a's leave is announced only after admin-b's join
	leaveA, ok := reg.Leave(first.ID())
	require.True(t, ok)
	presenceJoin(t, reg, pres, newFakeConn("admin-b"), domain.RoleAdmin, "")
	pres.Left(leaveA)

	assert.Equal(t, 1, reg.AdminCount())
	assert.Equal(t, []string{protocol.EventAdminOnline}, adminSignals(visitor))
}

func TestPresence_ConcurrentAdminChurnEndsConsistent(t *testing.T) {
	reg := NewRegistry()
	pres := NewPresence(reg, logger.NewNop())
	visitor := newFakeConn("visitor")
	presenceJoin(t, reg, pres, visitor, domain.RoleVisitor, "v1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			admin := newFakeConn(fmt.Sprintf("admin-%d", i))
			change, err := reg.Join(admin, domain.Participant{Role: domain.RoleAdmin}, "")
			if err != nil {
				return
			}
			pres.Joined(admin, change)
			if i%2 == 0 {
				if left, ok := reg.Leave(admin.ID()); ok {
					pres.Left(left)
				}
			}
		}(i)
	}
	wg.Wait()

	signals := adminSignals(visitor)
	require.NotEmpty(t, signals)
	assert.Equal(t, protocol.EventAdminOnline, signals[len(signals)-1])
	for i := 1; i < len(signals); i++ {
		assert.NotEqual(t, signals[i-1], signals[i], "repeated %s", signals[i])
	}
	assert.Equal(t, 25, reg.AdminCount())
}
