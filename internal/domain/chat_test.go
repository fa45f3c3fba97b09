package domain

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusNeverMovesBackwards(t *testing.T) {
	assert.True(t, StatusSending.CanAdvanceTo(StatusSent))
	assert.True(t, StatusSent.CanAdvanceTo(StatusRead))
	assert.True(t, StatusDelivered.CanAdvanceTo(StatusRead))

	assert.False(t, StatusRead.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusRead.CanAdvanceTo(StatusRead))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusSent))
}

func TestFailedIsTerminal(t *testing.T) {
	assert.True(t, StatusSending.CanAdvanceTo(StatusFailed))
	assert.True(t, StatusSent.CanAdvanceTo(StatusFailed))
	assert.False(t, StatusDelivered.CanAdvanceTo(StatusFailed))
	assert.False(t, StatusFailed.CanAdvanceTo(StatusSent))
	assert.False(t, StatusFailed.CanAdvanceTo(StatusRead))
}

func TestPredecessors(t *testing.T) {
	assert.Equal(t, []MessageStatus{StatusSending, StatusSent, StatusDelivered}, StatusRead.Predecessors())
	assert.Equal(t, []MessageStatus{StatusSending, StatusSent}, StatusDelivered.Predecessors())
	assert.Empty(t, StatusSending.Predecessors())
}

func TestNewVisitorConversationID(t *testing.T) {
	now := time.UnixMilli(1718000000123)
	id := NewVisitorConversationID(now)
	assert.Regexp(t, regexp.MustCompile(`^visitor-1718000000123-[0-9a-z]{9}$`), id)
	assert.NotEqual(t, id, NewVisitorConversationID(now))
}

func TestRoleOpposite(t *testing.T) {
	assert.Equal(t, RoleAdmin, RoleVisitor.Opposite())
	assert.Equal(t, RoleVisitor, RoleAdmin.Opposite())
	assert.False(t, Role("operator").Valid())
}
