package fsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
)

type state string

const (
	draft     state = "DRAFT"
	pending   state = "PENDING"
	done      state = "DONE"
	cancelled state = "CANCELLED"
)

var table = New("widget",
	Edge[state]{Event: "submit", From: []state{draft}, To: []state{pending}},
	Edge[state]{Event: "finish", From: []state{pending}, To: []state{pending, done}},
	Edge[state]{Event: "cancel", From: []state{draft, pending}, To: []state{cancelled}},
)

func TestTable_Check(t *testing.T) {
	assert.NoError(t, table.Check("submit", draft))

	err := table.Check("submit", done)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidStateTransition, appErr.Code)
	assert.Equal(t, []string{"DRAFT"}, appErr.Details["allowed"])

	assert.True(t, apperror.Is(table.Check("explode", draft), apperror.CodeInvalidStateTransition))
}

func TestTable_Resolve(t *testing.T) {
	got, err := table.Resolve("finish", "")
	require.NoError(t, err)
	assert.Equal(t, pending, got)

	got, err = table.Resolve("finish", done)
	require.NoError(t, err)
	assert.Equal(t, done, got)

	_, err = table.Resolve("finish", cancelled)
	assert.True(t, apperror.Is(err, apperror.CodeInvariantViolation))
}

func TestTable_Events(t *testing.T) {
	assert.Equal(t, []string{"finish", "cancel"}, table.Events(pending))
	assert.Empty(t, table.Events(done))
}

func TestNew_PanicsOnDuplicate(t *testing.T) {
	assert.Panics(t, func() {
		New("dup",
			Edge[state]{Event: "a", From: []state{draft}, To: []state{done}},
			Edge[state]{Event: "a", From: []state{pending}, To: []state{done}},
		)
	})
}
