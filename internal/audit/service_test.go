package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Record(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	actor := uuid.New()
	contractor := uuid.New()

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("role.updated", &actor, &contractor, "role", "r-1", []byte(`{"name":"x"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	r := NewRecorder(mock)
	err = r.Record(context.Background(), Entry{
		Action:       "role.updated",
		ActorID:      actor,
		ContractorID: &contractor,
		SubjectType:  "role",
		SubjectID:    "r-1",
		Metadata:     map[string]any{"name": "x"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_RecordRequiresAction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	r := NewRecorder(mock)
	err = r.Record(context.Background(), Entry{SubjectType: "role"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	contractor := uuid.New()
	actor := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE contractor_id = $1 AND action = $2")).
		WithArgs(contractor, "member.removed").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(21))

	cols := []string{"audit_log_id", "action", "actor_id", "contractor_id", "subject_type", "subject_id", "metadata", "created_at"}
	mock.ExpectQuery("ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(contractor, "member.removed", 10, 20).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(uuid.New(), "member.removed", &actor, &contractor, "member", "u-1", []byte(`{}`), now))

	r := NewRecorder(mock)
	page, err := r.List(context.Background(), Query{
		ContractorID: &contractor,
		Action:       "member.removed",
		Page:         3,
		PageSize:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, page.Total)
	assert.Equal(t, 3, page.Page)
	assert.Equal(t, 10, page.PageSize)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "member.removed", page.Items[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryNormalize(t *testing.T) {
	q := Query{PageSize: 1000}
	q.normalize()
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, maxPageSize, q.PageSize)

	q = Query{}
	q.normalize()
	assert.Equal(t, defaultPageSize, q.PageSize)
}

func TestDiff(t *testing.T) {
	type role struct {
		Name        string `json:"name"`
		Position    int    `json:"position"`
		ManageRoles bool   `json:"manage_roles"`
	}

	d := Diff(role{Name: "member", Position: 5}, role{Name: "member", Position: 3, ManageRoles: true})
	assert.Len(t, d, 2)
	assert.Equal(t, Change{Before: float64(5), After: float64(3)}, d["position"])
	assert.Equal(t, Change{Before: false, After: true}, d["manage_roles"])

	d = Diff(nil, role{Name: "new"})
	assert.Equal(t, Change{After: "new"}, d["name"])

	assert.Empty(t, Diff(role{Name: "a"}, role{Name: "a"}))
}
