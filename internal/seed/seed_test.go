package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"makequeue-backend/internal/admin"
	"makequeue-backend/internal/apperr"
	"makequeue-backend/internal/clock"
	"makequeue-backend/internal/course"
	"makequeue-backend/internal/machine"
	"makequeue-backend/internal/model"
	"makequeue-backend/internal/permission"
	"makequeue-backend/internal/store"
	"makequeue-backend/internal/testutil"
)

const fixture = `
course_permissions:
  - short_name: AUTH
    name: Authenticated
  - short_name: 3DPR
    name: 3D printer course
machine_types:
  - name: 3D printer
    usage_requirement: 3DPR
    has_stream: true
    priority: 1
    rules:
      - start_time: "00:00"
        end_time: "00:00"
        days_changed: 7
        start_days: [1]
        max_hours: 24
        max_inside_border_crossed: 24
    quotas:
      - number_of_reservations: 2
      - username: alice
        number_of_reservations: 1
        ignore_rules: true
    machines:
      - name: Prusa 1
        stream_name: prusa-1
      - name: Prusa 2
        stream_name: prusa-2
        internal: true
  - name: Sewing machine
    usage_requirement: AUTH
    machines:
      - name: Bernina
`

func newSeeder(t *testing.T) (*Seeder, store.Store) {
	t.Helper()
	db := testutil.NewDB(t)
	s := store.NewGormStore(db)
	perms, err := permission.NewMemoryEnforcer()
	require.NoError(t, err)
	machines := machine.NewService(s, course.NewGate(perms), perms, clock.NewFrozen(testutil.Now))
	return NewSeeder(s, admin.NewService(s), machines), s
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	seeder, s := newSeeder(t)
	require.NoError(t, s.SaveUser(ctx, &model.User{Username: "alice"}))

	f, err := Parse([]byte(fixture))
	require.NoError(t, err)
	require.NoError(t, seeder.Apply(ctx, f))

	types, err := s.ListMachineTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Sewing machine", types[0].Name, "ordered by priority")
	printer := types[1]
	assert.Equal(t, model.Permission3DPrinter, printer.UsageRequirement.ShortName)
	assert.True(t, printer.HasStream)

	rules, err := s.ListRules(ctx, printer.ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 7, rules[0].DaysChanged)

	quotas, err := s.ListQuotas(ctx, printer.ID)
	require.NoError(t, err)
	require.Len(t, quotas, 2)
	assert.True(t, quotas[0].All)
	require.NotNil(t, quotas[1].UserID)
	assert.True(t, quotas[1].IgnoreRules)

	machines, err := s.ListMachinesOfType(ctx, printer.ID)
	require.NoError(t, err)
	require.Len(t, machines, 2)
	assert.Equal(t, "prusa-1", machines[0].StreamName)
	assert.True(t, machines[1].Internal)
}

func TestApply_InvalidRule(t *testing.T) {
	seeder, _ := newSeeder(t)
	f, err := Parse([]byte(`
course_permissions:
  - short_name: AUTH
    name: Authenticated
machine_types:
  - name: Lathe
    usage_requirement: AUTH
    rules:
      - start_time: "18:00"
        end_time: "08:00"
        start_days: [1]
        max_hours: 4
`))
	require.NoError(t, err)
	err = seeder.Apply(context.Background(), f)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("machine_typez: []\n"))
	assert.Error(t, err)
}
