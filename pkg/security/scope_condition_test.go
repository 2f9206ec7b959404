package security

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func resourceResolver(property string) (string, bool) {
	switch property {
	case PropertyOwnerTenantID:
		return "owner_tenant_id", true
	case PropertyResourceID:
		return "id", true
	default:
		return "", false
	}
}

func TestBuildScopeConditionUnconstrained(t *testing.T) {
	cond := BuildScopeCondition(AllowAll(), resourceResolver)
	assert.True(t, cond.IsAlwaysTrue())
	assert.Equal(t, "1=1", cond.SQL(PlaceholderQuestion))
	assert.Empty(t, cond.Args())
}

func TestBuildScopeConditionDenyAll(t *testing.T) {
	cond := BuildScopeCondition(DenyAll(), resourceResolver)
	assert.True(t, cond.IsAlwaysFalse())
	assert.Equal(t, "1=0", cond.SQL(PlaceholderDollar))
}

func TestBuildScopeConditionSingleConstraintDollarStyle(t *testing.T) {
	tid := uuid.New()
	cond := BuildScopeCondition(ForTenant(tid), resourceResolver)
	assert.False(t, cond.IsAlwaysTrue())
	assert.False(t, cond.IsAlwaysFalse())
	assert.Equal(t, `"owner_tenant_id" IN ($1)`, cond.SQL(PlaceholderDollar))
	assert.Equal(t, []any{tid.String()}, cond.Args())
}

func TestBuildScopeConditionSingleConstraintQuestionStyle(t *testing.T) {
	tid := uuid.New()
	cond := BuildScopeCondition(ForTenant(tid), resourceResolver)
	assert.Equal(t, "owner_tenant_id IN (?)", cond.SQL(PlaceholderQuestion))
}

func TestBuildScopeConditionDiscardsUnknownProperty(t *testing.T) {
	scope := ForTenants([]uuid.UUID{uuid.New()})
	resolveNothing := func(string) (string, bool) { return "", false }
	cond := BuildScopeCondition(scope, resolveNothing)
	assert.True(t, cond.IsAlwaysFalse())
}

func TestBuildScopeConditionDiscardsEmptyValues(t *testing.T) {
	scope := Single(NewScopeConstraint([]ScopeFilter{
		NewScopeFilter(PropertyOwnerTenantID, FilterOpIn, nil),
	}))
	cond := BuildScopeCondition(scope, resourceResolver)
	assert.True(t, cond.IsAlwaysFalse())
}

func TestBuildScopeConditionOrsSurvivingConstraints(t *testing.T) {
	t1, t2 := uuid.New(), uuid.New()
	scope := FromConstraints([]ScopeConstraint{
		NewScopeConstraint([]ScopeFilter{NewScopeFilter(PropertyOwnerTenantID, FilterOpIn, []uuid.UUID{t1})}),
		NewScopeConstraint([]ScopeFilter{NewScopeFilter(PropertyOwnerTenantID, FilterOpIn, []uuid.UUID{t2})}),
	})
	cond := BuildScopeCondition(scope, resourceResolver)
	assert.Equal(t, `("owner_tenant_id" IN ($1)) OR ("owner_tenant_id" IN ($2))`, cond.SQL(PlaceholderDollar))
	assert.Equal(t, []any{t1.String(), t2.String()}, cond.Args())
}

func TestBuildScopeConditionDropsOneBadConstraintKeepsOthers(t *testing.T) {
	good := uuid.New()
	scope := FromConstraints([]ScopeConstraint{
		NewScopeConstraint([]ScopeFilter{NewScopeFilter("unknown_property", FilterOpIn, []uuid.UUID{uuid.New()})}),
		NewScopeConstraint([]ScopeFilter{NewScopeFilter(PropertyOwnerTenantID, FilterOpIn, []uuid.UUID{good})}),
	})
	cond := BuildScopeCondition(scope, resourceResolver)
	assert.Equal(t, `"owner_tenant_id" IN ($1)`, cond.SQL(PlaceholderDollar))
	assert.Equal(t, []any{good.String()}, cond.Args())
}

func TestBuildScopeConditionAndsMultipleFiltersInOneConstraint(t *testing.T) {
	tid, rid := uuid.New(), uuid.New()
	scope := ForTenantsAndResources([]uuid.UUID{tid}, []uuid.UUID{rid})
	cond := BuildScopeCondition(scope, resourceResolver)
	assert.Equal(t, `"owner_tenant_id" IN ($1) AND "id" IN ($2)`, cond.SQL(PlaceholderDollar))
}

// TestBuildScopeConditionAgainstSQLMock exercises the rendered condition
// against a mocked Postgres-dialect driver, matching how a storage layer
// actually splices the fragment into a query.
func TestBuildScopeConditionAgainstSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tid := uuid.New()
	cond := BuildScopeCondition(ForTenant(tid), resourceResolver)
	query := "SELECT id FROM widgets WHERE " + cond.SQL(PlaceholderDollar)

	mock.ExpectQuery(`SELECT id FROM widgets WHERE "owner_tenant_id" IN`).
		WithArgs(cond.Args()...).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New().String()))

	rows, err := db.Query(query, cond.Args()...)
	require.NoError(t, err)
	defer rows.Close()

	var got string
	require.True(t, rows.Next())
	require.NoError(t, rows.Scan(&got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildScopeConditionAlwaysFalseAgainstSQLMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cond := BuildScopeCondition(DenyAll(), resourceResolver)
	query := "SELECT id FROM widgets WHERE " + cond.SQL(PlaceholderQuestion)

	mock.ExpectQuery("SELECT id FROM widgets WHERE 1=0").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, err := db.Query(query)
	require.NoError(t, err)
	defer rows.Close()
	assert.False(t, rows.Next())
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestBuildScopeConditionAgainstSQLite exercises the translator's question-mark
// dialect against a real modernc.org/sqlite in-memory database, the same
// driver this tree's sqlite-backed stores register.
func TestBuildScopeConditionAgainstSQLite(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE widgets (id TEXT, owner_tenant_id TEXT)`)
	require.NoError(t, err)

	owned, other := uuid.New(), uuid.New()
	_, err = db.Exec(`INSERT INTO widgets (id, owner_tenant_id) VALUES (?, ?), (?, ?)`,
		uuid.New().String(), owned.String(), uuid.New().String(), other.String())
	require.NoError(t, err)

	cond := BuildScopeCondition(ForTenant(owned), resourceResolver)
	query := "SELECT id FROM widgets WHERE " + cond.SQL(PlaceholderQuestion)
	assert.Equal(t, "owner_tenant_id IN (?)", cond.SQL(PlaceholderQuestion))

	rows, err := db.Query(query, cond.Args()...)
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		got = append(got, id)
	}
	require.NoError(t, rows.Err())
	assert.Len(t, got, 1)
}

// TestBuildScopeConditionAgainstSQLiteDenyAll confirms the always-false
// condition excludes every row against the real sqlite driver, not just the
// mocked Postgres dialect.
func TestBuildScopeConditionAgainstSQLiteDenyAll(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE widgets (id TEXT, owner_tenant_id TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO widgets (id, owner_tenant_id) VALUES (?, ?)`, uuid.New().String(), uuid.New().String())
	require.NoError(t, err)

	cond := BuildScopeCondition(DenyAll(), resourceResolver)
	query := "SELECT id FROM widgets WHERE " + cond.SQL(PlaceholderQuestion)

	rows, err := db.Query(query)
	require.NoError(t, err)
	defer rows.Close()
	assert.False(t, rows.Next())
}

// TestPostgresDriverRegisteredUnderPqName confirms importing lib/pq (for its
// QuoteIdentifier helper, in scope_condition.go) registers the "postgres"
// database/sql driver this translator's dollar dialect targets. It only opens
// a handle; BuildScopeCondition's identifier quoting and placeholder
// numbering are checked through sqlmock's own driver above, not this one.
func TestPostgresDriverRegisteredUnderPqName(t *testing.T) {
	assert.Contains(t, sql.Drivers(), "postgres")

	db, err := sql.Open("postgres", "postgres://scope-condition-test/placeholder?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()
}
