package schema

import (
	"bytes"
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForeignKeysAndMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM pg_constraint con")).
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "table_name", "src_columns", "referenced_table", "ref_columns", "definition"}).
			AddRow("fk_users_applications", "applications", "user_id", "users", "id",
				"FOREIGN KEY (user_id) REFERENCES users(id) ON UPDATE CASCADE ON DELETE RESTRICT"))

	fks, err := ForeignKeys(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, fks, 1)
	assert.Equal(t, "applications", fks[0].Table)
	assert.NoError(t, mock.ExpectationsWereMet())

	missing := Missing(fks, Expected)
	require.Len(t, missing, 1)
	assert.Equal(t, "transactions", missing[0].Table)

	var buf bytes.Buffer
	Print(&buf, fks)
	assert.Contains(t, buf.String(), "fk_users_applications: applications(user_id) -> users(id)")
}

func TestMissingNone(t *testing.T) {
	fks := []ForeignKey{
		{Table: "applications", Columns: "user_id", RefTable: "users"},
		{Table: "transactions", Columns: "application_id", RefTable: "applications"},
	}
	assert.Empty(t, Missing(fks, Expected))
}
