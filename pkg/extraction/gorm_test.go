package extraction

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/warehouse-etl/pkg/common/database/dbtest"
)

func TestGormSourceFetchTable(t *testing.T) {
	db, mock := dbtest.NewPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "speciality"`)).
		WillReturnRows(sqlmock.NewRows([]string{"speciality_id", "name"}).
			AddRow(int64(7), "Cardiology").
			AddRow(int64(8), "Neurology"))

	rows, err := NewGormSource(db).FetchTable(context.Background(), "speciality")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(7), rows[0]["speciality_id"])
	assert.Equal(t, "Neurology", rows[1]["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormSourceWrapsQueryErrors(t *testing.T) {
	db, mock := dbtest.NewPostgres(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "doctor"`)).
		WillReturnError(errors.New("relation does not exist"))

	_, err := NewGormSource(db).FetchTable(context.Background(), "doctor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select doctor")
}
