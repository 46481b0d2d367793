package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var incidentRowColumns = []string{
	"id", "care_home_id", "worker_id", "worker_name", "reported_by", "incident_date", "incident_time",
	"location", "incident_type", "severity", "status", "description",
	"evidence", "immediate_action", "follow_up_action", "witness_ids", "witness_names",
	"closed_at", "created_at", "updated_at",
}

func TestIncidentRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIncidentRepository(db)
	homeID, workerID, witnessID, incidentID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	req := models.ReportIncidentRequest{
		WorkerID:        workerID,
		Date:            "2024-03-20",
		Time:            "09:30",
		Location:        "Ward B",
		Type:            "negligence",
		Severity:        "serious",
		Description:     "Medication round skipped",
		ImmediateAction: "Removed from medication duties",
		WitnessIDs:      []uuid.UUID{witnessID},
	}

	mock.ExpectQuery(`INSERT INTO incidents .+ \$12::uuid\[\]\)\s+RETURNING id`).
		WithArgs(homeID, workerID, "Oakview House", "2024-03-20", "09:30", "Ward B", "negligence", "serious",
			"Medication round skipped", "", "Removed from medication duties", pq.StringArray{witnessID.String()}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(incidentID.String()))

	id, err := repo.Create(context.Background(), homeID, "Oakview House", req)
	require.NoError(t, err)
	assert.Equal(t, incidentID, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIncidentRepository(db)
	id, witnessID := uuid.New(), uuid.New()
	now := time.Now()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(`FROM incidents i\s+JOIN care_workers w ON w.id = i.worker_id WHERE i.id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(incidentRowColumns).AddRow(
				id.String(), uuid.NewString(), uuid.NewString(), "Jane Doe", "Oakview House", "2024-03-20", "09:30",
				"Ward B", "negligence", "serious", "reported", "Medication round skipped",
				"", "", "", "{"+witnessID.String()+"}", "{\"Sam Okafor\"}",
				nil, now, now,
			))

		incident, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, incident)
		assert.Equal(t, models.IncidentStatusReported, incident.Status)
		assert.Equal(t, pq.StringArray{witnessID.String()}, incident.WitnessIDs)
		assert.Equal(t, pq.StringArray{"Sam Okafor"}, incident.WitnessNames)
		assert.False(t, incident.ClosedAt.Valid)
	})

	t.Run("Missing", func(t *testing.T) {
		mock.ExpectQuery(`FROM incidents i`).WillReturnRows(sqlmock.NewRows(incidentRowColumns))

		incident, err := repo.GetByID(context.Background(), uuid.New())
		assert.NoError(t, err)
		assert.Nil(t, incident)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepository_ListByCareHome(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIncidentRepository(db)
	homeID := uuid.New()

	mock.ExpectQuery(`WHERE i.care_home_id = \$1\s+AND \(\$2 = '' OR i.location ILIKE .+ORDER BY i.incident_date DESC`).
		WithArgs(homeID, "ward").
		WillReturnRows(sqlmock.NewRows(incidentRowColumns))

	incidents, err := repo.ListByCareHome(context.Background(), homeID, "ward")
	require.NoError(t, err)
	assert.NotNil(t, incidents)
	assert.Empty(t, incidents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepository_Close(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIncidentRepository(db)
	id, homeID := uuid.New(), uuid.New()

	t.Run("Reported Incident", func(t *testing.T) {
		mock.ExpectExec(`UPDATE incidents\s+SET status = \$3.+closed_at = NOW\(\).+status = 'reported'`).
			WithArgs(id, homeID, "resolved", "Retrained").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.Close(context.Background(), id, homeID, models.IncidentStatusResolved, "Retrained")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Already Closed", func(t *testing.T) {
		mock.ExpectExec(`UPDATE incidents`).
			WithArgs(id, homeID, "dismissed", "").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.Close(context.Background(), id, homeID, models.IncidentStatusDismissed, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Database Error", func(t *testing.T) {
		mock.ExpectExec(`UPDATE incidents`).WillReturnError(fmt.Errorf("database error"))

		_, err := repo.Close(context.Background(), id, homeID, models.IncidentStatusResolved, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to close incident")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncidentRepository_CountWorkers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIncidentRepository(db)
	a, b := uuid.New(), uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM care_workers WHERE id = ANY\(\$1::uuid\[\]\)`).
		WithArgs(pq.StringArray{a.String(), b.String()}).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	count, err := repo.CountWorkers(context.Background(), []uuid.UUID{a, b})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
