package availability

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
)

func TestEligibleDoctors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), "Dr. Amara").
		AddRow(int64(4), "Dr. Okafor")
	mock.ExpectQuery("SELECT id, name FROM doctors").
		WithArgs("main", "checkup").
		WillReturnRows(rows)

	dir := NewPGDirectory(mock)
	doctors, err := dir.EligibleDoctors(context.Background(), "main", "checkup")
	if err != nil {
		t.Fatalf("eligible doctors: %v", err)
	}
	assert.Equal(t, []Doctor{{ID: 1, Name: "Dr. Amara"}, {ID: 4, Name: "Dr. Okafor"}}, doctors)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEligibleDoctorsQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT id, name FROM doctors").
		WithArgs("main", "checkup").
		WillReturnError(assert.AnError)

	dir := NewPGDirectory(mock)
	_, err = dir.EligibleDoctors(context.Background(), "main", "checkup")
	if err == nil {
		t.Fatal("expected error")
	}
	assert.Contains(t, err.Error(), "query doctors")
}
