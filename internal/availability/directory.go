package availability

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// directoryDB is the subset of the pgx pool the directory needs.
type directoryDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGDirectory reads eligible doctors from the doctors table.
type PGDirectory struct {
	db directoryDB
}

// NewPGDirectory creates a directory over the given database.
func NewPGDirectory(db directoryDB) *PGDirectory {
	return &PGDirectory{db: db}
}

// EligibleDoctors returns the doctors offering the service at the clinic,
// ordered by ascending id so downstream selection is deterministic.
func (d *PGDirectory) EligibleDoctors(ctx context.Context, clinicID, serviceID string) ([]Doctor, error) {
	rows, err := d.db.Query(ctx,
		`SELECT id, name FROM doctors
		 WHERE clinic_id = $1 AND $2 = ANY(service_ids) AND active
		 ORDER BY id ASC`,
		clinicID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("availability: query doctors: %w", err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		var doc Doctor
		if err := rows.Scan(&doc.ID, &doc.Name); err != nil {
			return nil, fmt.Errorf("availability: scan doctor: %w", err)
		}
		doctors = append(doctors, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: read doctors: %w", err)
	}
	return doctors, nil
}

// StaticDirectory serves a fixed roster, useful for tests and single-clinic
// deployments without a doctors table.
type StaticDirectory struct {
	Doctors []Doctor
}

// EligibleDoctors returns the fixed roster.
func (s StaticDirectory) EligibleDoctors(_ context.Context, _, _ string) ([]Doctor, error) {
	return s.Doctors, nil
}
