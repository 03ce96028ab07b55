// Package reporting builds the staff dashboard from read-only SQL
// aggregates. It runs on database/sql with lib/pq so the heavy GROUP BY
// queries stay off the pgx pool that serves the hot intake path.
package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StatusCounts is the per-status breakdown for one day.
type StatusCounts struct {
	Waiting    int `json:"waiting"`
	Called     int `json:"called"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
}

// TypeCount is the intake-path breakdown.
type TypeCount struct {
	QueueType string `json:"queue_type"`
	Count     int    `json:"count"`
}

// DoctorLoad summarizes one doctor's day.
type DoctorLoad struct {
	DoctorID  string `json:"doctor_id"`
	Name      string `json:"name"`
	Assigned  int    `json:"assigned"`
	Completed int    `json:"completed"`
	OnDuty    bool   `json:"on_duty"`
}

// Dashboard is the staff overview for one day.
type Dashboard struct {
	QueueDate          string       `json:"queue_date"`
	TotalEntries       int          `json:"total_entries"`
	Statuses           StatusCounts `json:"statuses"`
	ByType             []TypeCount  `json:"by_type"`
	AvgWaitMinutes     float64      `json:"avg_wait_minutes"`
	AvgConsultMinutes  float64      `json:"avg_consult_minutes"`
	Doctors            []DoctorLoad `json:"doctors"`
	OpenConsultations  int          `json:"open_consultations"`
	BookedAppointments int          `json:"booked_appointments_today"`
}

// Reporter runs the dashboard queries.
type Reporter struct {
	db *sql.DB
}

// NewReporter creates a reporter.
func NewReporter(db *sql.DB) *Reporter {
	if db == nil {
		panic("reporting: db handle required")
	}
	return &Reporter{db: db}
}

// BuildDashboard assembles the overview for the given day.
func (r *Reporter) BuildDashboard(ctx context.Context, day time.Time) (*Dashboard, error) {
	d := &Dashboard{QueueDate: day.Format("2006-01-02")}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'WAITING'),
		       COUNT(*) FILTER (WHERE status = 'CALLED'),
		       COUNT(*) FILTER (WHERE status = 'IN_PROGRESS'),
		       COUNT(*) FILTER (WHERE status = 'COMPLETED'),
		       COUNT(*) FILTER (WHERE status = 'CANCELLED'),
		       COALESCE(AVG(EXTRACT(EPOCH FROM (called_at - checked_in_at)) / 60)
		           FILTER (WHERE called_at IS NOT NULL), 0),
		       COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - called_at)) / 60)
		           FILTER (WHERE completed_at IS NOT NULL), 0)
		FROM queue_entries
		WHERE queue_date = $1`, day).Scan(
		&d.TotalEntries,
		&d.Statuses.Waiting, &d.Statuses.Called, &d.Statuses.InProgress,
		&d.Statuses.Completed, &d.Statuses.Cancelled,
		&d.AvgWaitMinutes, &d.AvgConsultMinutes,
	)
	if err != nil {
		return nil, fmt.Errorf("reporting: day totals: %w", err)
	}

	byType, err := r.queueTypeBreakdown(ctx, day)
	if err != nil {
		return nil, err
	}
	d.ByType = byType

	doctors, err := r.doctorLoads(ctx, day)
	if err != nil {
		return nil, err
	}
	d.Doctors = doctors

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM consultations WHERE status = 'OPEN'`).Scan(&d.OpenConsultations)
	if err != nil {
		return nil, fmt.Errorf("reporting: open consultations: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE status = 'BOOKED' AND scheduled_for::date = $1`, day).Scan(&d.BookedAppointments)
	if err != nil {
		return nil, fmt.Errorf("reporting: booked appointments: %w", err)
	}

	return d, nil
}

func (r *Reporter) queueTypeBreakdown(ctx context.Context, day time.Time) ([]TypeCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT queue_type, COUNT(*)
		FROM queue_entries
		WHERE queue_date = $1
		GROUP BY queue_type
		ORDER BY COUNT(*) DESC`, day)
	if err != nil {
		return nil, fmt.Errorf("reporting: type breakdown: %w", err)
	}
	defer rows.Close()

	out := []TypeCount{}
	for rows.Next() {
		var tc TypeCount
		if err := rows.Scan(&tc.QueueType, &tc.Count); err != nil {
			return nil, fmt.Errorf("reporting: scan type: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (r *Reporter) doctorLoads(ctx context.Context, day time.Time) ([]DoctorLoad, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.full_name, d.is_on_duty,
		       COUNT(q.id) FILTER (WHERE q.id IS NOT NULL),
		       COUNT(q.id) FILTER (WHERE q.status = 'COMPLETED')
		FROM doctors d
		LEFT JOIN queue_entries q ON q.doctor_id = d.id AND q.queue_date = $1
		GROUP BY d.id, d.full_name, d.is_on_duty
		ORDER BY d.full_name`, day)
	if err != nil {
		return nil, fmt.Errorf("reporting: doctor loads: %w", err)
	}
	defer rows.Close()

	out := []DoctorLoad{}
	for rows.Next() {
		var dl DoctorLoad
		if err := rows.Scan(&dl.DoctorID, &dl.Name, &dl.OnDuty, &dl.Assigned, &dl.Completed); err != nil {
			return nil, fmt.Errorf("reporting: scan doctor: %w", err)
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}
