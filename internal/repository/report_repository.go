package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/jobpay/internal/model"
)

type ReportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// TotalsByProfession sums paid job prices per contractor profession over
// payment dates in [from, to]. Equal totals are ordered by profession.
func (r *ReportRepository) TotalsByProfession(ctx context.Context, from, to time.Time) ([]model.ProfessionTotal, error) {
	rows := []model.ProfessionTotal{}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.profession,
			SUM(j.price) AS total_paid
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		JOIN profiles p ON p.id = c.contractor_id
		WHERE j.paid
			AND j.payment_date >= ?
			AND j.payment_date <= ?
		GROUP BY p.profession
		ORDER BY total_paid DESC, p.profession ASC
	`, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// TotalsByClient sums paid job prices per client over payment dates in
// [from, to], highest first, ties by client id, at most limit rows.
func (r *ReportRepository) TotalsByClient(ctx context.Context, from, to time.Time, limit int) ([]model.ClientTotal, error) {
	if limit <= 0 {
		return []model.ClientTotal{}, nil
	}

	var rows []struct {
		ID        uuid.UUID
		FirstName string
		LastName  string
		TotalPaid decimal.Decimal
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			p.id,
			p.first_name,
			p.last_name,
			SUM(j.price) AS total_paid
		FROM jobs j
		JOIN contracts c ON c.id = j.contract_id
		JOIN profiles p ON p.id = c.client_id
		WHERE j.paid
			AND j.payment_date >= ?
			AND j.payment_date <= ?
		GROUP BY p.id, p.first_name, p.last_name
		ORDER BY total_paid DESC, p.id ASC
		LIMIT ?
	`, from, to, limit).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]model.ClientTotal, 0, len(rows))
	for _, row := range rows {
		result = append(result, model.ClientTotal{
			ID:        row.ID,
			FullName:  model.FullName(row.FirstName, row.LastName),
			TotalPaid: row.TotalPaid,
		})
	}
	return result, nil
}
