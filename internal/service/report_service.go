package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/jobpay/internal/config"
	"github.com/nurpe/jobpay/internal/model"
)

type ReportStore interface {
	TotalsByProfession(ctx context.Context, from, to time.Time) ([]model.ProfessionTotal, error)
	TotalsByClient(ctx context.Context, from, to time.Time, limit int) ([]model.ClientTotal, error)
}

type ExcelGenerator interface {
	Generate(report model.EarningsReport) ([]byte, error)
}

type ReportService struct {
	repo         ReportStore
	excel        ExcelGenerator
	adminIDs     []uuid.UUID
	defaultLimit int
	now          func() time.Time
}

type ReportInput struct {
	Window    model.ReportWindow
	Limit     *int
	Principal model.Principal
}

type GenerateReportResult struct {
	FileName string
	Content  []byte
}

func NewReportService(repo ReportStore, excel ExcelGenerator, cfg *config.Config) *ReportService {
	return &ReportService{
		repo:         repo,
		excel:        excel,
		adminIDs:     cfg.Reports.AdminProfileIDs,
		defaultLimit: cfg.Reports.DefaultClientLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// BestProfession ranks contractor professions by the amount paid for their
// jobs inside the window.
func (s *ReportService) BestProfession(ctx context.Context, input ReportInput) ([]model.ProfessionTotal, error) {
	if err := s.authorize(input); err != nil {
		return nil, err
	}

	rows, err := s.repo.TotalsByProfession(ctx, input.Window.Start, input.Window.End)
	if err != nil {
		return nil, classify(err)
	}
	if rows == nil {
		rows = []model.ProfessionTotal{}
	}
	return rows, nil
}

// BestClients ranks clients by the amount they paid inside the window.
func (s *ReportService) BestClients(ctx context.Context, input ReportInput) ([]model.ClientTotal, error) {
	if err := s.authorize(input); err != nil {
		return nil, err
	}

	limit := s.defaultLimit
	if input.Limit != nil {
		limit = *input.Limit
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	if limit == 0 {
		return []model.ClientTotal{}, nil
	}

	rows, err := s.repo.TotalsByClient(ctx, input.Window.Start, input.Window.End, limit)
	if err != nil {
		return nil, classify(err)
	}
	if rows == nil {
		rows = []model.ClientTotal{}
	}
	return rows, nil
}

// Export renders one of the rankings as a spreadsheet.
func (s *ReportService) Export(ctx context.Context, mode model.ReportMode, input ReportInput) (*GenerateReportResult, error) {
	report := model.EarningsReport{
		Mode:        mode,
		Window:      input.Window,
		GeneratedAt: s.now(),
	}

	switch mode {
	case model.ReportModeProfession:
		rows, err := s.BestProfession(ctx, input)
		if err != nil {
			return nil, err
		}
		report.Professions = rows
	case model.ReportModeClients:
		rows, err := s.BestClients(ctx, input)
		if err != nil {
			return nil, err
		}
		report.Clients = rows
	default:
		return nil, fmt.Errorf("%w: invalid report mode", ErrInvalidInput)
	}

	content, err := s.excel.Generate(report)
	if err != nil {
		return nil, err
	}
	return &GenerateReportResult{
		FileName: buildFileName(report),
		Content:  content,
	}, nil
}

func (s *ReportService) authorize(input ReportInput) error {
	if !AuthorizeAdmin(input.Principal.Profile, s.adminIDs) {
		return ErrPermissionDenied
	}
	if input.Window.Start.IsZero() || input.Window.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidInput)
	}
	if input.Window.Start.After(input.Window.End) {
		return fmt.Errorf("%w: start must be before or equal to end", ErrInvalidInput)
	}
	return nil
}

func buildFileName(report model.EarningsReport) string {
	mode := strings.ToLower(string(report.Mode))
	period := fmt.Sprintf("%s-%s", report.Window.Start.Format("20060102"), report.Window.End.Format("20060102"))
	return fmt.Sprintf("earnings-%s-%s.xlsx", mode, period)
}
