package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/evaldesk/appraisal-api/internal/models"
	"github.com/evaldesk/appraisal-api/pkg/export"
	"github.com/evaldesk/appraisal-api/pkg/jobs"
	"github.com/evaldesk/appraisal-api/pkg/storage"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string, summary []export.SummaryLine) ([]byte, error)
}

// ExportService turns aggregate reports into downloadable files.
type ExportService struct {
	reports   *ReportService
	csv       csvRenderer
	pdf       pdfRenderer
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	apiPrefix string
	logger    *zap.Logger
}

// NewExportService constructs an export service. The report service is
// attached afterwards via SetReports to break the construction cycle.
func NewExportService(
	csv csvRenderer,
	pdf pdfRenderer,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	apiPrefix string,
	logger *zap.Logger,
) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		csv:       csv,
		pdf:       pdf,
		storage:   store,
		signer:    signer,
		apiPrefix: apiPrefix,
		logger:    logger,
	}
}

// SetReports wires the report service used to build datasets.
func (s *ExportService) SetReports(reports *ReportService) {
	s.reports = reports
}

// Export renders the report for the given job, stores the file, and
// returns the signed download URL.
func (s *ExportService) Export(ctx context.Context, job *models.ReportJob) (string, error) {
	dataset, title, summary, err := s.buildDataset(ctx, job)
	if err != nil {
		return "", err
	}

	format := job.Params.Format
	if format == "" {
		format = models.ReportFormatPDF
	}

	var payload []byte
	switch format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title, summary)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		return "", fmt.Errorf("render %s export: %w", format, err)
	}

	relPath := filepath.Join(string(job.Type), fmt.Sprintf("%s.%s", job.ID, format))
	if _, err := s.storage.Save(relPath, payload); err != nil {
		return "", err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", fmt.Errorf("sign download url: %w", err)
	}
	return fmt.Sprintf("%s/reports/download?token=%s", s.apiPrefix, token), nil
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, []export.SummaryLine, error) {
	switch job.Type {
	case models.ReportTypeOverview:
		report, err := s.reports.overviewReport(ctx)
		if err != nil {
			return export.Dataset{}, "", nil, err
		}
		return overviewDataset(report), "Organisation Overview", overviewSummary(report), nil
	case models.ReportTypeUsers:
		report, err := s.reports.usersReport(ctx)
		if err != nil {
			return export.Dataset{}, "", nil, err
		}
		return usersDataset(report), "Staff Directory", []export.SummaryLine{
			{Label: "Total users", Value: strconv.Itoa(report.TotalUsers)},
		}, nil
	case models.ReportTypeDepartments:
		report, err := s.reports.departmentsReport(ctx)
		if err != nil {
			return export.Dataset{}, "", nil, err
		}
		return departmentsDataset(report), "Departments", []export.SummaryLine{
			{Label: "Total departments", Value: strconv.Itoa(report.Total)},
		}, nil
	case models.ReportTypePerformance:
		report, err := s.reports.performanceReport(ctx, job.Params.StartDate, job.Params.EndDate)
		if err != nil {
			return export.Dataset{}, "", nil, err
		}
		return performanceDataset(report), "Performance Results", performanceSummary(report), nil
	default:
		return export.Dataset{}, "", nil, fmt.Errorf("unknown report type %q", job.Type)
	}
}

func overviewDataset(report *models.OverviewReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.RoleDistribution))
	for _, rc := range report.RoleDistribution {
		rows = append(rows, map[string]string{
			"Role":   string(rc.Role),
			"Users":  strconv.Itoa(rc.Count),
			"Active": strconv.Itoa(rc.ActiveCount),
		})
	}
	return export.Dataset{Headers: []string{"Role", "Users", "Active"}, Rows: rows}
}

func overviewSummary(report *models.OverviewReport) []export.SummaryLine {
	return []export.SummaryLine{
		{Label: "Total users", Value: strconv.Itoa(report.TotalUsers)},
		{Label: "Active users", Value: strconv.Itoa(report.ActiveUsers)},
		{Label: "Departments", Value: strconv.Itoa(report.TotalDepartments)},
		{Label: "Teams", Value: strconv.Itoa(report.TotalTeams)},
		{Label: "Activity rate", Value: fmt.Sprintf("%.1f%%", report.ActivityRate)},
	}
}

func usersDataset(report *models.UsersReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Users))
	for _, user := range report.Users {
		status := "inactive"
		if user.IsActive {
			status = "active"
		}
		position := ""
		if user.Position != nil {
			position = *user.Position
		}
		rows = append(rows, map[string]string{
			"Name":     user.FullName(),
			"Email":    user.Email,
			"Role":     string(user.Role),
			"Position": position,
			"Status":   status,
		})
	}
	return export.Dataset{Headers: []string{"Name", "Email", "Role", "Position", "Status"}, Rows: rows}
}

func departmentsDataset(report *models.DepartmentsReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Departments))
	for _, dept := range report.Departments {
		rows = append(rows, map[string]string{
			"Department": dept.Name,
			"Code":       dept.Code,
			"Employees":  strconv.Itoa(dept.EmployeeCount),
			"Active":     strconv.Itoa(dept.ActiveEmployees),
		})
	}
	return export.Dataset{Headers: []string{"Department", "Code", "Employees", "Active"}, Rows: rows}
}

func performanceDataset(report *models.PerformanceReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Subjects))
	for _, subject := range report.Subjects {
		rows = append(rows, map[string]string{
			"Name":        subject.EvaluateeName,
			"Position":    subject.Position,
			"Self":        fmt.Sprintf("%.1f", subject.SelfScore),
			"Peer":        fmt.Sprintf("%.1f", subject.PeerScore),
			"Supervisor":  fmt.Sprintf("%.1f", subject.SupervisorScore),
			"Composite":   strconv.Itoa(subject.CompositeScore),
			"Evaluations": strconv.Itoa(subject.EvaluationCount),
		})
	}
	return export.Dataset{
		Headers: []string{"Name", "Position", "Self", "Peer", "Supervisor", "Composite", "Evaluations"},
		Rows:    rows,
	}
}

func performanceSummary(report *models.PerformanceReport) []export.SummaryLine {
	lines := []export.SummaryLine{
		{Label: "Subjects", Value: strconv.Itoa(len(report.Subjects))},
	}
	if report.PeriodStart != nil {
		lines = append(lines, export.SummaryLine{Label: "From", Value: report.PeriodStart.Format("2006-01-02")})
	}
	if report.PeriodEnd != nil {
		lines = append(lines, export.SummaryLine{Label: "To", Value: report.PeriodEnd.Format("2006-01-02")})
	}
	return lines
}

// ReportWorker bridges queued jobs to the export pipeline.
type ReportWorker struct {
	repo     reportJobRepository
	exporter *ExportService
	logger   *zap.Logger
}

// NewReportWorker constructs the queue handler for report exports.
func NewReportWorker(repo reportJobRepository, exporter *ExportService, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportWorker{repo: repo, exporter: exporter, logger: logger}
}

// Handle processes one queued export job.
func (w *ReportWorker) Handle(ctx context.Context, queued jobs.Job) error {
	jobID, ok := queued.Payload.(string)
	if !ok || jobID == "" {
		jobID = queued.ID
	}

	job, err := w.repo.FindJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("queued report job no longer exists", zap.String("job_id", jobID))
			return nil
		}
		return err
	}
	if job.Status == models.ReportStatusFinished || job.Status == models.ReportStatusFailed {
		return nil
	}

	if err := w.repo.UpdateJobProgress(ctx, job.ID, models.ReportStatusProcessing, 10); err != nil {
		return err
	}

	start := time.Now()
	resultURL, err := w.exporter.Export(ctx, job)
	if err != nil {
		w.logger.Error("report export failed",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Int("attempt", queued.Attempt),
			zap.Error(err))
		return err
	}

	if err := w.repo.FinishJob(ctx, job.ID, resultURL); err != nil {
		return err
	}
	w.logger.Info("report export finished",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// OnExhausted marks a job failed after the queue has given up retrying.
func (w *ReportWorker) OnExhausted(ctx context.Context, queued jobs.Job, cause error) {
	jobID, ok := queued.Payload.(string)
	if !ok || jobID == "" {
		jobID = queued.ID
	}
	message := "report generation failed"
	if cause != nil {
		message = cause.Error()
	}
	if err := w.repo.FailJob(ctx, jobID, message); err != nil {
		w.logger.Error("failed to mark report job failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
