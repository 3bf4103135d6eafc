package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

const (
	sheetPlan        = "Plan"
	sheetDiagnostics = "Diagnostics"
	sheetSummary     = "Summary"
)

// Service produces report bytes for a run.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ExportXLSX returns an XLSX workbook (as bytes) with Plan, Diagnostics and Summary sheets.
func (s *Service) ExportXLSX(ctx context.Context, r Report) ([]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheetPlan); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetDiagnostics, sheetSummary} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	decisions := decisionViews(r.Plan)
	writeRow(f, sheetPlan, 1, "Position", "Decision", "Invoice #",
		"Existing Source", "Existing Pages", "Existing Score",
		"Candidate Source", "Candidate Pages", "Candidate Score", "Declined")
	for i, d := range decisions {
		row := []any{d.Position, d.Decision, d.Invoice, "", "", "", "", "", "", ""}
		if e := d.Existing; e != nil {
			row[3], row[4], row[5] = filepath.Base(e.Source), e.Pages, round(e.Score)
		}
		if c := d.Candidate; c != nil {
			row[6], row[7], row[8] = filepath.Base(c.Source), c.Pages, round(c.Score)
		}
		var declined []string
		for _, u := range d.Declined {
			declined = append(declined, fmt.Sprintf("%s[p%s]", filepath.Base(u.Source), u.Pages))
		}
		row[9] = truncate(strings.Join(declined, "; "), 200)
		writeRow(f, sheetPlan, i+2, row...)
	}
	_ = f.SetColWidth(sheetPlan, "A", "B", 10)
	_ = f.SetColWidth(sheetPlan, "C", "C", 18)
	_ = f.SetColWidth(sheetPlan, "D", "D", 32) // existing source
	_ = f.SetColWidth(sheetPlan, "G", "G", 32) // candidate source
	_ = f.SetColWidth(sheetPlan, "J", "J", 48)

	writeRow(f, sheetDiagnostics, 1, "Code", "Severity", "Source", "Invoice #", "Pages", "Message")
	for i, d := range r.Diagnostics {
		writeRow(f, sheetDiagnostics, i+2,
			string(d.Code), string(d.Severity), filepath.Base(d.Source), d.InvoiceNumber,
			joinPages(d.Pages), truncate(d.Message, 240))
	}
	_ = f.SetColWidth(sheetDiagnostics, "A", "A", 32)
	_ = f.SetColWidth(sheetDiagnostics, "C", "C", 32)
	_ = f.SetColWidth(sheetDiagnostics, "F", "F", 80)

	summary := [][2]any{
		{"Run ID", r.RunID.String()},
		{"Package", r.PackagePath},
		{"Candidates", r.CandidateDir},
		{"Output", r.OutputPath},
		{"Generated At", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Existing Units", r.Summary.ExistingUnits},
		{"Candidate Units", r.Summary.CandidateUnits},
		{"Pages Written", r.Summary.PagesWritten},
	}
	for _, k := range []constants.DecisionKind{constants.DecisionKeep, constants.DecisionReplace, constants.DecisionInsert, constants.DecisionDrop} {
		summary = append(summary, [2]any{string(k), r.Summary.Decisions[k]})
	}
	codes := make([]string, 0, len(r.Summary.Diagnostics))
	for c := range r.Summary.Diagnostics {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)
	for _, c := range codes {
		summary = append(summary, [2]any{c, r.Summary.Diagnostics[constants.DiagnosticCode(c)]})
	}
	for i, kv := range summary {
		writeRow(f, sheetSummary, i+1, kv[0], kv[1])
	}
	_ = f.SetColWidth(sheetSummary, "A", "A", 36)
	_ = f.SetColWidth(sheetSummary, "B", "B", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"run_id", r.RunID.String(),
		"decisions", len(decisions),
		"diagnostics", len(r.Diagnostics),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type jsonReport struct {
	RunID        string         `json:"run_id"`
	PackagePath  string         `json:"package"`
	CandidateDir string         `json:"candidates"`
	OutputPath   string         `json:"output"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Summary      any            `json:"summary"`
	Decisions    []decisionView `json:"decisions"`
	Diagnostics  any            `json:"diagnostics"`
}

// ExportJSON returns the report as indented JSON.
func (s *Service) ExportJSON(r Report) ([]byte, error) {
	out := jsonReport{
		RunID:        r.RunID.String(),
		PackagePath:  r.PackagePath,
		CandidateDir: r.CandidateDir,
		OutputPath:   r.OutputPath,
		GeneratedAt:  r.GeneratedAt.UTC(),
		Summary:      r.Summary,
		Decisions:    decisionViews(r.Plan),
		Diagnostics:  r.Diagnostics,
	}
	if out.Decisions == nil {
		out.Decisions = []decisionView{}
	}
	if r.Diagnostics == nil {
		out.Diagnostics = []any{}
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json report: %w", err)
	}
	s.logger.Debug("export.json.ok", "run_id", out.RunID, "bytes", len(b))
	return b, nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func round(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
