package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/normalize"
	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
)

func unit(source, number string, conformant bool, pages ...int) entity.InvoiceUnit {
	v, err := normalize.Text(number)
	score := 0.4
	if conformant {
		score = 0.95
	}
	return entity.InvoiceUnit{
		Source: source,
		Pages:  pages,
		Fields: map[string]entity.ExtractedField{
			constants.InvoiceNumberField: {Name: constants.InvoiceNumberField, Kind: constants.FieldKindText, RawText: number, Value: v, Err: err},
		},
		Match: entity.MatchReport{Overall: score, Conformant: conformant},
	}
}

func sampleReport() Report {
	existing := []entity.InvoiceUnit{
		unit("/pkg/package.pdf", "INV-1001", false, 0, 1),
		unit("/pkg/package.pdf", "INV-1002", true, 2),
	}
	candidates := []entity.InvoiceUnit{
		unit("/new/1001.pdf", "INV-1001", true, 0),
		unit("/new/1003.pdf", "INV-1003", true, 0, 1),
	}
	plan := reconcile.NewPlanner(reconcile.Options{}).Plan(existing, candidates)
	diags := append(plan.Diagnostics(), entity.Diagnostic{
		Code:     constants.DiagContinuationAssumed,
		Severity: constants.SeverityInfo,
		Source:   "/pkg/package.pdf",
		Pages:    []int{2},
		Message:  "page 2 has no legible invoice number; treated as continuation",
	})
	return Report{
		RunID:        uuid.MustParse("6f1c1f52-1111-4c4e-9f0a-2d3f4a5b6c7d"),
		PackagePath:  "/pkg/package.pdf",
		CandidateDir: "/new",
		OutputPath:   "/out/package.pdf",
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Plan:         plan,
		Diagnostics:  diags,
		Summary: entity.RunSummary{
			ExistingUnits:  2,
			CandidateUnits: 2,
			Decisions:      plan.Counts(),
			Diagnostics:    map[constants.DiagnosticCode]int{constants.DiagContinuationAssumed: 1},
			PagesWritten:   4,
		},
	}
}

func TestExportXLSX(t *testing.T) {
	b, err := NewService(nil).ExportXLSX(context.Background(), sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{sheetPlan, sheetDiagnostics, sheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(sheetPlan)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Position", rows[0][0])
	assert.Equal(t, []string{"1", "REPLACE", "INV-1001", "package.pdf", "1-2", "0.4", "1001.pdf", "1", "0.95"}, rows[1][:9])
	assert.Equal(t, []string{"2", "KEEP", "INV-1002", "package.pdf", "3"}, rows[2][:5])
	assert.Equal(t, []string{"3", "INSERT", "INV-1003"}, rows[3][:3])
	assert.Equal(t, "1-2", rows[3][7])

	diag, err := f.GetRows(sheetDiagnostics)
	require.NoError(t, err)
	require.Len(t, diag, 2)
	assert.Equal(t, []string{"continuation_assumed", "INFO", "package.pdf", "", "2"}, diag[1][:5])

	summary, err := f.GetRows(sheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Run ID", "6f1c1f52-1111-4c4e-9f0a-2d3f4a5b6c7d"}, summary[0])
	got := map[string]string{}
	for _, r := range summary {
		if len(r) == 2 {
			got[r[0]] = r[1]
		}
	}
	assert.Equal(t, "1", got["REPLACE"])
	assert.Equal(t, "0", got["DROP"])
	assert.Equal(t, "4", got["Pages Written"])
	assert.Equal(t, "1", got["continuation_assumed"])
}

func TestExportJSON(t *testing.T) {
	b, err := NewService(nil).ExportJSON(sampleReport())
	require.NoError(t, err)

	var out struct {
		RunID     string `json:"run_id"`
		Decisions []struct {
			Position  int                      `json:"position"`
			Decision  string                   `json:"decision"`
			Invoice   string                   `json:"invoice_number"`
			Existing  *struct{ Pages string }  `json:"existing"`
			Candidate *struct{ Source string } `json:"candidate"`
		} `json:"decisions"`
		Diagnostics []entity.Diagnostic `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "6f1c1f52-1111-4c4e-9f0a-2d3f4a5b6c7d", out.RunID)
	require.Len(t, out.Decisions, 3)
	assert.Equal(t, "REPLACE", out.Decisions[0].Decision)
	assert.Equal(t, "1-2", out.Decisions[0].Existing.Pages)
	assert.Equal(t, "/new/1001.pdf", out.Decisions[0].Candidate.Source)
	assert.Nil(t, out.Decisions[2].Existing)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, constants.DiagContinuationAssumed, out.Diagnostics[0].Code)
}

func TestExportJSON_LayoutScore(t *testing.T) {
	plain, _ := NewService(nil).ExportJSON(sampleReport())
	assert.NotContains(t, string(plain), `"layout"`)

	u := unit("/new/1003.pdf", "INV-1003", true, 0)
	u.Match.Layout, u.Match.LayoutWeight = 0.9, 0.6
	plan := reconcile.NewPlanner(reconcile.Options{}).Plan(nil, []entity.InvoiceUnit{u})
	b, err := NewService(nil).ExportJSON(Report{Plan: plan})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"layout": 0.9`)
}

func TestExportJSON_EmptyPlan(t *testing.T) {
	b, err := NewService(nil).ExportJSON(Report{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"decisions": []`)
	assert.Contains(t, string(b), `"diagnostics": []`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "a", truncate("abcdef", 1))
}
