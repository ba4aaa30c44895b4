package businessflow

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/repository"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Uploader stores a finished export somewhere other processes can reach
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// ExportFlow writes the append-only logs to spreadsheets
type ExportFlow interface {
	ExportAudit(ctx context.Context, filter models.AuditEntryFilter, path string) (*dto.ExportResult, error)
	ExportScores(ctx context.Context, filter models.ArbitrationScoreFilter, path string) (*dto.ExportResult, error)
}

// ExportFlowImpl implements the export flow
type ExportFlowImpl struct {
	auditRepo repository.AuditEntryRepository
	scoreRepo repository.ArbitrationScoreRepository
	uploader  Uploader
	logger    *log.Logger
}

// NewExportFlow creates a new export flow. uploader may be nil.
func NewExportFlow(
	auditRepo repository.AuditEntryRepository,
	scoreRepo repository.ArbitrationScoreRepository,
	uploader Uploader,
	logger *log.Logger,
) ExportFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &ExportFlowImpl{
		auditRepo: auditRepo,
		scoreRepo: scoreRepo,
		uploader:  uploader,
		logger:    logger,
	}
}

func (s *ExportFlowImpl) ExportAudit(ctx context.Context, filter models.AuditEntryFilter, path string) (*dto.ExportResult, error) {
	entries, err := s.auditRepo.ByFilter(ctx, filter, 0, 0)
	if err != nil {
		return nil, s.fail("Failed to load audit entries", err)
	}

	header := []string{"id", "event_id", "created_at", "actor_id", "actor_role", "action", "entity_type", "entity_id", "before", "after", "diff"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(e.ID), 10),
			e.EventID,
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.ActorID,
			string(e.ActorRole),
			e.Action,
			e.EntityType,
			e.EntityID,
			string(e.Before),
			string(e.After),
			string(e.Diff),
		})
	}
	return s.write(ctx, "audit", header, rows, path)
}

func (s *ExportFlowImpl) ExportScores(ctx context.Context, filter models.ArbitrationScoreFilter, path string) (*dto.ExportResult, error) {
	scores, err := s.scoreRepo.ByFilter(ctx, filter, 0, 0)
	if err != nil {
		return nil, s.fail("Failed to load arbitration scores", err)
	}

	header := []string{"id", "decision_id", "created_at", "customer_id", "campaign_id", "version", "strategy", "score", "winner", "reason_codes", "factors"}
	rows := make([][]string, 0, len(scores))
	for _, sc := range scores {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(sc.ID), 10),
			sc.DecisionID,
			sc.CreatedAt.UTC().Format(time.RFC3339),
			strconv.FormatUint(uint64(sc.CustomerID), 10),
			strconv.FormatUint(uint64(sc.CampaignID), 10),
			strconv.Itoa(sc.Version),
			sc.Strategy,
			strconv.FormatFloat(sc.Score, 'f', 4, 64),
			strconv.FormatBool(sc.Winner),
			strings.Join(sc.ReasonCodes, ","),
			string(sc.Factors),
		})
	}
	return s.write(ctx, "scores", header, rows, path)
}

// write renders one sheet, saves it to path and uploads it when an uploader is set
func (s *ExportFlowImpl) write(ctx context.Context, sheet string, header []string, rows [][]string, path string) (*dto.ExportResult, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, s.fail("Failed to prepare sheet", err)
	}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, s.fail("Failed to write sheet header", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, s.fail("Failed to address sheet row", err)
		}
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, s.fail("Failed to write sheet row", err)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, s.fail("Failed to write spreadsheet", err)
	}
	if path == "" {
		path = fmt.Sprintf("%s_%s.xlsx", sheet, time.Now().UTC().Format("20060102T150405Z"))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, s.fail("Failed to save spreadsheet", err)
	}

	result := &dto.ExportResult{Path: path, Rows: len(rows)}
	if s.uploader != nil {
		location, err := s.uploader.Upload(ctx, filepath.Base(path), buf.Bytes(), xlsxContentType)
		if err != nil {
			return nil, s.fail("Failed to upload export", err)
		}
		result.Location = location
	}
	return result, nil
}

func (s *ExportFlowImpl) fail(message string, err error) error {
	s.logger.Printf("%s: %v", message, err)
	return NewBusinessError(CodeInternal, message, err)
}
