package export

import (
	"context"
	"fmt"
	"time"

	"github.com/MimeLyc/srs-generator/internal/jobs"
	"github.com/MimeLyc/srs-generator/pkg/log"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Jobs"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{"Created", "Updated", "Name", "Status", "PDF", "Word", "Rating"}

// Service renders an owner's job history as an XLSX workbook.
type Service struct {
	store jobs.Store
}

func NewService(store jobs.Store) *Service {
	return &Service{store: store}
}

// JobsXLSX returns the workbook bytes for owner's jobs, newest first.
func (s *Service) JobsXLSX(ctx context.Context, owner string) ([]byte, error) {
	start := time.Now()

	list, err := s.store.FindByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// rename the default sheet instead of adding a second one
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, style)
	}

	for i, job := range list {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}

		write(1, job.CreatedAt.UTC().Format(time.RFC3339))
		write(2, job.UpdatedAt.UTC().Format(time.RFC3339))
		write(3, job.Name)
		write(4, string(job.Status))
		write(5, job.PdfRef)
		write(6, job.WordRef)
		if job.Rating != nil {
			write(7, *job.Rating)
		} else {
			write(7, "")
		}
	}

	_ = f.SetColWidth(SheetName, "A", "B", 22)
	_ = f.SetColWidth(SheetName, "C", "C", 40)
	_ = f.SetColWidth(SheetName, "D", "D", 12)
	_ = f.SetColWidth(SheetName, "E", "F", 36)
	_ = f.SetColWidth(SheetName, "G", "G", 8)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	log.Debug("Exported %d jobs for owner %q in %s", len(list), owner, time.Since(start))
	return buf.Bytes(), nil
}
