package ingest

import (
	"io"

	"github.com/xuri/excelize/v2"

	"cdrlens/internal/models"
)

// ReadXLSX parses the first worksheet of a workbook, using its first
// non-blank row as the header. Cells are read unformatted so dates arrive
// as spreadsheet serial numbers and are coerced later.
func ReadXLSX(r io.Reader) (*models.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, parseErr("cannot open spreadsheet", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, parseErr("workbook has no sheets", ErrNoHeader)
	}

	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, parseErr("cannot read sheet "+sheets[0], err)
	}

	var header []string

	var rows [][]string

	for _, rec := range records {
		if isBlankRow(rec) {
			continue
		}

		if header == nil {
			header = trimAll(rec)
			continue
		}

		rows = append(rows, rec)
	}

	if header == nil {
		return nil, parseErr("sheet "+sheets[0]+" is empty", ErrNoHeader)
	}

	return rectangular(header, rows), nil
}
