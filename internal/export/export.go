// Package export writes tabular results into xlsx workbooks.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// Sheet is a single worksheet, the header becomes the first row.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
	// Table, when set, is the name of an excel table spanning header and rows.
	Table string
}

type Workbook struct {
	file   *excelize.File
	sheets map[string]struct{}
}

func New() *Workbook {
	return &Workbook{
		file:   excelize.NewFile(),
		sheets: map[string]struct{}{},
	}
}

var invalidSheetChars = regexp.MustCompile(`[\[\]:*?/\\]`)

// SheetName makes name usable as a worksheet name.
func SheetName(name string) string {
	name = invalidSheetChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "'")
	runes := []rune(name)
	if len(runes) > maxSheetName {
		runes = runes[:maxSheetName]
	}
	name = string(runes)
	if name == "" {
		name = "Sheet"
	}
	return name
}

var invalidTableChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// TableName makes name usable as an excel table name.
func TableName(name string) string {
	name = invalidTableChars.ReplaceAllString(name, "_")
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "_" + name
	}
	return name
}

func (w *Workbook) uniqueSheetName(name string) string {
	name = SheetName(name)
	candidate := name
	for i := 2; ; i++ {
		if _, taken := w.sheets[strings.ToLower(candidate)]; !taken {
			return candidate
		}
		suffix := fmt.Sprintf("_%d", i)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		candidate = string(runes) + suffix
	}
}

func (w *Workbook) newSheet(name string) error {
	if len(w.sheets) == 0 {
		// reuse the default sheet so the workbook does not start with an empty one
		return w.file.SetSheetName(w.file.GetSheetName(0), name)
	}
	_, err := w.file.NewSheet(name)
	return err
}

// AddSheet appends a worksheet, it returns the name the sheet was stored under.
func (w *Workbook) AddSheet(sheet Sheet) (string, error) {
	name := w.uniqueSheetName(sheet.Name)
	err := w.newSheet(name)
	if err != nil {
		return "", fmt.Errorf("create sheet %q: %w", name, err)
	}
	w.sheets[strings.ToLower(name)] = struct{}{}

	sw, err := w.file.NewStreamWriter(name)
	if err != nil {
		return "", err
	}

	header := make([]any, len(sheet.Header))
	for i, h := range sheet.Header {
		header[i] = h
	}
	err = sw.SetRow("A1", header)
	if err != nil {
		return "", fmt.Errorf("write header of %q: %w", name, err)
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		err = sw.SetRow(cell, row)
		if err != nil {
			return "", fmt.Errorf("write row %d of %q: %w", i+1, name, err)
		}
	}

	if sheet.Table != "" && len(sheet.Header) > 0 && len(sheet.Rows) > 0 {
		lastCell, err := excelize.CoordinatesToCellName(len(sheet.Header), len(sheet.Rows)+1)
		if err != nil {
			return "", err
		}
		err = sw.AddTable(&excelize.Table{
			Range:     fmt.Sprintf("A1:%s", lastCell),
			Name:      TableName(sheet.Table),
			StyleName: "TableStyleMedium2",
		})
		if err != nil {
			return "", fmt.Errorf("add table to %q: %w", name, err)
		}
	}

	err = sw.Flush()
	if err != nil {
		return "", err
	}
	return name, nil
}

// SaveAs writes the workbook to path, creating parent directories.
func (w *Workbook) SaveAs(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return err
	}
	return w.file.SaveAs(path)
}

func (w *Workbook) Close() error {
	return w.file.Close()
}
