package scraper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/srikarv/eduinsights/internal/models"
)

// The portal renders student details in a plain table (row 1: USN,
// row 2: name) and the per-subject marks in a div-based grid whose
// first row is the column header.
const (
	marksRowSelector  = ".divTable .divTableRow"
	marksCellSelector = ".divTableCell"
	marksCellsPerRow  = 6
)

// parseResultPage extracts a StudentRecord from the rendered details
// page. The subject list is sorted ascending by subject code.
func parseResultPage(pageHTML string) (*models.StudentRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse result page: %w", err)
	}

	detailRows := doc.Find("table tr")
	if detailRows.Length() < 2 {
		return nil, fmt.Errorf("student details table not found")
	}

	usn := strings.ToUpper(strings.TrimSpace(detailRows.Eq(0).Find("td").Eq(1).Text()))
	name := strings.ToUpper(detailRows.Eq(1).Find("td").Eq(1).Text())
	if usn == "" {
		return nil, fmt.Errorf("student details table missing USN cell")
	}

	var marks []models.SubjectMark
	var rowErr error
	doc.Find(marksRowSelector).Each(func(i int, row *goquery.Selection) {
		if i == 0 || rowErr != nil {
			// Header row.
			return
		}
		cells := row.Find(marksCellSelector)
		if cells.Length() < marksCellsPerRow {
			rowErr = fmt.Errorf("marks row %d has %d cells, want %d", i, cells.Length(), marksCellsPerRow)
			return
		}

		mark := models.SubjectMark{
			SubCode: strings.TrimSpace(cells.Eq(0).Text()),
			SubName: strings.TrimSpace(cells.Eq(1).Text()),
			Result:  strings.TrimSpace(cells.Eq(5).Text()),
		}

		var convErr error
		if mark.Internal, convErr = parseScore(cells.Eq(2).Text()); convErr != nil {
			rowErr = fmt.Errorf("marks row %d internal: %w", i, convErr)
			return
		}
		if mark.External, convErr = parseScore(cells.Eq(3).Text()); convErr != nil {
			rowErr = fmt.Errorf("marks row %d external: %w", i, convErr)
			return
		}
		if mark.Total, convErr = parseScore(cells.Eq(4).Text()); convErr != nil {
			rowErr = fmt.Errorf("marks row %d total: %w", i, convErr)
			return
		}

		marks = append(marks, mark)
	})
	if rowErr != nil {
		return nil, rowErr
	}
	if len(marks) == 0 {
		return nil, fmt.Errorf("no marks rows found for %s", usn)
	}

	sort.SliceStable(marks, func(i, j int) bool {
		return marks[i].SubCode < marks[j].SubCode
	})

	return &models.StudentRecord{
		USN:   usn,
		Name:  name,
		Marks: marks,
	}, nil
}

func parseScore(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("non-numeric score %q", strings.TrimSpace(raw))
	}
	return n, nil
}
