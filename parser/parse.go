package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"queue-twin/errors"
	"queue-twin/models"
)

// ParseRoster reads team roster CSV data from the reader.
// Each record is "Name, Status, CasesResolved, Efficiency".
// Lines starting with '#' are headers/comments and are skipped.
// Status is one of Online, Busy or Away (case-insensitive).
// Efficiency is a percentage in [0, 100].
// Members are assigned sequential IDs ("1", "2", ...) in file order.
func ParseRoster(r io.Reader) ([]models.TeamMember, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	var members []models.TeamMember
	lineNum := 0

	for {
		record, err := reader.Read()
		lineNum++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}

		// Handle headers/comments
		if len(record) > 0 && strings.HasPrefix(strings.TrimSpace(record[0]), "#") {
			continue
		}

		if len(record) != 4 {
			return nil, &errors.ParseError{
				Line:   lineNum,
				Record: record,
				Err:    errors.ErrInvalidFieldCount,
			}
		}

		m := models.TeamMember{ID: strconv.Itoa(len(members) + 1)}

		m.Name = strings.TrimSpace(record[0])
		if m.Name == "" {
			return nil, &errors.ParseError{
				Line:   lineNum,
				Record: record,
				Err:    errors.ErrEmptyName,
			}
		}

		m.Status, err = parseStatus(record[1])
		if err != nil {
			return nil, &errors.ParseError{
				Line:   lineNum,
				Record: record,
				Err:    fmt.Errorf("%w: %v", errors.ErrInvalidStatus, err),
			}
		}

		m.CasesResolved, err = strconv.Atoi(strings.TrimSpace(record[2]))
		if err == nil && m.CasesResolved < 0 {
			err = fmt.Errorf("negative value %d", m.CasesResolved)
		}
		if err != nil {
			return nil, &errors.ParseError{
				Line:   lineNum,
				Record: record,
				Err:    fmt.Errorf("%w: %v", errors.ErrInvalidCasesResolved, err),
			}
		}

		m.Efficiency, err = strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(record[3]), "%"))
		if err == nil && (m.Efficiency < 0 || m.Efficiency > 100) {
			err = fmt.Errorf("%d out of range [0, 100]", m.Efficiency)
		}
		if err != nil {
			return nil, &errors.ParseError{
				Line:   lineNum,
				Record: record,
				Err:    fmt.Errorf("%w: %v", errors.ErrInvalidEfficiency, err),
			}
		}

		members = append(members, m)
	}

	return members, nil
}

func parseStatus(value string) (models.MemberStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "online":
		return models.MemberOnline, nil
	case "busy":
		return models.MemberBusy, nil
	case "away":
		return models.MemberAway, nil
	default:
		return "", fmt.Errorf("unknown status %q", value)
	}
}
