// Package csvimport implements the CSV lead-import contract (spec §6):
// multi-encoding auto-detection, header-driven column mapping, and
// per-row validation accumulating errors instead of failing the whole
// import. Grounded on original_source's csv_parser.py (detection order
// and per-row validation shape) and the teacher's handleCampaignUpload
// (multipart upload handling), using golang.org/x/text/encoding/japanese
// for the Shift_JIS/CP932 trial decode (one decoder covers both names),
// matching the wider example pack's x/text usage for Japanese-locale
// text handling.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"dialerctl/internal/domain"
)

// ParsedLead is one validated row pending admission as a domain.Lead.
type ParsedLead struct {
	Phone   string
	Name    string
	Company string
	Email   string
	Notes   string
}

// RowError records a skipped row with its reason.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Result is the parsed CSV content: valid leads in file order plus
// accumulated per-row errors.
type Result struct {
	Leads  []ParsedLead
	Errors []RowError
}

// Parse decodes content (UTF-8 if the bytes are valid UTF-8, otherwise
// one Shift_JIS trial decode that also covers CP932; see decodeContent)
// and extracts leads,
// validating each row independently so one bad row doesn't fail the
// whole import.
func Parse(content []byte) (*Result, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("empty CSV file")
	}

	text := decodeContent(content)

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV format: %w", err)
	}

	columnIndex := make(map[string]int, len(header))
	for i, h := range header {
		columnIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}
	phoneCol, ok := columnIndex["phone_number"]
	if !ok {
		return nil, fmt.Errorf("missing required column: phone_number")
	}

	result := &Result{}
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "invalid CSV row: " + err.Error()})
			continue
		}

		phone := strings.TrimSpace(field(record, phoneCol))
		if phone == "" {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "empty phone number"})
			continue
		}
		if !domain.ValidE164(phone) {
			result.Errors = append(result.Errors, RowError{Row: rowNum, Error: "invalid phone format: " + phone})
			continue
		}

		result.Leads = append(result.Leads, ParsedLead{
			Phone:   phone,
			Name:    optionalField(record, columnIndex, "name"),
			Company: optionalField(record, columnIndex, "company"),
			Email:   optionalField(record, columnIndex, "email"),
			Notes:   optionalField(record, columnIndex, "notes"),
		})
	}

	return result, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func optionalField(record []string, columnIndex map[string]int, name string) string {
	idx, ok := columnIndex[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(field(record, idx))
}

// decodeContent tries UTF-8 first, then Shift_JIS/CP932 (spec §6's
// stated trial order), falling back to the raw bytes as a last resort
// so a row-level garbled string surfaces as a validation error
// downstream rather than an opaque import failure.
//
// golang.org/x/text/encoding/japanese.ShiftJIS is itself a CP932
// decoder (its own doc comment: "ShiftJIS is the Shift JIS encoding,
// also known as Code Page 932 and Windows-31J"), so one trial decode
// covers both names in spec §6; there is no separate x/text CP932
// decoder to fall back to.
func decodeContent(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	if text, ok := tryDecode(content, japanese.ShiftJIS.NewDecoder()); ok {
		return text
	}
	return string(content)
}

func tryDecode(content []byte, dec transform.Transformer) (string, bool) {
	out, _, err := transform.Bytes(dec, content)
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	return string(out), true
}
