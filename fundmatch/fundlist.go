package fundmatch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FundListOptions selects the CSV/TSV columns holding the scheme code and name.
// Empty fields fall back to header auto-detection. Columns may be given by
// header name or as a 1-based "#N" index.
type FundListOptions struct {
	CodeColumn string
	NameColumn string
}

// ColumnCandidates defines header names recognised during auto-detection.
type ColumnCandidates struct {
	Code []string `json:"code"`
	Name []string `json:"name"`
}

// DefaultColumnCandidates returns the built-in header candidates.
func DefaultColumnCandidates() ColumnCandidates {
	return ColumnCandidates{
		Code: []string{"schemeCode", "scheme code", "scheme_code", "fund_code", "code", "amfi code"},
		Name: []string{"schemeName", "scheme name", "scheme_name", "fund_name", "name", "fund name"},
	}
}

type schemeJSON struct {
	SchemeCode json.RawMessage `json:"schemeCode"`
	SchemeName string          `json:"schemeName"`
}

// ParseFundList reads the scheme list used to build an artifact: a JSON array
// of {"schemeCode","schemeName"} objects or a CSV/TSV file with a header row.
func ParseFundList(path string) ([]FundRecord, error) {
	return ParseFundListWithOptions(path, FundListOptions{})
}

// ParseFundListWithOptions is ParseFundList with explicit column choices.
func ParseFundListWithOptions(path string, opts FundListOptions) ([]FundRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseSchemeJSON(path)
	case ".tsv":
		return parseDelimitedFunds(path, '\t', opts)
	default:
		return parseDelimitedFunds(path, ',', opts)
	}
}

func parseSchemeJSON(path string) ([]FundRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fund list: %w", err)
	}
	var schemes []schemeJSON
	if err := json.Unmarshal(data, &schemes); err != nil {
		return nil, fmt.Errorf("decode fund list: %w", err)
	}
	out := make([]FundRecord, 0, len(schemes))
	for i, s := range schemes {
		name := cleanCell(s.SchemeName)
		if name == "" {
			continue
		}
		code, err := decodeCode(s.SchemeCode)
		if err != nil {
			return nil, fmt.Errorf("fund list entry %d: %w", i, err)
		}
		out = append(out, FundRecord{Name: name, Code: code})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no funds found in %s", path)
	}
	return out, nil
}

func parseDelimitedFunds(path string, comma rune, opts FundListOptions) ([]FundRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, errors.New("empty fund list")
	}
	header := make([]string, len(rows[0]))
	for i, cell := range rows[0] {
		header[i] = cleanCell(cell)
	}
	candidates := DefaultColumnCandidates()
	codeCol, err := pickColumn(header, opts.CodeColumn, candidates.Code)
	if err != nil {
		return nil, err
	}
	nameCol, err := pickColumn(header, opts.NameColumn, candidates.Name)
	if err != nil {
		return nil, err
	}
	if codeCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("%s: could not find scheme code and name columns in header %v", filepath.Base(path), header)
	}
	out := make([]FundRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if codeCol >= len(row) || nameCol >= len(row) {
			continue
		}
		name := cleanCell(row[nameCol])
		rawCode := cleanCell(row[codeCol])
		if name == "" || rawCode == "" {
			continue
		}
		code, err := strconv.ParseInt(rawCode, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: invalid scheme code %q", filepath.Base(path), i+2, rawCode)
		}
		out = append(out, FundRecord{Name: name, Code: code})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no funds found in %s", path)
	}
	return out, nil
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "\ufeff")
	return strings.TrimSpace(v)
}

func pickColumn(header []string, explicit string, candidates []string) (int, error) {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return matchExplicitColumn(header, trimmed)
	}
	for i, col := range header {
		for _, cand := range candidates {
			if strings.EqualFold(col, cand) {
				return i, nil
			}
		}
	}
	return -1, nil
}

func matchExplicitColumn(header []string, explicit string) (int, error) {
	for i, col := range header {
		if strings.EqualFold(col, explicit) {
			return i, nil
		}
	}
	if strings.HasPrefix(explicit, "#") {
		idx, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(explicit, "#")))
		if err != nil {
			return -1, fmt.Errorf("invalid column index %q", explicit)
		}
		if idx <= 0 {
			return -1, fmt.Errorf("column indices are 1-based: %q", explicit)
		}
		if idx > len(header) {
			return -1, fmt.Errorf("column index %s is out of range", explicit)
		}
		return idx - 1, nil
	}
	return -1, fmt.Errorf("column %q not found", explicit)
}
