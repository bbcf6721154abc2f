package fundmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFundListJSON(t *testing.T) {
	path := writeFile(t, "mf.json", `[
		{"schemeCode": 100027, "schemeName": "Grindlays Super Saver Income Fund-GSSIF-Half Yearly Dividend"},
		{"schemeCode": "152746", "schemeName": " SBI Bluechip Fund "},
		{"schemeCode": 1, "schemeName": ""}
	]`)
	got, err := ParseFundList(path)
	require.NoError(t, err)
	assert.Equal(t, []FundRecord{
		{Name: "Grindlays Super Saver Income Fund-GSSIF-Half Yearly Dividend", Code: 100027},
		{Name: "SBI Bluechip Fund", Code: 152746},
	}, got)
}

func TestParseFundListCSVDetectsHeaders(t *testing.T) {
	path := writeFile(t, "schemes.csv", "\ufeffScheme Code,ISIN,Scheme Name\n101,INF1,Axis Bluechip Fund\n102,INF2,Axis Long Term Equity Fund\n,INF3,\n")
	got, err := ParseFundList(path)
	require.NoError(t, err)
	assert.Equal(t, []FundRecord{
		{Name: "Axis Bluechip Fund", Code: 101},
		{Name: "Axis Long Term Equity Fund", Code: 102},
	}, got)
}

func TestParseFundListTSVExplicitColumns(t *testing.T) {
	path := writeFile(t, "schemes.tsv", "label\tid\nHDFC Mid-Cap Opportunities Fund\t104\n")
	got, err := ParseFundListWithOptions(path, FundListOptions{CodeColumn: "#2", NameColumn: "label"})
	require.NoError(t, err)
	assert.Equal(t, []FundRecord{{Name: "HDFC Mid-Cap Opportunities Fund", Code: 104}}, got)
}

func TestParseFundListErrors(t *testing.T) {
	cases := map[string]struct {
		name    string
		content string
		opts    FundListOptions
	}{
		"no matching header": {"a.csv", "foo,bar\n1,x\n", FundListOptions{}},
		"bad code":           {"b.csv", "code,name\nabc,Fund\n", FundListOptions{}},
		"unknown column":     {"c.csv", "code,name\n1,Fund\n", FundListOptions{NameColumn: "title"}},
		"index out of range": {"d.csv", "code,name\n1,Fund\n", FundListOptions{CodeColumn: "#9"}},
		"zero index":         {"e.csv", "code,name\n1,Fund\n", FundListOptions{CodeColumn: "#0"}},
		"empty json":         {"f.json", "[]", FundListOptions{}},
		"bad json":           {"g.json", "{", FundListOptions{}},
		"header only":        {"h.csv", "code,name\n", FundListOptions{}},
	}
	for label, tc := range cases {
		t.Run(label, func(t *testing.T) {
			_, err := ParseFundListWithOptions(writeFile(t, tc.name, tc.content), tc.opts)
			assert.Error(t, err)
		})
	}
}

func TestParseFundListMissingFile(t *testing.T) {
	_, err := ParseFundList(t.TempDir() + "/missing.csv")
	assert.Error(t, err)
}
