package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = `Rank,Platform,Market_Question,Market_URL,Market_Price,Model_Estimate,Edge,Alpha_Score,Confidence,Kelly_Fraction,Recommendation,Num_Prob_Mentions,Num_Articles,Hours_Until_Close,Validated
1,manifold,Will X happen?,http://x,0.45,0.60,0.15,0.20,0.8,0.05,STRONG BUY YES,12,5,48.0,yes
2,polymarket,"Will ""A, B"" happen?",http://y,0.50,0.55,0.05,0.30,0.4,0.02,BUY NO,3,2,10.0,no
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSummarize(t *testing.T) {
	out, err := execute(t, "summarize", writeTemp(t, sampleCSV))
	require.NoError(t, err)

	assert.Contains(t, out, "Total markets")
	assert.Contains(t, out, "10.0%")
	assert.Contains(t, out, "Will \"A, B\" happen?")

	// top markets are ordered by alpha, so rank 2 is listed first
	lines := strings.Split(out, "\n")
	var ranks []string
	for i, l := range lines {
		if strings.HasPrefix(l, "RANK") {
			for _, row := range lines[i+1:] {
				if f := strings.Fields(row); len(f) > 0 {
					ranks = append(ranks, f[0])
				}
			}
		}
	}
	assert.Equal(t, []string{"2", "1"}, ranks)
}

func TestSummarize_Filter(t *testing.T) {
	out, err := execute(t, "summarize", "--filter", "strong-buy-yes", writeTemp(t, sampleCSV))
	require.NoError(t, err)
	assert.Contains(t, out, "15.0%")
	assert.NotContains(t, out, "A, B")

	_, err = execute(t, "summarize", "--filter", "maybe", writeTemp(t, sampleCSV))
	assert.Error(t, err)
}

func TestValidate_Clean(t *testing.T) {
	out, err := execute(t, "validate", writeTemp(t, sampleCSV))
	require.NoError(t, err)
	assert.Contains(t, out, "2 data lines, 2 records, 0 skipped, 0 without usable edge, 0 diagnostics")
}

func TestValidate_Diagnostics(t *testing.T) {
	bad := sampleCSV + "3,kalshi,Will Z?,http://z,abc,0.5,0.1,0.1,0.5,0.01,SKIP,1,1,5,no\n"
	out, err := execute(t, "validate", writeTemp(t, bad))
	require.ErrorIs(t, err, errInvalidRows)
	assert.Contains(t, out, "Market_Price")
}

func TestValidate_MissingFile(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.xlsx")
	out, err := execute(t, "export", writeTemp(t, sampleCSV), "--out", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 markets")

	f, err := excelize.OpenFile(dst)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Markets", "C2")
	require.NoError(t, err)
	assert.Equal(t, "Will X happen?", v)
}
