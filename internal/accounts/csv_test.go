package accounts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coopbooks/coopbooks/internal/model"
)

func TestWriteReadAccounts(t *testing.T) {
	accounts := []model.Account{
		{Code: "1-1000", Name: "Cash on Hand", Type: model.AccountTypeAsset, Active: true, Description: "Vault cash"},
		{Code: "1-1010", Name: "Petty Cash, Branch", Type: model.AccountTypeAsset, ParentCode: "1-1000", Active: false},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, accounts))

	got, err := ReadAccounts(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "1-1000", got[0].Code)
	assert.Equal(t, "Vault cash", got[0].Description)
	assert.True(t, got[0].Active)
	assert.Equal(t, "Petty Cash, Branch", got[1].Name)
	assert.Equal(t, "1-1000", got[1].ParentCode)
	assert.False(t, got[1].Active)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestReadAccounts_BlankActiveDefaultsTrue(t *testing.T) {
	in := "code,name,type,parent_code,active,description\n1-1000,Cash,asset,,,\n"

	got, err := ReadAccounts(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Active)
}

func TestReadAccounts_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unknown type", "code,name,type,parent_code,active,description\n1-1000,Cash,money,,true,\n"},
		{"bad active", "code,name,type,parent_code,active,description\n1-1000,Cash,asset,,maybe,\n"},
		{"wrong field count", "code,name,type\n1-1000,Cash,asset\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAccounts(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestReadAccounts_Empty(t *testing.T) {
	got, err := ReadAccounts(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDefaultChart(t *testing.T) {
	chart := DefaultChart()
	require.NotEmpty(t, chart)

	codes := make(map[string]model.Account)
	types := make(map[model.AccountType]bool)
	for _, acct := range chart {
		codes[acct.Code] = acct
		types[acct.Type] = true
		assert.NotEmpty(t, acct.Name, "account %s missing name", acct.Code)
		assert.True(t, acct.Active, "account %s should be active", acct.Code)
	}

	for _, code := range []string{CodeCash, CodeMemberLoans, CodeFixedAssets, CodeAccumulatedDepreciation,
		CodeMemberSavings, CodeShareCapital, CodeRetainedEarnings, CodeLoanInterestIncome, CodeDepreciationExpense} {
		assert.Contains(t, codes, code)
	}
	assert.Len(t, types, len(model.AccountTypes), "chart should span every account type")
	assert.Equal(t, model.AccountTypeEquity, codes[CodeRetainedEarnings].Type)
}

func TestDefaultChartLoadsIntoRegistry(t *testing.T) {
	chart := DefaultChart()

	var buf bytes.Buffer
	require.NoError(t, WriteAccounts(&buf, chart))
	got, err := ReadAccounts(&buf)
	require.NoError(t, err)

	reg, err := NewRegistryFrom(got)
	require.NoError(t, err)
	assert.Equal(t, len(chart), reg.Len())

	acct, ok := reg.Get(CodeAccumulatedDepreciation)
	require.True(t, ok)
	assert.Equal(t, CodeFixedAssets, acct.ParentCode)
}
