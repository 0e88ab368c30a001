package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/coopbooks/coopbooks/internal/model"
)

const (
	numFields = 6
	colCode   = 0
	colName   = 1
	colType   = 2
	colParent = 3
	colActive = 4
	colDesc   = 5
)

// ReadAccounts reads a chart-of-accounts CSV.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes a chart-of-accounts CSV.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"code", "name", "type", "parent_code", "active", "description"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colCode] = acct.Code
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colParent] = acct.ParentCode
	row[colActive] = strconv.FormatBool(acct.Active)
	row[colDesc] = acct.Description
	return row
}

// UnmarshalAccount converts a CSV row to an Account with a fresh ID.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	active := true
	if record[colActive] != "" {
		var err error
		active, err = strconv.ParseBool(record[colActive])
		if err != nil {
			return model.Account{}, fmt.Errorf("parsing active %q: %w", record[colActive], err)
		}
	}

	acctType := model.AccountType(record[colType])
	if !acctType.Valid() {
		return model.Account{}, fmt.Errorf("unknown account type %q", record[colType])
	}

	return model.Account{
		ID:          uuid.New(),
		Code:        record[colCode],
		Name:        record[colName],
		Type:        acctType,
		ParentCode:  record[colParent],
		Active:      active,
		Description: record[colDesc],
	}, nil
}
