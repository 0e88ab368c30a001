package accounts

import (
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/coopbooks/coopbooks/internal/ledgererr"
	"github.com/coopbooks/coopbooks/internal/model"
)

// Registry is the chart of accounts: an arena of accounts keyed by code,
// with parent links held as codes. It is not safe for concurrent use; the
// ledger serializes access.
type Registry struct {
	byCode   map[string]*model.Account
	children map[string][]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byCode:   make(map[string]*model.Account),
		children: make(map[string][]string),
	}
}

// NewRegistryFrom creates a Registry holding accts. Accounts are added in
// parent-first order, so the slice may be in any order.
func NewRegistryFrom(accts []model.Account) (*Registry, error) {
	r := NewRegistry()
	pending := slices.Clone(accts)
	for len(pending) > 0 {
		var next []model.Account
		for _, a := range pending {
			if a.ParentCode != "" && !r.Exists(a.ParentCode) && containsCode(pending, a.ParentCode) {
				next = append(next, a)
				continue
			}
			if err := r.validate(a, false); err != nil {
				return nil, err
			}
			r.Put(a)
		}
		if len(next) == len(pending) {
			return nil, ledgererr.New(ledgererr.InvalidParent, "cyclic parent references starting at %q", next[0].Code)
		}
		pending = next
	}
	return r, nil
}

func containsCode(accts []model.Account, code string) bool {
	for _, a := range accts {
		if a.Code == code {
			return true
		}
	}
	return false
}

// New builds and validates a new active account without adding it.
func (r *Registry) New(code, name string, t model.AccountType, parentCode string) (model.Account, error) {
	acct := model.Account{
		ID:         uuid.New(),
		Code:       strings.TrimSpace(code),
		Name:       strings.TrimSpace(name),
		Type:       t,
		ParentCode: strings.TrimSpace(parentCode),
		Active:     true,
	}
	if err := r.validate(acct, true); err != nil {
		return model.Account{}, err
	}
	return acct, nil
}

// Create builds, validates and adds a new account.
func (r *Registry) Create(code, name string, t model.AccountType, parentCode string) (model.Account, error) {
	acct, err := r.New(code, name, t, parentCode)
	if err != nil {
		return model.Account{}, err
	}
	r.Put(acct)
	return acct, nil
}

func (r *Registry) validate(acct model.Account, requireActiveParent bool) error {
	if acct.Code == "" {
		return ledgererr.New(ledgererr.InvalidAccount, "account code is required")
	}
	if acct.Name == "" {
		return ledgererr.New(ledgererr.InvalidAccount, "account %s: name is required", acct.Code)
	}
	if !acct.Type.Valid() {
		return ledgererr.New(ledgererr.InvalidAccount, "account %s: unknown type %q", acct.Code, acct.Type)
	}
	if _, ok := r.byCode[acct.Code]; ok {
		return ledgererr.New(ledgererr.DuplicateCode, "account code %s already exists", acct.Code)
	}
	if acct.ParentCode == "" {
		return nil
	}
	parent, ok := r.byCode[acct.ParentCode]
	switch {
	case !ok:
		return ledgererr.New(ledgererr.InvalidParent, "parent %s does not exist", acct.ParentCode)
	case requireActiveParent && !parent.Active:
		return ledgererr.New(ledgererr.InvalidParent, "parent %s is inactive", acct.ParentCode)
	case parent.Type != acct.Type:
		return ledgererr.New(ledgererr.InvalidParent, "parent %s is %s, account %s is %s", parent.Code, parent.Type, acct.Code, acct.Type)
	}
	return nil
}

// Put inserts or replaces an account. Callers validate first.
func (r *Registry) Put(acct model.Account) {
	if _, existed := r.byCode[acct.Code]; !existed && acct.ParentCode != "" {
		r.children[acct.ParentCode] = append(r.children[acct.ParentCode], acct.Code)
	}
	a := acct
	r.byCode[acct.Code] = &a
}

// Get returns an account by code.
func (r *Registry) Get(code string) (model.Account, bool) {
	a, ok := r.byCode[code]
	if !ok {
		return model.Account{}, false
	}
	return *a, true
}

// Exists reports whether an account code exists.
func (r *Registry) Exists(code string) bool {
	_, ok := r.byCode[code]
	return ok
}

// Len returns the number of accounts.
func (r *Registry) Len() int {
	return len(r.byCode)
}

// All returns all accounts ordered by code.
func (r *Registry) All() []model.Account {
	result := make([]model.Account, 0, len(r.byCode))
	for _, a := range r.byCode {
		result = append(result, *a)
	}
	slices.SortFunc(result, func(a, b model.Account) int { return strings.Compare(a.Code, b.Code) })
	return result
}

// ByType returns all accounts of the given type ordered by code.
func (r *Registry) ByType(accountType model.AccountType) []model.Account {
	var result []model.Account
	for _, a := range r.All() {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result
}

// Children returns the direct children of code ordered by code.
func (r *Registry) Children(code string) []model.Account {
	codes := slices.Clone(r.children[code])
	slices.Sort(codes)
	result := make([]model.Account, 0, len(codes))
	for _, c := range codes {
		result = append(result, *r.byCode[c])
	}
	return result
}

// Descendants returns code and every account below it.
func (r *Registry) Descendants(code string) []string {
	if !r.Exists(code) {
		return nil
	}
	out := []string{code}
	for i := 0; i < len(out); i++ {
		out = append(out, r.children[out[i]]...)
	}
	return out
}

// Deactivate returns a deactivated copy of the account. It refuses when an
// active child still hangs off it; usage by postings is checked by the ledger.
func (r *Registry) Deactivate(code string) (model.Account, error) {
	acct, ok := r.Get(code)
	if !ok {
		return model.Account{}, ledgererr.New(ledgererr.UnknownAccount, "account %s does not exist", code)
	}
	for _, child := range r.Children(code) {
		if child.Active {
			return model.Account{}, ledgererr.New(ledgererr.AccountInUse, "account %s has active child %s", code, child.Code)
		}
	}
	acct.Active = false
	return acct, nil
}

// Reactivate returns a reactivated copy of the account. The parent must be active.
func (r *Registry) Reactivate(code string) (model.Account, error) {
	acct, ok := r.Get(code)
	if !ok {
		return model.Account{}, ledgererr.New(ledgererr.UnknownAccount, "account %s does not exist", code)
	}
	if acct.ParentCode != "" {
		if parent, _ := r.Get(acct.ParentCode); !parent.Active {
			return model.Account{}, ledgererr.New(ledgererr.InvalidParent, "parent %s is inactive", acct.ParentCode)
		}
	}
	acct.Active = true
	return acct, nil
}

// Retype returns a copy of the account with a new type. The ledger refuses
// once the account has postings.
func (r *Registry) Retype(code string, t model.AccountType) (model.Account, error) {
	acct, ok := r.Get(code)
	if !ok {
		return model.Account{}, ledgererr.New(ledgererr.UnknownAccount, "account %s does not exist", code)
	}
	if !t.Valid() {
		return model.Account{}, ledgererr.New(ledgererr.InvalidAccount, "unknown type %q", t)
	}
	if acct.ParentCode != "" {
		if parent, _ := r.Get(acct.ParentCode); parent.Type != t {
			return model.Account{}, ledgererr.New(ledgererr.InvalidParent, "parent %s is %s", parent.Code, parent.Type)
		}
	}
	if len(r.children[code]) > 0 {
		return model.Account{}, ledgererr.New(ledgererr.AccountInUse, "account %s has children", code)
	}
	acct.Type = t
	return acct, nil
}
