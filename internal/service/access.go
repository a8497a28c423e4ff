package service

import (
	"context"
	"strings"

	"waterdash/internal/dataset"
	"waterdash/internal/model"
)

// AccessService applies row-level country scoping to KPI datasets.
type AccessService struct {
	audit *AuditService
}

func NewAccessService(audit *AuditService) *AccessService {
	return &AccessService{audit: audit}
}

// Scope restricts a dataset to the user's assigned country. Master users
// see every row. A dataset without the country column passes through
// unfiltered, but the gap is recorded so it cannot stay invisible.
func (s *AccessService) Scope(ctx context.Context, u model.User, name string, ds dataset.Dataset, countryColumn string) dataset.Dataset {
	if u.Unscoped() {
		return ds
	}
	if ds.ColumnIndex(countryColumn) < 0 {
		s.audit.Record(ctx, model.AuditScopeGap, model.OutcomeError, u.ID, name,
			map[string]string{"column": countryColumn})
		return ds
	}
	return ds.FilterEqualFold(countryColumn, u.AssignedCountry)
}

// CountryAll is the selection value that widens an unscoped user's view
// to every country.
const CountryAll = "All"

// ValidateSelection resolves a requested country against what the user
// may see. Scoped users always get their own country back, whatever was
// requested. Unscoped users keep the request as-is, including CountryAll
// and values outside the configured list; a known country is returned in
// its canonical casing, and an empty request defaults to CountryAll.
func ValidateSelection(u model.User, requested string, available []string) string {
	if !u.Unscoped() {
		return u.AssignedCountry
	}
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return CountryAll
	}
	for _, c := range available {
		if strings.EqualFold(c, requested) {
			return c
		}
	}
	return requested
}

// AccessibleCountries filters the country list down to what the user may
// select.
func AccessibleCountries(u model.User, all []string) []string {
	if u.Unscoped() {
		return all
	}
	for _, c := range all {
		if strings.EqualFold(c, u.AssignedCountry) {
			return []string{c}
		}
	}
	return []string{}
}
