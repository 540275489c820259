package auth

import (
	"context"
	"errors"

	"call-insights-platform/internal/company"
)

type ctxKey int

const ctxCompany ctxKey = iota

// WithCompany attaches the authenticated company to the request context.
func WithCompany(ctx context.Context, co company.Company) context.Context {
	return context.WithValue(ctx, ctxCompany, co)
}

// CompanyFrom returns the authenticated company from the context.
func CompanyFrom(ctx context.Context) (company.Company, error) {
	if co, ok := ctx.Value(ctxCompany).(company.Company); ok && co.ID != "" {
		return co, nil
	}
	return company.Company{}, errors.New("company not in context")
}

// CompanyID is a shorthand for handlers that only need the tenant id.
func CompanyID(ctx context.Context) (string, error) {
	co, err := CompanyFrom(ctx)
	if err != nil {
		return "", err
	}
	return co.ID, nil
}
