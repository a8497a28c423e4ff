package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"waterdash/internal/model"
)

// ExportService issues short-lived signed tokens for CSV downloads.
// Download links are fetched outside the authenticated fetch layer, so
// the grant travels in the token: dataset name and the country scope
// frozen at issue time. Sessions themselves stay opaque; these tokens
// carry only an export grant.
type ExportService struct {
	secret []byte
	ttl    time.Duration
	audit  *AuditService
	rbac   *RBACService
	now    func() time.Time
}

type ExportOption func(*ExportService)

func WithExportClock(now func() time.Time) ExportOption {
	return func(s *ExportService) { s.now = now }
}

func NewExportService(secret string, ttl time.Duration, audit *AuditService, rbac *RBACService, opts ...ExportOption) *ExportService {
	s := &ExportService{
		secret: []byte(secret),
		ttl:    ttl,
		audit:  audit,
		rbac:   rbac,
		now:    time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = 5 * time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExportGrant is what a verified export token authorizes. Country is
// empty for unscoped users.
type ExportGrant struct {
	UserID  string
	Dataset string
	Country string
}

// Issue creates an export token for the dataset, scoped to the user's
// country at issue time.
func (s *ExportService) Issue(ctx context.Context, u model.User, datasetName string) (string, time.Time, error) {
	if err := s.rbac.Require(ctx, u, PermExportData); err != nil {
		return "", time.Time{}, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":     u.ID,
		"dataset": datasetName,
		"country": u.AssignedCountry,
		"typ":     "export",
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	s.audit.Record(ctx, model.AuditExportIssued, model.OutcomeOK, u.ID, datasetName,
		map[string]string{"expires_at": expiresAt.Format(time.RFC3339)})
	return signed, expiresAt, nil
}

// Verify checks an export token and returns its grant.
func (s *ExportService) Verify(tokenString string) (ExportGrant, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrPermissionDenied
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !parsed.Valid {
		return ExportGrant{}, model.ErrPermissionDenied
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ExportGrant{}, model.ErrPermissionDenied
	}
	if typ, _ := claims["typ"].(string); typ != "export" {
		return ExportGrant{}, model.ErrPermissionDenied
	}

	grant := ExportGrant{}
	grant.UserID, _ = claims["sub"].(string)
	grant.Dataset, _ = claims["dataset"].(string)
	grant.Country, _ = claims["country"].(string)
	if grant.UserID == "" || grant.Dataset == "" {
		return ExportGrant{}, model.ErrPermissionDenied
	}
	return grant, nil
}
