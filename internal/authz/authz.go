// Package authz is the default authorization collaborator: a stateless
// HS256 JWT bearer-token verifier that resolves a request's organization,
// project, and actor scope (§9 "default authorization collaborator").
// Deployments that front the registry with their own identity provider can
// swap this out for any type implementing Authorizer.
package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gqlregistry/registry-core/internal/pkg/ctxutil"
)

// Claims is the registry's JWT payload: the actor plus the org/project scope
// a request is authorized to operate against.
type Claims struct {
	jwt.RegisteredClaims
	OrgID     string `json:"org_id"`
	ProjectID string `json:"project_id"`
}

// Authorizer resolves a bearer token into request-scoped identity, and can
// mint tokens for service-to-service or test callers.
type Authorizer interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(userID, orgID, projectID uuid.UUID, ttl time.Duration) (string, error)
}

type jwtAuthorizer struct {
	secretKey string
}

// New builds the default JWT Authorizer. secretKey is the HS256 signing key
// (JWT_SECRET_KEY).
func New(secretKey string) Authorizer {
	return &jwtAuthorizer{secretKey: secretKey}
}

func (a *jwtAuthorizer) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("authz: empty token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authz: unexpected signing method %v", token.Header["alg"])
		}
		return []byte(a.secretKey), nil
	})
	if err != nil {
		return ctx, fmt.Errorf("authz: parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return ctx, fmt.Errorf("authz: invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("authz: invalid subject in token: %w", err)
	}
	rd := &ctxutil.RequestData{UserID: userID}
	if claims.OrgID != "" {
		if orgID, err := uuid.Parse(claims.OrgID); err == nil {
			rd.OrgID = orgID
		}
	}
	if claims.ProjectID != "" {
		if projectID, err := uuid.Parse(claims.ProjectID); err == nil {
			rd.ProjectID = projectID
		}
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

func (a *jwtAuthorizer) IssueToken(userID, orgID, projectID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		OrgID:     orgID.String(),
		ProjectID: projectID.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.secretKey))
}
