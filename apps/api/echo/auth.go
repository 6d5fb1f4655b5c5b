package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/jifunze/core/account"
	"github.com/trezcool/jifunze/core/progress"
	"github.com/trezcool/jifunze/core/session"
)

const (
	contextClaimsKey = "claims"
	bearerScheme     = "Bearer"
)

// verifierMiddleware authenticates the request with its bearer token and stores the claims in the context.
func verifierMiddleware(sessions *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) || strings.TrimSpace(parts[1]) == "" {
				return errHttpNoToken
			}

			claims, err := sessions.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				return err
			}
			ctx.Set(contextClaimsKey, claims)
			return next(ctx)
		}
	}
}

// roleMiddleware only lets principals with one of the roles through. It must run after verifierMiddleware.
func roleMiddleware(roles ...account.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func getContextClaims(ctx echo.Context) (*session.Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*session.Claims); ok {
		return claims, nil
	}
	return nil, errHttpNoToken
}

func contextViewer(ctx echo.Context) (progress.Viewer, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return progress.Viewer{}, err
	}
	return progress.Viewer{ID: claims.ID, Role: claims.Role}, nil
}

// tokenIdentity reports the token bearer to the logger.
type tokenIdentity struct {
	claims *session.Claims
}

func (ti tokenIdentity) LogID() string    { return string(ti.claims.Role) + ":" + strconv.Itoa(ti.claims.ID) }
func (ti tokenIdentity) LogName() string  { return "" }
func (ti tokenIdentity) LogEmail() string { return ti.claims.Email }
