package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/mainino/core"
	"github.com/trezcool/mainino/core/people"
)

const contextTokenKey = "callerToken"

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	IsParent     bool   `json:"is_parent,omitempty"`  // -> PARENT PORTAL
	IsStudent    bool   `json:"is_student,omitempty"` // -> STUDENT PORTAL
	IsAdmin      bool   `json:"is_admin,omitempty"`   // -> ADMIN PORTAL
}

// Caller maps the claims back to the service-level identity.
func (c Claims) Caller() people.Caller {
	role := people.RoleParent
	if c.IsStudent {
		role = people.RoleStudent
	}
	return people.Caller{ID: c.Subject, Role: role}
}

func newStandardClaims(subject string, conf *core.Config, origIat []int64) (jwt.StandardClaims, int64) {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return jwt.StandardClaims{
		Issuer:    conf.AppName,
		Subject:   subject,
		Audience:  "Mainino",
		ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
		IssuedAt:  nownix,
	}, oriat
}

func GetParentClaims(p people.Parent, conf *core.Config, origIat ...int64) *Claims {
	std, oriat := newStandardClaims(p.ID, conf, origIat)
	return &Claims{
		StandardClaims: std,
		OrigIssuedAt:   oriat,
		Username:       p.Username,
		Email:          p.Email,
		IsParent:       true,
		IsAdmin:        p.Staff,
	}
}

func GetStudentClaims(s people.Student, conf *core.Config, origIat ...int64) *Claims {
	std, oriat := newStandardClaims(s.ID, conf, origIat)
	return &Claims{
		StandardClaims: std,
		OrigIssuedAt:   oriat,
		Username:       s.Username,
		Email:          s.Email,
		IsStudent:      true,
	}
}

// authenticate checks the credentials against parent accounts first, then
// student accounts; usernames are unique within each table.
func authenticate(ctx context.Context, uname, pwd string, svc *people.Service, conf *core.Config) (*Claims, error) {
	p, err := svc.GetParentByUsernameOrEmail(ctx, uname)
	if err == nil {
		if err = p.CheckPassword(pwd); err != nil {
			return nil, errAuthenticationFailed
		}
		if !p.IsActive {
			return nil, errAccountDeactivated
		}
		if p, err = svc.SetParentLastLogin(ctx, p); err != nil {
			return nil, errors.Wrap(err, "setting lastLogin")
		}
		return GetParentClaims(p, conf), nil
	}
	if errors.Cause(err) != people.ErrNotFound {
		return nil, errors.Wrap(err, "finding parent by username or email")
	}

	s, err := svc.GetStudentByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == people.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "finding student by username or email")
	}
	if err = s.CheckPassword(pwd); err != nil {
		return nil, errAuthenticationFailed
	}
	if !s.IsActive {
		return nil, errAccountDeactivated
	}
	if s, err = svc.SetStudentLastLogin(ctx, s); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetStudentClaims(s, conf), nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, conf *core.Config) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func refreshToken(ctx echo.Context, svc *people.Service, conf *core.Config) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	reqCtx := ctx.Request().Context()
	var newClaims *Claims
	if claims.IsStudent {
		s, err := svc.GetStudentByID(reqCtx, claims.Subject)
		if err != nil {
			return "", errors.Wrap(err, "finding student by ID")
		}
		if !s.IsActive {
			return "", errAccountDeactivated
		}
		newClaims = GetStudentClaims(s, conf, claims.OrigIssuedAt)
	} else {
		p, err := svc.GetParentByID(reqCtx, claims.Subject)
		if err != nil {
			return "", errors.Wrap(err, "finding parent by ID")
		}
		if !p.IsActive {
			return "", errAccountDeactivated
		}
		newClaims = GetParentClaims(p, conf, claims.OrigIssuedAt)
	}

	token, err := GenerateToken(newClaims, conf)
	return token, errors.Wrap(err, "generating token")
}
