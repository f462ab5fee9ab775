package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/ledger"
	"github.com/trezcool/sajili/core/user"
)

const contextUserKey = "user"

type Claims struct {
	jwt.StandardClaims

	// OrigIssuedAt caps how long a token chain can be refreshed.
	OrigIssuedAt int64    `json:"orig_iat"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	IsStudent    bool     `json:"is_student"`
	IsTeacher    bool     `json:"is_teacher"`
	IsAdmin      bool     `json:"is_admin"`
	Roles        []string `json:"roles"`
}

type jwtAuth struct {
	conf    *core.Config
	jwtConf middleware.JWTConfig
	userSvc *user.Service
}

func newJWTAuth(conf *core.Config, userSvc *user.Service) *jwtAuth {
	return &jwtAuth{
		conf: conf,
		jwtConf: middleware.JWTConfig{
			Claims:     &Claims{},
			SigningKey: []byte(conf.SecretKey),
			ContextKey: "userToken",
		},
		userSvc: userSvc,
	}
}

// GenerateToken returns a signed token for usr; origIat chains the
// original issue time through refreshes, 0 starts a new chain.
func (auth *jwtAuth) GenerateToken(usr user.User, origIat int64) (string, error) {
	now := time.Now()
	if origIat == 0 {
		origIat = now.Unix()
	}
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.Itoa(usr.ID),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(auth.conf.Server.JWTExpirationDelta).Unix(),
		},
		OrigIssuedAt: origIat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsStudent:    usr.IsStudent(),
		IsTeacher:    usr.IsTeacher(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(auth.jwtConf.SigningKey.([]byte))
}

// Authenticate checks the credentials and refreshes the last login.
func (auth *jwtAuth) Authenticate(ctx echo.Context, uname, pwd string) (user.User, error) {
	usr, err := auth.userSvc.GetByUsernameOrEmail(ctx.Request().Context(), uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	if usr, err = auth.userSvc.SetLastLogin(ctx.Request().Context(), usr); err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return usr, nil
}

// RefreshToken issues a fresh token for the bearer of a valid one, as
// long as the original issue time has not aged past the refresh window.
func (auth *jwtAuth) RefreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	refreshExp := time.Unix(claims.OrigIssuedAt, 0).Add(auth.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(refreshExp) {
		return "", errRefreshExpired
	}
	usr, err := auth.contextUser(ctx, claims)
	if err != nil {
		return "", err
	}
	if !usr.IsActive {
		return "", errAccountDeactivated
	}
	return auth.GenerateToken(usr, claims.OrigIssuedAt)
}

// contextUser loads the authenticated user, caching it on the request
// context.
func (auth *jwtAuth) contextUser(ctx echo.Context, claims *Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	uid, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return user.User{}, errUnauthorized
	}
	usr, err := auth.userSvc.GetByID(ctx.Request().Context(), uid)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, err
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if token, ok := ctx.Get("userToken").(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return claims, nil
		}
	}
	return nil, errUnauthorized
}

// actorFromContext attributes the request to the authenticated user;
// zero for anonymous requests.
func actorFromContext(ctx echo.Context) ledger.Actor {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return ledger.Actor{}
	}
	uid, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return ledger.Actor{}
	}
	return ledger.Actor{UserID: uid}
}
