package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/sajili/core"
	"github.com/trezcool/sajili/core/user"
)

type userAPI struct {
	auth     *jwtAuth
	svc      *user.Service
	validate user.Validator
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *jwtAuth, svc *user.Service, validate user.Validator) {
	api := userAPI{auth: auth, svc: svc, validate: validate}

	ug := g.Group("/users")
	ug.POST("/login", api.login)
	ug.POST("/token-refresh", api.tokenRefresh, jwt)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}
)

func (lr *LoginRequest) Validate(validate user.Validator) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (api *userAPI) login(ctx echo.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := req.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.auth.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}
	token, err := api.auth.GenerateToken(usr, 0)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *userAPI) tokenRefresh(ctx echo.Context) error {
	token, err := api.auth.RefreshToken(ctx)
	if err != nil {
		return err
	}
	return respond(ctx, http.StatusOK, echo.Map{"token": token})
}
