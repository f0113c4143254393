package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-reservation/internal/model"
	"github.com/iliyamo/trip-reservation/internal/service"
	"github.com/iliyamo/trip-reservation/internal/utils"
)

// Identity is the account service as seen by the HTTP layer.
type Identity interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.User, error)
	Activate(ctx context.Context, code string) (*model.User, error)
	Login(ctx context.Context, in service.LoginInput) (*service.Session, error)
	Refresh(ctx context.Context, raw string) (*service.Session, error)
	Logout(ctx context.Context, userID uint64, raw string) error
	Me(ctx context.Context, userID uint64) (*model.User, error)
	Users(ctx context.Context) ([]model.User, error)
}

var _ Identity = (*service.AuthService)(nil)

// AuthHandler serves the /v1/auth routes plus /v1/me and /v1/users.
type AuthHandler struct {
	Auth      Identity
	JWTSecret string
}

// NewAuthHandler creates an AuthHandler. jwtSecret is used by Logout to
// read an optional bearer token.
func NewAuthHandler(a Identity, jwtSecret string) *AuthHandler {
	return &AuthHandler{Auth: a, JWTSecret: jwtSecret}
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
	Info    string     `json:"info,omitempty"`
}

func sessionResp(s *service.Session) authResp {
	return authResp{
		User:    s.User,
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp},
		Info:    s.Message,
	}
}

// Register creates an inactive account; the activation link is mailed.
func (h *AuthHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.Auth.Register(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user":    u,
		"message": "account created, check your e-mail to activate it",
	})
}

// Activate handles GET /v1/auth/activate/:code.
func (h *AuthHandler) Activate(c echo.Context) error {
	u, err := h.Auth.Activate(c.Request().Context(), c.Param("code"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u, "message": "account activated"})
}

// Login handles POST /v1/auth/login and returns a token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var in service.LoginInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	s, err := h.Auth.Login(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Refresh rotates the refresh token and returns a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	s, err := h.Auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Logout revokes the refresh token in the body, or every session of the
// bearer when the body has none. It runs without JWTAuth so an expired
// access token does not prevent logging out.
func (h *AuthHandler) Logout(c echo.Context) error {
	var uid uint64
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		if claims, err := utils.ParseAccessToken(h.JWTSecret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
			uid, _ = claims.UserID()
		}
	}
	var req refreshReq
	_ = c.Bind(&req)
	if err := h.Auth.Logout(c.Request().Context(), uid, req.RefreshToken); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Auth.Me(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Users lists every account without credentials.
func (h *AuthHandler) Users(c echo.Context) error {
	out, err := h.Auth.Users(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
