package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agroadvisor/community/middleware"
	"github.com/agroadvisor/community/repository"
	"github.com/agroadvisor/community/services"
	"github.com/agroadvisor/community/utils"
)

// UserController handles local account registration and bearer token lifecycle.
type UserController struct {
	users *services.UserService
}

// NewUserController creates a new UserController instance.
func NewUserController(users *services.UserService) *UserController {
	return &UserController{users: users}
}

type credentials struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// Register creates an account and returns a token for it.
func (u *UserController) Register(ctx *gin.Context) {
	var req credentials
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "username (3-64 characters) and password (6-72 characters) are required")
		return
	}

	session, err := u.users.Register(ctx.Request.Context(), req.Username, req.Password)
	var verr *services.ValidationError
	switch {
	case err == nil:
		ctx.JSON(http.StatusCreated, session)
	case errors.As(err, &verr):
		utils.Error(ctx, http.StatusBadRequest, 40002, verr.Message)
	case errors.Is(err, repository.ErrUsernameTaken):
		utils.Error(ctx, http.StatusConflict, 40901, "Username already exists")
	default:
		utils.Logger.Error("register failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50001, utils.GenericErrorMessage)
	}
}

// Login exchanges credentials for a token.
func (u *UserController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	session, err := u.users.Login(ctx.Request.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, session)
	case errors.Is(err, services.ErrInvalidCredentials):
		utils.Error(ctx, http.StatusUnauthorized, 40106, "Invalid username or password")
	default:
		utils.Logger.Error("login failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50004, utils.GenericErrorMessage)
	}
}

// Logout revokes the bearer token used for this request until it expires.
func (u *UserController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, _ := ctx.Get(middleware.ContextClaimsKey)
	parsed, _ := claims.(*utils.Claims)

	if err := u.users.Logout(ctx.Request.Context(), token, parsed); err != nil {
		utils.Logger.Error("logout failed", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50005, utils.GenericErrorMessage)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
