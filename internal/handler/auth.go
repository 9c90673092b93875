package handler

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/Match-Score-project/Match-Score/internal/dto"
	"github.com/Match-Score-project/Match-Score/internal/identity"
)

// SignUp creates the account and signs the new user in.
func (h *Handler) SignUp(c *ginext.Context) {
	var req dto.SignUpRequest
	if !h.bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	_, err := h.auth.SignUp(ctx, identity.SignUpInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		BirthDate:       req.BirthDate,
		Position:        req.Position,
		Phone:           req.Phone,
		Photo:           req.Photo,
	})
	if err != nil {
		h.fail(c, err, "signup")
		return
	}
	token, uid, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "signup login")
		return
	}
	h.auth.SetSession(c, token)
	dto.SuccessCreatedResponse(c, dto.SessionResponse{UserID: uid})
}

func (h *Handler) Login(c *ginext.Context) {
	var req dto.LoginRequest
	if !h.bind(c, &req) {
		return
	}
	token, uid, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err, "login")
		return
	}
	h.auth.SetSession(c, token)
	dto.SuccessResponse(c, dto.SessionResponse{UserID: uid})
}

func (h *Handler) Logout(c *ginext.Context) {
	h.auth.ClearSession(c)
	dto.SuccessResponse(c, nil)
}

// RequestPasswordReset answers the same way whether or not the account exists.
func (h *Handler) RequestPasswordReset(c *ginext.Context) {
	var req dto.PasswordResetRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.log.Error().Err(err).Msg("failed to send password reset")
	}
	dto.SuccessResponse(c, dto.FlashResponse{
		Message: "Se o e-mail estiver cadastrado, você receberá um link para redefinir a senha.",
	})
}

func (h *Handler) ConfirmPasswordReset(c *ginext.Context) {
	var req dto.PasswordResetConfirmRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		h.fail(c, err, "reset password")
		return
	}
	dto.SuccessResponse(c, dto.FlashResponse{Message: "Senha redefinida com sucesso!"})
}
