package handler

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/Match-Score-project/Match-Score/internal/dto"
	"github.com/Match-Score-project/Match-Score/internal/identity"
	"github.com/Match-Score-project/Match-Score/internal/service"
)

func (h *Handler) Me(c *ginext.Context) {
	p, err := h.svc.Profiles.Get(c.Request.Context(), identity.UserID(c))
	if err != nil {
		h.fail(c, err, "get profile")
		return
	}
	dto.SuccessResponse(c, p)
}

func (h *Handler) UpdateMe(c *ginext.Context) {
	var req dto.ProfileRequest
	if !h.bind(c, &req) {
		return
	}
	p, err := h.svc.Profiles.Update(c.Request.Context(), identity.UserID(c), service.ProfileInput{
		Name:      req.Name,
		Phone:     req.Phone,
		BirthDate: req.BirthDate,
		Position:  req.Position,
	})
	if err != nil {
		h.fail(c, err, "update profile")
		return
	}
	dto.SuccessResponse(c, p)
}

func (h *Handler) SetTheme(c *ginext.Context) {
	var req dto.ThemeRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.Profiles.SetTheme(c.Request.Context(), identity.UserID(c), req.Theme); err != nil {
		h.fail(c, err, "set theme")
		return
	}
	dto.SuccessResponse(c, req)
}

func (h *Handler) SetPhoto(c *ginext.Context) {
	var req dto.PhotoRequest
	if !h.bind(c, &req) {
		return
	}
	url, err := h.svc.Profiles.SetPhoto(c.Request.Context(), identity.UserID(c), req.Photo)
	if err != nil {
		h.fail(c, err, "set photo")
		return
	}
	dto.SuccessResponse(c, dto.PhotoResponse{PhotoURL: url})
}

// Upload hands out a presigned URL for a direct image upload.
func (h *Handler) Upload(c *ginext.Context) {
	var req dto.UploadRequest
	if !h.bind(c, &req) {
		return
	}
	up, err := h.svc.Profiles.Upload(c.Request.Context(), identity.UserID(c), req.ContentType)
	if err != nil {
		h.fail(c, err, "presign upload")
		return
	}
	dto.SuccessCreatedResponse(c, dto.UploadResponse{UploadURL: up.UploadURL, Key: up.Key, URL: up.URL})
}

func (h *Handler) Dashboard(c *ginext.Context) {
	d, err := h.svc.Dashboard.Load(c.Request.Context(), identity.UserID(c))
	if err != nil {
		h.fail(c, err, "dashboard")
		return
	}
	dto.SuccessResponse(c, d)
}
