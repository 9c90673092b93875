package handler

import (
	"time"

	"github.com/wb-go/wbf/ginext"

	"github.com/Match-Score-project/Match-Score/internal/dto"
	"github.com/Match-Score-project/Match-Score/internal/identity"
	"github.com/Match-Score-project/Match-Score/internal/model"
	"github.com/Match-Score-project/Match-Score/internal/service"
	"github.com/Match-Score-project/Match-Score/internal/view"
)

func matchInput(req dto.MatchRequest) service.MatchInput {
	return service.MatchInput{
		Name:       req.Name,
		Date:       req.Date,
		Time:       req.Time,
		Location:   req.Location,
		Sport:      model.Sport(req.Sport),
		Kind:       req.Kind,
		TotalSlots: req.TotalSlots,
		Image:      req.Image,
	}
}

// ListMatches filters by query parameters, falling back to the remembered
// filter cookies when a parameter is absent.
func (h *Handler) ListMatches(c *ginext.Context) {
	f := service.Filter{Date: c.Query("date")}
	if f.Date != "" {
		if _, err := time.Parse(model.DateLayout, f.Date); err != nil {
			dto.FieldIncorrectError(c, "date")
			return
		}
	}
	var ok bool
	if f.Location, ok = c.GetQuery("location"); !ok {
		f.Location = readCookie(c, FilterLocationCookie)
	}
	if f.Kind, ok = c.GetQuery("kind"); !ok {
		f.Kind = readCookie(c, FilterKindCookie)
	}

	list, err := h.svc.Matches.List(c.Request.Context(), identity.UserID(c), f)
	if err != nil {
		h.fail(c, err, "list matches")
		return
	}
	dto.SuccessResponse(c, list)
}

func (h *Handler) CreateMatch(c *ginext.Context) {
	var req dto.MatchRequest
	if !h.bind(c, &req) {
		return
	}
	m, err := h.svc.Matches.Create(c.Request.Context(), identity.UserID(c), matchInput(req))
	if err != nil {
		h.fail(c, err, "create match")
		return
	}
	h.log.Info().Str("match_id", m.ID).Msg("match created successfully")
	dto.SuccessCreatedResponse(c, view.NewMatchCard(*m, nil))
}

func (h *Handler) UpdateMatch(c *ginext.Context) {
	var req dto.MatchRequest
	if !h.bind(c, &req) {
		return
	}
	m, err := h.svc.Matches.Update(c.Request.Context(), identity.UserID(c), c.Param("id"), matchInput(req))
	if err != nil {
		h.fail(c, err, "update match")
		return
	}
	dto.SuccessResponse(c, view.NewMatchCard(*m, nil))
}

func (h *Handler) DeleteMatch(c *ginext.Context) {
	if err := h.svc.Matches.Delete(c.Request.Context(), identity.UserID(c), c.Param("id")); err != nil {
		h.fail(c, err, "delete match")
		return
	}
	dto.SuccessResponse(c, nil)
}

func (h *Handler) MatchDetails(c *ginext.Context) {
	d, err := h.svc.Matches.Details(c.Request.Context(), identity.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "match details")
		return
	}
	dto.SuccessResponse(c, d)
}

func (h *Handler) MyMatches(c *ginext.Context) {
	cards, err := h.svc.Matches.Mine(c.Request.Context(), identity.UserID(c))
	if err != nil {
		h.fail(c, err, "my matches")
		return
	}
	dto.SuccessResponse(c, cards)
}

func (h *Handler) RegisteredMatches(c *ginext.Context) {
	regs, err := h.svc.Registrations.RegisteredMatches(c.Request.Context(), identity.UserID(c))
	if err != nil {
		h.fail(c, err, "registered matches")
		return
	}
	dto.SuccessResponse(c, regs)
}

func (h *Handler) RegistrationForm(c *ginext.Context) {
	edit := c.Query("edit") == "true"
	form, err := h.svc.Registrations.Form(c.Request.Context(), identity.UserID(c), c.Param("id"), edit)
	if err != nil {
		h.fail(c, err, "registration form")
		return
	}
	dto.SuccessResponse(c, form)
}

// Register stores the registration. A new registration also leaves the flash marker.
func (h *Handler) Register(c *ginext.Context) {
	var req dto.RegistrationRequest
	if !h.bind(c, &req) {
		return
	}
	reg, matchName, err := h.svc.Registrations.Register(c.Request.Context(), service.Submission{
		UserID:   identity.UserID(c),
		MatchID:  c.Param("id"),
		Edit:     req.Edit,
		Name:     req.Name,
		Nickname: req.Nickname,
		Position: req.Position,
	})
	if err != nil {
		h.fail(c, err, "register")
		return
	}
	resp := dto.RegistrationResponse{
		MatchID:   c.Param("id"),
		MatchName: matchName,
		Name:      reg.Name,
		Nickname:  reg.Nickname,
		Position:  reg.Position,
	}
	if req.Edit {
		dto.SuccessResponse(c, resp)
		return
	}
	h.setFlash(c, matchName)
	dto.SuccessCreatedResponse(c, resp)
}

func (h *Handler) CancelRegistration(c *ginext.Context) {
	if err := h.svc.Registrations.Cancel(c.Request.Context(), identity.UserID(c), c.Param("id")); err != nil {
		h.fail(c, err, "cancel registration")
		return
	}
	dto.SuccessResponse(c, nil)
}

func (h *Handler) RemovePlayer(c *ginext.Context) {
	err := h.svc.Registrations.RemovePlayer(c.Request.Context(), identity.UserID(c), c.Param("id"), c.Param("uid"))
	if err != nil {
		h.fail(c, err, "remove player")
		return
	}
	dto.SuccessResponse(c, nil)
}

func (h *Handler) InviteCandidates(c *ginext.Context) {
	cands, err := h.svc.Notifications.InviteCandidates(c.Request.Context(), identity.UserID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "invite candidates")
		return
	}
	dto.SuccessResponse(c, cands)
}

func (h *Handler) Invite(c *ginext.Context) {
	var req dto.InviteRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.Notifications.Invite(c.Request.Context(), identity.UserID(c), c.Param("id"), req.FriendID); err != nil {
		h.fail(c, err, "invite")
		return
	}
	dto.SuccessCreatedResponse(c, nil)
}
