package handler

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/Match-Score-project/Match-Score/internal/dto"
	"github.com/Match-Score-project/Match-Score/internal/identity"
)

func (h *Handler) SearchUsers(c *ginext.Context) {
	res, err := h.svc.Friends.Search(c.Request.Context(), identity.UserID(c), c.Query("q"))
	if err != nil {
		h.fail(c, err, "search users")
		return
	}
	dto.SuccessResponse(c, res)
}

func (h *Handler) ListFriends(c *ginext.Context) {
	rows, err := h.svc.Friends.List(c.Request.Context(), identity.UserID(c))
	if err != nil {
		h.fail(c, err, "list friends")
		return
	}
	dto.SuccessResponse(c, rows)
}

func (h *Handler) FriendRequests(c *ginext.Context) {
	rows, err := h.svc.Friends.Requests(c.Request.Context(), identity.UserID(c))
	if err != nil {
		h.fail(c, err, "friend requests")
		return
	}
	dto.SuccessResponse(c, rows)
}

func (h *Handler) OnlineFriends(c *ginext.Context) {
	rows, err := h.svc.Friends.Online(c.Request.Context(), identity.UserID(c))
	if err != nil {
		h.fail(c, err, "online friends")
		return
	}
	dto.SuccessResponse(c, rows)
}

func (h *Handler) SendFriendRequest(c *ginext.Context) {
	if err := h.svc.Friends.SendRequest(c.Request.Context(), identity.UserID(c), c.Param("uid")); err != nil {
		h.fail(c, err, "send friend request")
		return
	}
	dto.SuccessCreatedResponse(c, nil)
}

func (h *Handler) AcceptFriend(c *ginext.Context) {
	if err := h.svc.Friends.Accept(c.Request.Context(), identity.UserID(c), c.Param("uid")); err != nil {
		h.fail(c, err, "accept friend")
		return
	}
	dto.SuccessResponse(c, nil)
}

func (h *Handler) DeclineFriend(c *ginext.Context) {
	if err := h.svc.Friends.Decline(c.Request.Context(), identity.UserID(c), c.Param("uid")); err != nil {
		h.fail(c, err, "decline friend")
		return
	}
	dto.SuccessResponse(c, nil)
}

func (h *Handler) RemoveFriend(c *ginext.Context) {
	if err := h.svc.Friends.Remove(c.Request.Context(), identity.UserID(c), c.Param("uid")); err != nil {
		h.fail(c, err, "remove friend")
		return
	}
	dto.SuccessResponse(c, nil)
}

func (h *Handler) ListNotifications(c *ginext.Context) {
	l, err := h.svc.Notifications.List(c.Request.Context(), identity.UserID(c))
	if err != nil {
		h.fail(c, err, "list notifications")
		return
	}
	dto.SuccessResponse(c, l)
}

func (h *Handler) MarkNotificationsRead(c *ginext.Context) {
	var req dto.MarkReadRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.Notifications.MarkRead(c.Request.Context(), identity.UserID(c), req.IDs); err != nil {
		h.fail(c, err, "mark notifications read")
		return
	}
	dto.SuccessResponse(c, nil)
}

func (h *Handler) DeleteNotification(c *ginext.Context) {
	if err := h.svc.Notifications.Delete(c.Request.Context(), identity.UserID(c), c.Param("id")); err != nil {
		h.fail(c, err, "delete notification")
		return
	}
	dto.SuccessResponse(c, nil)
}
