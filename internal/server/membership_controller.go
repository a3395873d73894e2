package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/family-chat/internal/server/middleware"
)

type MembershipController interface {
	ListMembers(c echo.Context) error
	AddMembers(c echo.Context) error
	RemoveMember(c echo.Context) error
	UpdateReadCursor(c echo.Context) error
}

func (h *controller) ListMembers(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req chatRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chatID, err := models.ParseObjectID(req.ChatID, "chat")
	if err != nil {
		return err
	}

	members, err := h.membershipUsecase.ListMembers(c.Request().Context(), chatID, user.ID)
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, http.StatusOK, members)
}

type addMembersRequest struct {
	ChatID  string   `param:"id" validate:"required,objectid"`
	UserIDs []string `json:"user_ids" validate:"required,min=1,max=100,dive,objectid"`
}

func (h *controller) AddMembers(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req addMembersRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chatID, err := models.ParseObjectID(req.ChatID, "chat")
	if err != nil {
		return err
	}
	userIDs, err := parseIDs(req.UserIDs, "user")
	if err != nil {
		return err
	}

	added, err := h.membershipUsecase.AddMembers(c.Request().Context(), chatID, user.ID, userIDs)
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, http.StatusCreated, added)
}

type removeMemberRequest struct {
	ChatID string `param:"id" validate:"required,objectid"`
	UserID string `param:"user_id" validate:"required,objectid"`
}

func (h *controller) RemoveMember(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req removeMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chatID, err := models.ParseObjectID(req.ChatID, "chat")
	if err != nil {
		return err
	}
	targetID, err := models.ParseObjectID(req.UserID, "user")
	if err != nil {
		return err
	}

	if err := h.membershipUsecase.RemoveMember(c.Request().Context(), chatID, user.ID, targetID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

type readCursorRequest struct {
	ChatID    string `param:"id" validate:"required,objectid"`
	MessageID string `json:"message_id" validate:"required,objectid"`
}

func (h *controller) UpdateReadCursor(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req readCursorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chatID, err := models.ParseObjectID(req.ChatID, "chat")
	if err != nil {
		return err
	}
	messageID, err := models.ParseObjectID(req.MessageID, "message")
	if err != nil {
		return err
	}

	advanced, err := h.membershipUsecase.UpdateReadCursor(c.Request().Context(), chatID, user.ID, messageID)
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, http.StatusOK, map[string]bool{"updated": advanced})
}
