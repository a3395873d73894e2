package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/family-chat/internal/server/middleware"
	"github.com/nguyentranbao-ct/family-chat/internal/usecase"
)

type ChatController interface {
	ListChats(c echo.Context) error
	CreateDM(c echo.Context) error
	CreateGroup(c echo.Context) error
	GetChat(c echo.Context) error
	ClearChat(c echo.Context) error
}

type chatRequest struct {
	ChatID string `param:"id" validate:"required,objectid"`
}

func (h *controller) ListChats(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req PageQuery
	if err := bind(c, &req); err != nil {
		return err
	}

	page, err := h.chatUsecase.ListUserChats(c.Request().Context(), user.ID, req.params())
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, http.StatusOK, page)
}

type createDMRequest struct {
	UserID string `json:"user_id" validate:"required,objectid"`
}

func (h *controller) CreateDM(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req createDMRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	peerID, err := models.ParseObjectID(req.UserID, "user")
	if err != nil {
		return err
	}

	chat, isNew, err := h.chatUsecase.CreateDM(c.Request().Context(), user.ID, peerID)
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, createdStatus(isNew), chat)
}

type createGroupRequest struct {
	Title     string   `json:"title" validate:"required,max=200"`
	MemberIDs []string `json:"member_ids" validate:"max=100,dive,objectid"`
}

func (h *controller) CreateGroup(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req createGroupRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	memberIDs, err := parseIDs(req.MemberIDs, "member")
	if err != nil {
		return err
	}

	chat, err := h.chatUsecase.CreateGroup(c.Request().Context(), usecase.CreateGroupParams{
		CreatorID: user.ID,
		Title:     req.Title,
		MemberIDs: memberIDs,
	})
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, http.StatusCreated, chat)
}

func (h *controller) GetChat(c echo.Context) error {
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

	chat, err := h.chatUsecase.GetChat(c.Request().Context(), chatID, user.ID)
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, http.StatusOK, chat)
}

func (h *controller) ClearChat(c echo.Context) error {
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

	if err := h.chatUsecase.ClearChat(c.Request().Context(), chatID, user.ID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
