package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/family-chat/internal/server/middleware"
	"github.com/nguyentranbao-ct/family-chat/internal/usecase"
)

type MessageController interface {
	ListMessages(c echo.Context) error
	CreateMessage(c echo.Context) error
	SearchMessages(c echo.Context) error
}

type listMessagesRequest struct {
	ChatID string `param:"id" validate:"required,objectid"`
	PageQuery
}

func (h *controller) ListMessages(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req listMessagesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chatID, err := models.ParseObjectID(req.ChatID, "chat")
	if err != nil {
		return err
	}

	page, err := h.messageUsecase.ListMessages(c.Request().Context(), chatID, user.ID, req.params())
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, http.StatusOK, page)
}

type createMessageRequest struct {
	ChatID   string `param:"id" validate:"required,objectid"`
	Body     string `json:"body" validate:"required"`
	ClientID string `json:"client_id" validate:"omitempty,max=128"`
}

func (h *controller) CreateMessage(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req createMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	chatID, err := models.ParseObjectID(req.ChatID, "chat")
	if err != nil {
		return err
	}

	msg, isNew, err := h.messageUsecase.CreateMessage(c.Request().Context(), usecase.CreateMessageParams{
		ChatID:     chatID,
		SenderID:   user.ID,
		SenderName: user.Name,
		Body:       req.Body,
		ClientID:   req.ClientID,
	})
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, createdStatus(isNew), msg)
}

type searchMessagesRequest struct {
	Query  string `query:"q" validate:"required,max=200"`
	ChatID string `query:"chat_id" validate:"omitempty,objectid"`
	PageQuery
}

func (h *controller) SearchMessages(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req searchMessagesRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	params := usecase.SearchParams{
		UserID: user.ID,
		Query:  req.Query,
		Page:   req.params(),
	}
	if req.ChatID != "" {
		var chatID primitive.ObjectID
		if chatID, err = models.ParseObjectID(req.ChatID, "chat"); err != nil {
			return err
		}
		params.ChatID = &chatID
	}

	page, err := h.messageUsecase.Search(c.Request().Context(), params)
	if err != nil {
		return err
	}
	return pkgmdw.OK(c, http.StatusOK, page)
}
