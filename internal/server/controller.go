package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
	pkgmdw "github.com/nguyentranbao-ct/family-chat/internal/server/middleware"
	"github.com/nguyentranbao-ct/family-chat/internal/usecase"
)

type Controller interface {
	Health(c echo.Context) error
	ChatController
	MembershipController
	MessageController
}

type controller struct {
	chatUsecase       usecase.ChatUsecase
	membershipUsecase usecase.MembershipUsecase
	messageUsecase    usecase.MessageUsecase
}

func NewController(
	chatUsecase usecase.ChatUsecase,
	membershipUsecase usecase.MembershipUsecase,
	messageUsecase usecase.MessageUsecase,
) Controller {
	return &controller{
		chatUsecase:       chatUsecase,
		membershipUsecase: membershipUsecase,
		messageUsecase:    messageUsecase,
	}
}

func (h *controller) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "family-chat",
	})
}

// bind fills req from path, query and body, then validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := c.Validate(req); err != nil {
		return models.BadRequest("%s", err.Error())
	}
	return nil
}

func currentUser(c echo.Context) (*models.AuthUser, error) {
	user := pkgmdw.GetUser(c)
	if user == nil {
		return nil, models.Unauthorized("authentication required")
	}
	return user, nil
}

func parseIDs(hexes []string, what string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(hexes))
	for _, hex := range hexes {
		id, err := models.ParseObjectID(hex, what)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// createdStatus answers 201 for a new resource and 200 for a deduplicated one.
func createdStatus(isNew bool) int {
	if isNew {
		return http.StatusCreated
	}
	return http.StatusOK
}

// PageQuery is embedded by list requests; it must stay exported for echo to bind it.
type PageQuery struct {
	Limit  int    `query:"limit" validate:"gte=0"`
	Before string `query:"before" validate:"omitempty,objectid"`
}

func (q PageQuery) params() usecase.PageParams {
	return usecase.PageParams{Limit: q.Limit, Before: q.Before}
}
