package controllers

import (
	"fmt"
	"net/http"

	"wardrobeapi/models"
	"wardrobeapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
)

type ChatIn struct {
	Messages []services.Message `json:"messages"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type ChatController struct {
	Chat *services.ChatService
}

func (controller *ChatController) ChatRoutes(g *echo.Group) {
	g.POST("/message", controller.SendMessage)
}

func (controller *ChatController) SendMessage(c echo.Context) error {
	var req ChatIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if len(req.Messages) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Please provide at least one message"})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	text, err := controller.Chat.GenerateResponse(c.Request().Context(), req.Messages)
	if err != nil {
		sentry.CaptureException(err)
		fmt.Printf("[Chat] failed to generate response for user %v: %v\n", user.ID, err)
		return c.JSON(http.StatusBadGateway, map[string]string{"message": "Sorry, could not answer right now, please try again"})
	}

	return c.JSON(http.StatusOK, ChatResponse{Response: text})
}
