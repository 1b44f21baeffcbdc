package controllers

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"wardrobeapi/models"
	"wardrobeapi/services"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type GenerateOutfitIn struct {
	Context          string             `json:"context" validate:"omitempty,max=2000"`
	PreviousMessages []services.Message `json:"previous_messages"`
}

type OutfitGarmentsResponse struct {
	ResponseType string            `json:"response_type"`
	Garments     []GarmentResponse `json:"garments"`
}

type OutfitToolRequestResponse struct {
	ResponseType     string             `json:"response_type"`
	PreviousMessages []services.Message `json:"previous_messages"`
}

type OutfitsController struct {
	Outfits    *services.OutfitGeneratorService
	AWSService services.AWSServiceProvider
	URLCache   services.URLCacheServiceProvider
}

func (controller *OutfitsController) OutfitRoutes(g *echo.Group) {
	g.POST("/generate", controller.GenerateOutfit)
}

func (controller *OutfitsController) GenerateOutfit(c echo.Context) error {
	var req GenerateOutfitIn
	if err := c.Bind(&req); err != nil {
		fmt.Println(err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var garments []models.Garment
	if err := db.Where("owner_id = ?", user.ID).Find(&garments).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch garments"})
	}
	if len(garments) == 0 {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Add some garments to your wardrobe first"})
	}

	outcome, err := controller.Outfits.GenerateOutfit(c.Request().Context(), garments, req.Context, req.PreviousMessages)
	if err != nil {
		sentry.CaptureException(err)
		log.Printf("[Outfit] generation failed for user %v: %v", user.ID, err)
		if errors.Is(err, services.ErrModelCallLimit) || errors.Is(err, services.ErrNoToolUse) || errors.Is(err, services.ErrUnknownTool) {
			return c.JSON(http.StatusBadGateway, map[string]string{"message": "Sorry, could not put an outfit together, please try again"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not put an outfit together, please try again"})
	}

	if outcome.Suspended() {
		return c.JSON(http.StatusOK, OutfitToolRequestResponse{
			ResponseType:     "tool_request",
			PreviousMessages: outcome.PreviousMessages,
		})
	}

	responses := make([]GarmentResponse, 0, len(outcome.Garments))
	for _, garment := range outcome.Garments {
		var uri *string
		if garment.ImageURL != nil && *garment.ImageURL != "" {
			url, cacheErr := controller.URLCache.GetReadURL(c.Request().Context(), *garment.ImageURL)
			if cacheErr != nil {
				log.Printf("CACHE WARNING: Cache system failed for key '%s': %v", *garment.ImageURL, cacheErr)
				sentry.CaptureException(cacheErr)
			} else {
				uri = &url
			}
		}
		responses = append(responses, garmentResponseOf(garment, uri))
	}

	return c.JSON(http.StatusOK, OutfitGarmentsResponse{
		ResponseType: "garments",
		Garments:     responses,
	})
}
