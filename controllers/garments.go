package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"wardrobeapi/models"
	"wardrobeapi/services"
	"wardrobeapi/tasks"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type CreateGarmentIn struct {
	Name     string  `json:"name" validate:"omitempty,max=100"`
	FileName *string `json:"file_name" validate:"required,max=200"`
	Category int32   `json:"category" validate:"omitempty,category"`
	Material int32   `json:"material" validate:"omitempty,material"`
	Color    string  `json:"color" validate:"omitempty,max=32"`
	// run llm classification on the uploaded image to fill the fields above
	Classify *bool `json:"classify" validate:"required"`
}

type UpdateGarmentIn struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Category *int32  `json:"category" validate:"omitempty,category"`
	Material *int32  `json:"material" validate:"omitempty,material"`
	Color    *string `json:"color" validate:"omitempty,max=32"`
	Dirty    *bool   `json:"dirty"`
}

type GenerateTryOnIn struct {
	GarmentIDs []uint `json:"garment_ids" validate:"required,min=1,max=6"`
}

type GarmentResponse struct {
	ID                   uint    `json:"id"`
	Name                 string  `json:"name"`
	Category             int32   `json:"category"`
	CategoryName         string  `json:"category_name"`
	Material             int32   `json:"material"`
	MaterialName         string  `json:"material_name"`
	Color                string  `json:"color"`
	Dirty                bool    `json:"dirty"`
	ClassificationStatus string  `json:"classification_status"`
	Uri                  *string `json:"uri,omitempty"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

type GarmentCreatedResponse struct {
	Garment       GarmentResponse `json:"garment"`
	FileUploadUrl string          `json:"file_upload_url"`
}

type GarmentListResponse struct {
	Garments []GarmentResponse `json:"garments"`
}

type TryOnGenerationCreatedResponse struct {
	TryOnID              uint    `json:"try_on_id"`
	Status               string  `json:"status"`
	TryOnPreviewImageURL *string `json:"try_on_preview_image_url,omitempty"`
}

type GarmentsController struct {
	AWSService  services.AWSServiceProvider
	FirebaseApp *firebase.App
	URLCache    services.URLCacheServiceProvider
}

func (controller *GarmentsController) GarmentRoutes(g *echo.Group) {
	g.POST("/create", controller.CreateGarment)
	g.GET("/list", controller.ListGarments)
	g.PUT("/:garmentId", controller.UpdateGarment)
	g.DELETE("/:garmentId", controller.DeleteGarment)
	g.POST("/tryon", controller.GenerateTryOn)
	g.GET("/tryon/:tryOnId", controller.GetTryOn)
}

func garmentResponseOf(garment models.Garment, uri *string) GarmentResponse {
	return GarmentResponse{
		ID:                   garment.ID,
		Name:                 garment.Name,
		Category:             int32(garment.Category),
		CategoryName:         garment.Category.String(),
		Material:             int32(garment.Material),
		MaterialName:         garment.Material.String(),
		Color:                garment.Color,
		Dirty:                garment.Dirty,
		ClassificationStatus: garment.ClassificationStatus,
		Uri:                  uri,
		CreatedAt:            garment.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:            garment.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (controller *GarmentsController) CreateGarment(c echo.Context) error {
	var req CreateGarmentIn
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
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	if req.FileName == nil || *req.FileName == "" {
		sentry.CaptureException(fmt.Errorf("Image was not provided when creating garment %s, user %v", req.Name, user.ID))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Sorry, it seems image was not provided, please try again"})
	}

	garment := models.Garment{
		Name:                 req.Name,
		OwnerID:              user.ID,
		Category:             models.Category(req.Category),
		Material:             models.Material(req.Material),
		Color:                req.Color,
		ClassificationStatus: "idle",
	}
	var bucketName = services.GetEnv("R2_BUCKET_NAME", "")
	// todo clean and map the same file name as in FE UI otherwise **FAIL**
	safeFileName := fmt.Sprintf("garments/%v/%s", user.ID, *req.FileName)

	uploadUrl, presignErr := controller.AWSService.PresignLink(context.Background(), bucketName, safeFileName)
	garment.ImageURL = &safeFileName
	if presignErr != nil {
		log.Printf("Unable to presign generate for %s!, %s", garment.Name, presignErr)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"message": "Error while creating garment with attachment",
		})
	}
	if err := db.Create(&garment).Error; err != nil {
		sentry.CaptureException(err)
		return err
	}
	if req.Classify != nil && *req.Classify {
		garment.ClassificationStatus = "pending"
		if err := db.Save(&garment).Error; err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Failed to update garment status, please try again"})
		}
		task, err := tasks.NewGarmentClassificationTask(garment.ID)
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process garment, please try again"})
		}
		info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
		if err != nil {
			sentry.CaptureException(err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not process garment, please try again"})
		}
		fmt.Println("[Queue] Classify garment task submitted, Garment ID: ", garment.ID, " Task ID: ", info.ID)
	}

	response := GarmentCreatedResponse{
		Garment:       garmentResponseOf(garment, nil),
		FileUploadUrl: uploadUrl,
	}

	return c.JSON(http.StatusCreated, response)
}

// populatePresignedGarmentImages takes raw garment models and enriches them with presigned URLs concurrently.
// This version includes a failsafe for when the cache system itself fails.
func (controller *GarmentsController) populatePresignedGarmentImages(ctx context.Context, garments []models.Garment) []GarmentResponse {
	if len(garments) == 0 {
		return []GarmentResponse{}
	}

	var wg sync.WaitGroup
	processedResponses := make([]GarmentResponse, len(garments))
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")

	for i, garmentItem := range garments {
		wg.Add(1)
		go func(index int, item models.Garment) {
			defer wg.Done()

			var imageUrl string
			if item.ImageURL != nil && *item.ImageURL != "" {
				objectKey := *item.ImageURL

				url, err := controller.URLCache.GetReadURL(ctx, objectKey)

				if err == nil {
					imageUrl = url
				} else {
					// cache system itself failed, bypass it
					log.Printf("CACHE WARNING: Cache system failed for key '%s': %v. Triggering manual R2 fallback.", objectKey, err)

					sentry.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("failure_type", "cache_system")
						scope.SetExtra("objectKey", objectKey)
						sentry.CaptureException(err)
					})

					fallbackUrl, fallbackErr := controller.AWSService.GetPresignedR2FileReadURL(ctx, bucketName, objectKey)
					if fallbackErr != nil {
						log.Printf("CRITICAL: Manual R2 fallback also failed for key '%s': %v", objectKey, fallbackErr)
						sentry.CaptureException(fallbackErr)
						// imageUrl remains empty, but we don't fail the entire request.
					} else {
						imageUrl = fallbackUrl
					}
				}
			}
			processedResponses[index] = garmentResponseOf(item, &imageUrl)
		}(i, garmentItem)
	}

	wg.Wait()
	return processedResponses
}

func (controller *GarmentsController) ListGarments(c echo.Context) error {
	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var garments []models.Garment
	if err := db.Where("owner_id = ?", user.ID).Order("created_at desc").Find(&garments).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch garments"})
	}

	processedResponses := controller.populatePresignedGarmentImages(c.Request().Context(), garments)

	return c.JSON(http.StatusOK, GarmentListResponse{Garments: processedResponses})
}

func (controller *GarmentsController) UpdateGarment(c echo.Context) error {
	var garmentId uint
	if err := echo.PathParamsBinder(c).Uint("garmentId", &garmentId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	var req UpdateGarmentIn
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

	var garment models.Garment
	result := db.Where("id = ? AND owner_id = ?", garmentId, user.ID).Limit(1).Find(&garment)
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch garment"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Garment not found"})
	}

	if req.Name != nil {
		garment.Name = *req.Name
	}
	if req.Category != nil {
		garment.Category = models.Category(*req.Category)
	}
	if req.Material != nil {
		garment.Material = models.Material(*req.Material)
	}
	if req.Color != nil {
		garment.Color = *req.Color
	}
	if req.Dirty != nil {
		garment.Dirty = *req.Dirty
	}
	if err := db.Save(&garment).Error; err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update garment"})
	}

	return c.JSON(http.StatusOK, garmentResponseOf(garment, nil))
}

func (controller *GarmentsController) DeleteGarment(c echo.Context) error {
	var garmentId uint
	if err := echo.PathParamsBinder(c).Uint("garmentId", &garmentId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	result := db.Where("id = ? AND owner_id = ?", garmentId, user.ID).Delete(&models.Garment{})
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete garment"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Garment not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

func (controller *GarmentsController) GenerateTryOn(c echo.Context) error {
	var req GenerateTryOnIn
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
	if user.UserFullBodyImageURL == nil || *user.UserFullBodyImageURL == "" {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "You have to set your avatar first before generating try-on"})
	}
	asynqClient, ok := c.Get("__asynqclient").(*asynq.Client)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Service is not available, please try again a bit later"})
	}

	var ownedCount int64
	if err := db.Model(&models.Garment{}).Where("id IN ? AND owner_id = ?", req.GarmentIDs, user.ID).Count(&ownedCount).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to get garment data"})
	}
	if ownedCount != int64(len(req.GarmentIDs)) {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Some of the garments were not found in your wardrobe"})
	}

	idParts := make([]string, 0, len(req.GarmentIDs))
	for _, id := range req.GarmentIDs {
		idParts = append(idParts, UIntToStr(id))
	}

	tryOnGeneration := models.TryOnGeneration{
		UserAccountID:          user.ID,
		GarmentIDs:             strings.Join(idParts, ","),
		GeneratedWithAvatarURL: *user.UserFullBodyImageURL,
		Status:                 "pending",
	}

	if err := db.Create(&tryOnGeneration).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate try-on, please try again"})
	}

	response := TryOnGenerationCreatedResponse{
		TryOnID:              tryOnGeneration.ID,
		Status:               tryOnGeneration.Status,
		TryOnPreviewImageURL: tryOnGeneration.TryOnPreviewImageURL,
	}

	task, err := tasks.NewTryOnGenerationTask(tryOnGeneration.ID)
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	info, err := asynqClient.Enqueue(task, asynq.MaxRetry(3), asynq.Queue("generate"))
	if err != nil {
		sentry.CaptureException(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": "Sorry, could not start generation, please try again"})
	}
	fmt.Println("[Queue] Try on generation task submitted, Try ID: ", tryOnGeneration.ID, " Task ID: ", info.ID)

	return c.JSON(http.StatusCreated, response)
}

func (controller *GarmentsController) GetTryOn(c echo.Context) error {
	var tryOnId uint
	if err := echo.PathParamsBinder(c).Uint("tryOnId", &tryOnId).BindError(); err != nil {
		return echo.ErrBadRequest
	}

	user, ok := c.Get("currentUser").(models.UserAccount)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	db, ok := c.Get("__db").(*gorm.DB)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Database connection error"})
	}

	var tryOn models.TryOnGeneration
	result := db.Where("id = ? AND user_account_id = ?", tryOnId, user.ID).Limit(1).Find(&tryOn)
	if result.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch try-on"})
	}
	if result.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Try-on not found"})
	}

	var previewUrl *string
	if tryOn.TryOnPreviewImageURL != nil && *tryOn.TryOnPreviewImageURL != "" {
		url, err := controller.URLCache.GetReadURL(c.Request().Context(), *tryOn.TryOnPreviewImageURL)
		if err != nil {
			log.Printf("CACHE WARNING: Cache system failed for key '%s': %v", *tryOn.TryOnPreviewImageURL, err)
			sentry.CaptureException(err)
		} else {
			previewUrl = &url
		}
	}

	return c.JSON(http.StatusOK, TryOnGenerationCreatedResponse{
		TryOnID:              tryOn.ID,
		Status:               tryOn.Status,
		TryOnPreviewImageURL: previewUrl,
	})
}
