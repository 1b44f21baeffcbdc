package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"wardrobeapi/models"
	"wardrobeapi/services"

	firebase "firebase.google.com/go/v4"
	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type GarmentClassificationPayload struct {
	GarmentID uint `json:"garment_id"`
}

type AvatarGenerationPayload struct {
	UserID uint `json:"user_id"`
}

type TryOnGenerationPayload struct {
	TryOnID uint `json:"try_on_id"`
}

func NewGarmentClassificationTask(garmentID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(GarmentClassificationPayload{GarmentID: garmentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask("generate:classify_garment", payload), nil

}

func NewAvatarGenerationTask(userID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(AvatarGenerationPayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask("generate:avatar", payload), nil

}

func NewTryOnGenerationTask(tryOnID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(TryOnGenerationPayload{TryOnID: tryOnID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask("generate:tryon", payload), nil

}

func downloadStorageFile(awsService services.AWSServiceProvider, fileKey string, tag string) ([]byte, string, error) {
	bucketName := os.Getenv("R2_BUCKET_NAME")
	fmt.Printf("%s Request presigned download url for %s..\n", tag, fileKey)
	fileUrl, err := awsService.GetPresignedR2FileReadURL(context.TODO(), bucketName, fileKey)
	fileName := filepath.Base(fileKey)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("%s Error on getting presigned URL for file %s", tag, fileKey))
		return nil, fileName, err
	}
	fileBytes, err := services.ReadFileFromUrl(fileUrl)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("%s Error on downloading file %s: %v", tag, fileKey, err))
		return nil, fileName, err
	}

	return fileBytes, fileName, nil
}

func uploadGeneratedImage(awsService services.AWSServiceProvider, fileKey string, imageBytes []byte, tag string) error {
	bucketName := services.GetEnv("R2_BUCKET_NAME", "")
	uploadUrl, presignErr := awsService.PresignLink(context.Background(), bucketName, fileKey)
	if presignErr != nil {
		sentry.CaptureException(presignErr)
		return presignErr
	}
	respBody, statusCode, err := awsService.UploadToPresignedURL(context.Background(), bucketName, uploadUrl, imageBytes)
	fmt.Printf("%s R2 Upload file size %v, key %s, response body: %s, status code: %d\n", tag, len(imageBytes), fileKey, respBody, statusCode)
	if err != nil || statusCode != 200 {
		sentry.CaptureException(fmt.Errorf("%s Error on uploading generated image %s: %v", tag, fileKey, err))
		return fmt.Errorf("%s failed to upload generated image %s: %v", tag, fileKey, err)
	}
	return nil
}

func cleanAIResponseText(text string) string {
	cleanContent := strings.ReplaceAll(text, "```json", "")
	cleanContent = strings.TrimSuffix(strings.TrimSpace(cleanContent), "```")
	return cleanContent
}

// HandleGarmentClassificationTask downloads the garment photo and fills in
// name, category, material and color from the vision model.
func HandleGarmentClassificationTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, processor services.GarmentLLMProcessor,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	googleKey := os.Getenv("GOOGLE_API_KEY")
	if googleKey == "" {
		sentry.CaptureException(fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload())))
		return fmt.Errorf("[QUEUE] %s Google API key is not set", string(t.Payload()))
	}
	var payload GarmentClassificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	tag := fmt.Sprintf("[Garment: %v]", payload.GarmentID)
	fmt.Printf("%s Start Classification\n", tag)

	var garment models.Garment
	res := db.First(&garment, payload.GarmentID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving garment for classification %v", payload.GarmentID))
		return res.Error
	}
	if garment.ImageURL == nil || *garment.ImageURL == "" {
		saveGarmentClassificationFail(db, garment, "No image found for this garment, please upload it again", false)
		sentry.CaptureException(fmt.Errorf("%s Image URL is nil", tag))
		return fmt.Errorf("%s Image URL is nil, cannot classify", tag)
	}

	fileBytes, fileName, err := downloadStorageFile(awsService, *garment.ImageURL, tag)
	if err != nil {
		saveGarmentClassificationFail(db, garment, "Failed to read garment image, please try again", true)
		return err
	}
	fmt.Printf("%s Downloaded file size: %d bytes\n", tag, len(fileBytes))

	filePath, err := services.CreateTempFile(fileBytes, fileName)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("%s Error on creating temp file %s: %v", tag, fileName, err))
		return err
	}
	defer os.Remove(filePath)

	model := services.Flash25
	modelString := model.String()
	fmt.Printf("%s Model: %s\n", tag, modelString)

	llmResponse, err := processor.ClassifyGarment(filePath, model)
	if err != nil {
		if strings.Contains(err.Error(), "content violation") {
			saveGarmentClassificationFail(db, garment, "Sorry, it seems this image contains content that we cannot process.", false)
			sentry.CaptureException(fmt.Errorf("%s Content violation on classifying garment %s: %v", tag, *garment.ImageURL, err))
			return nil
		}
		saveGarmentClassificationFail(db, garment, "Failed to classify garment, please try again", true)
		sentry.CaptureException(fmt.Errorf("%s Error on classifying garment %s: %v", tag, *garment.ImageURL, err))
		return err
	}
	if llmResponse == nil {
		saveGarmentClassificationFail(db, garment, "Failed to classify garment, please try again", true)
		sentry.CaptureException(fmt.Errorf("%s Response is nil but no error provided on classifying %s", tag, *garment.ImageURL))
		return fmt.Errorf("%s Response is nil but no error provided on classifying %s", tag, *garment.ImageURL)
	}

	cleanContent := cleanAIResponseText(llmResponse.Response)
	fmt.Printf("%s LLM Processed: %q, IT: %d, OT: %d, TT: %d, TOT: %d\n", tag, cleanContent, llmResponse.InputTokenCount, llmResponse.OutputTokenCount, llmResponse.ThoughtsTokenCount, llmResponse.TotalTokenCount)
	var classification services.GarmentClassification
	if err := json.Unmarshal([]byte(cleanContent), &classification); err != nil {
		fmt.Printf("%s Error on parsing Gemini %s AI json %s\n", tag, modelString, llmResponse.Response)
		saveGarmentClassificationFail(db, garment, "Failed to read classification result, please try again", true)
		sentry.CaptureException(fmt.Errorf("%s Error on parsing Gemini %s AI json %s", tag, modelString, llmResponse.Response))
		return err
	}

	category := models.Category(classification.Category)
	if category < models.CategoryShirt || category > models.CategoryAccessory {
		fmt.Printf("%s Unexpected category %v from model, falling back to accessory\n", tag, classification.Category)
		category = models.CategoryAccessory
	}
	material := models.Material(classification.Material)
	if material < models.MaterialCotton || material > models.MaterialAthletic {
		fmt.Printf("%s Unexpected material %v from model, falling back to cotton\n", tag, classification.Material)
		material = models.MaterialCotton
	}

	if garment.Name == "" {
		garment.Name = classification.Name
	}
	garment.Category = category
	garment.Material = material
	garment.Color = classification.Color
	garment.ClassificationStatus = "completed"
	garment.ClassificationErrorMessage = nil
	garment.LLMModel = &modelString
	garment.LLMTotalTokenCount = &llmResponse.TotalTokenCount
	if tx := db.Save(&garment); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving garment %v", payload.GarmentID))
		return tx.Error
	}
	fmt.Printf("%s Classification finished succesfully..\n", tag)

	var owner models.UserAccount
	if err := db.First(&owner, garment.OwnerID).Error; err == nil && owner.ReceiveNotifications {
		services.SendNotification(fbApp, db, owner.ID, "Garment Ready", fmt.Sprintf("Your garment %s has been added to the wardrobe", garment.Name), map[string]string{"garment_id": fmt.Sprintf("%d", garment.ID), "type": "garment_classified"})
	}
	return nil
}

// HandleAvatarGenerationTask generates the full body avatar used for try-ons
// from the user's raw photo.
func HandleAvatarGenerationTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, processor services.GarmentLLMProcessor,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	var payload AvatarGenerationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	tag := fmt.Sprintf("[Avatar: %v]", payload.UserID)
	fmt.Printf("%s Start avatar generation\n", tag)

	var user models.UserAccount
	res := db.First(&user, payload.UserID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving user for avatar generation %v", payload.UserID))
		return res.Error
	}
	if user.RawBodyImageURL == nil || *user.RawBodyImageURL == "" {
		sentry.CaptureException(fmt.Errorf("%s Raw body image URL is nil", tag))
		return fmt.Errorf("%s Raw body image URL is nil, cannot generate avatar", tag)
	}

	fileBytes, fileName, err := downloadStorageFile(awsService, *user.RawBodyImageURL, tag)
	if err != nil {
		return err
	}
	filePath, err := services.CreateTempFile(fileBytes, fileName)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("%s Error on creating temp file %s: %v", tag, fileName, err))
		return err
	}
	defer os.Remove(filePath)

	model := services.Flash25Image
	fmt.Printf("%s Model: %s\n", tag, model.String())
	llmResponse, err := processor.GenerateAvatar(filePath, model)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("%s Error on generating avatar: %v", tag, err))
		return err
	}
	if strings.Contains(llmResponse.Response, "NO_PERSON") {
		fmt.Printf("%s No person detected in raw photo\n", tag)
		user.FullBodyAvatarSet = false
		if tx := db.Save(&user); tx.Error != nil {
			sentry.CaptureException(tx.Error)
		}
		services.SendNotification(fbApp, db, user.ID, "Avatar Failed", "We could not detect a person in your photo, please try another one", map[string]string{"type": "avatar_failed"})
		return nil
	}
	if len(llmResponse.Images) == 0 {
		sentry.CaptureException(fmt.Errorf("%s No image returned from avatar generation", tag))
		return fmt.Errorf("%s No image returned from avatar generation", tag)
	}

	avatarKey := fmt.Sprintf("avatars/user-%v.png", user.ID)
	if err := uploadGeneratedImage(awsService, avatarKey, llmResponse.Images[0], tag); err != nil {
		return err
	}

	user.UserFullBodyImageURL = &avatarKey
	user.FullBodyAvatarSet = true
	if tx := db.Save(&user); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving user after avatar generation %v", payload.UserID))
		return tx.Error
	}
	fmt.Printf("%s Avatar generation finished succesfully..\n", tag)
	if user.ReceiveNotifications {
		services.SendNotification(fbApp, db, user.ID, "Avatar Ready", "Your avatar is ready, you can generate try-ons now", map[string]string{"type": "avatar_ready"})
	}
	return nil
}

// HandleTryOnGenerationTask renders the user's avatar wearing the selected
// garments and stores the preview image.
func HandleTryOnGenerationTask(
	ctx context.Context, t *asynq.Task, db *gorm.DB, processor services.GarmentLLMProcessor,
	awsService services.AWSServiceProvider, fbApp *firebase.App) error {
	var payload TryOnGenerationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}
	tag := fmt.Sprintf("[TryOn: %v]", payload.TryOnID)
	fmt.Printf("%s Start try-on generation\n", tag)

	var tryOn models.TryOnGeneration
	res := db.First(&tryOn, payload.TryOnID)
	if res.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on retrieving try-on for generation %v", payload.TryOnID))
		return res.Error
	}

	avatarBytes, avatarFileName, err := downloadStorageFile(awsService, tryOn.GeneratedWithAvatarURL, tag)
	if err != nil {
		saveTryOnGenerationFail(db, tryOn, "Failed to read your avatar, please try again", true)
		return err
	}
	avatarPath, err := services.CreateTempFile(avatarBytes, avatarFileName)
	if err != nil {
		sentry.CaptureException(fmt.Errorf("%s Error on creating temp avatar file: %v", tag, err))
		return err
	}
	defer os.Remove(avatarPath)

	var garmentPaths []string
	for _, rawID := range strings.Split(tryOn.GarmentIDs, ",") {
		rawID = strings.TrimSpace(rawID)
		if rawID == "" {
			continue
		}
		garmentID, err := strconv.ParseUint(rawID, 10, 64)
		if err != nil {
			fmt.Printf("%s Skipping malformed garment id %q\n", tag, rawID)
			continue
		}
		var garment models.Garment
		if err := db.First(&garment, uint(garmentID)).Error; err != nil {
			fmt.Printf("%s Garment %v not found, skipping\n", tag, garmentID)
			continue
		}
		if garment.ImageURL == nil || *garment.ImageURL == "" {
			fmt.Printf("%s Garment %v has no image, skipping\n", tag, garmentID)
			continue
		}
		garmentBytes, garmentFileName, err := downloadStorageFile(awsService, *garment.ImageURL, tag)
		if err != nil {
			saveTryOnGenerationFail(db, tryOn, "Failed to read one of the garment images, please try again", true)
			return err
		}
		garmentPath, err := services.CreateTempFile(garmentBytes, garmentFileName)
		if err != nil {
			sentry.CaptureException(fmt.Errorf("%s Error on creating temp garment file: %v", tag, err))
			return err
		}
		defer os.Remove(garmentPath)
		garmentPaths = append(garmentPaths, garmentPath)
	}
	if len(garmentPaths) == 0 {
		saveTryOnGenerationFail(db, tryOn, "No garment images available for this try-on", false)
		sentry.CaptureException(fmt.Errorf("%s No garment images for generation", tag))
		return nil
	}

	model := services.Flash25Image
	modelString := model.String()
	fmt.Printf("%s Model: %s, garments: %d\n", tag, modelString, len(garmentPaths))
	llmResponse, err := processor.GenerateTryOn(avatarPath, garmentPaths, model)
	if err != nil {
		if strings.Contains(err.Error(), "content violation") {
			saveTryOnGenerationFail(db, tryOn, "Sorry, it seems these images contain content that we cannot process.", false)
			sentry.CaptureException(fmt.Errorf("%s Content violation on try-on generation: %v", tag, err))
			return nil
		}
		saveTryOnGenerationFail(db, tryOn, "Failed to generate try-on, please try again", true)
		sentry.CaptureException(fmt.Errorf("%s Error on generating try-on: %v", tag, err))
		return err
	}
	if len(llmResponse.Images) == 0 {
		saveTryOnGenerationFail(db, tryOn, "No preview was generated, please try again", true)
		sentry.CaptureException(fmt.Errorf("%s No image returned from try-on generation, response: %s", tag, llmResponse.Response))
		return fmt.Errorf("%s No image returned from try-on generation", tag)
	}

	previewKey := fmt.Sprintf("tryons/tryon-%v.png", tryOn.ID)
	if err := uploadGeneratedImage(awsService, previewKey, llmResponse.Images[0], tag); err != nil {
		saveTryOnGenerationFail(db, tryOn, "Failed to store the generated preview, please try again", true)
		return err
	}

	tryOn.TryOnPreviewImageURL = &previewKey
	tryOn.Status = "completed"
	tryOn.GenerationErrorMessage = nil
	tryOn.LLMModel = &modelString
	tryOn.LLMInputTokenCount = &llmResponse.InputTokenCount
	tryOn.LLMOutputTokenCount = &llmResponse.OutputTokenCount
	tryOn.LLMTotalTokenCount = &llmResponse.TotalTokenCount
	if tx := db.Save(&tryOn); tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[QUEUE] Error on saving try-on %v", payload.TryOnID))
		return tx.Error
	}
	fmt.Printf("%s Try-on generation finished succesfully..\n", tag)

	var owner models.UserAccount
	if err := db.First(&owner, tryOn.UserAccountID).Error; err == nil && owner.ReceiveNotifications {
		services.SendNotification(fbApp, db, owner.ID, "Try-On Ready", "Your try-on preview is ready", map[string]string{"try_on_id": fmt.Sprintf("%d", tryOn.ID), "type": "try_on_ready"})
	}
	return nil
}

func saveGarmentClassificationFail(db *gorm.DB, garment models.Garment, message string, shouldRetry bool) error {
	garment.ClassifyRetryTimes = garment.ClassifyRetryTimes + 1
	garment.ClassificationErrorMessage = services.StrPointer(message)
	if !shouldRetry || garment.ClassifyRetryTimes >= 3 {

		garment.ClassificationStatus = "failed"
	}
	tx := db.Save(&garment)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail Garment %v] Error on saving garment for failed status", garment.ID))
		return tx.Error
	}
	return nil
}

func saveTryOnGenerationFail(db *gorm.DB, tryOn models.TryOnGeneration, message string, shouldRetry bool) error {
	tryOn.GenerationRetryTimes = tryOn.GenerationRetryTimes + 1
	tryOn.GenerationErrorMessage = services.StrPointer(message)
	if !shouldRetry || tryOn.GenerationRetryTimes >= 3 {

		tryOn.Status = "failed"
	}
	tx := db.Save(&tryOn)
	if tx.Error != nil {
		sentry.CaptureException(fmt.Errorf("[Fail TryOn %v] Error on saving try-on for failed status", tryOn.ID))
		return tx.Error
	}
	return nil
}
