package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"wardrobeapi/dbhelper"
	"wardrobeapi/models"
	"wardrobeapi/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stringPtr(s string) *string {
	return &s
}

func TestGarmentClassificationTask(t *testing.T) {
	os.Setenv("GOOGLE_API_KEY", "test-key")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	garment := models.Garment{
		Name:                 "",
		OwnerID:              user.ID,
		ImageURL:             stringPtr("garments/test-image.jpg"),
		ClassificationStatus: "pending",
	}
	db.Create(&garment)

	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		// minimal jpeg header so the download path has real bytes
		w.Write([]byte("\xFF\xD8\xFFfakeimagedata"))
	}))
	defer mockServer.Close()

	task, err := NewGarmentClassificationTask(garment.ID)
	require.NoError(t, err)
	awsServiceMock := &test.AWSProviderMock{MockUrl: mockServer.URL}

	err = HandleGarmentClassificationTask(context.Background(), task, db, test.MockGarmentProcessor{}, awsServiceMock, nil)
	require.NoError(t, err)

	var updated models.Garment
	require.NoError(t, db.First(&updated, garment.ID).Error)
	assert.Equal(t, "completed", updated.ClassificationStatus)
	assert.Equal(t, "Blue denim jacket", updated.Name)
	assert.Equal(t, models.CategoryJacket, updated.Category)
	assert.Equal(t, models.MaterialDenim, updated.Material)
	assert.Equal(t, "#2244aa", updated.Color)
	require.NotNil(t, updated.LLMTotalTokenCount)
	assert.Equal(t, int32(11), *updated.LLMTotalTokenCount)
}

func TestGarmentClassificationTaskNoImage(t *testing.T) {
	os.Setenv("GOOGLE_API_KEY", "test-key")
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	garment := models.Garment{
		Name:                 "No image",
		OwnerID:              user.ID,
		ClassificationStatus: "pending",
	}
	db.Create(&garment)

	task, err := NewGarmentClassificationTask(garment.ID)
	require.NoError(t, err)

	err = HandleGarmentClassificationTask(context.Background(), task, db, test.MockGarmentProcessor{}, &test.AWSProviderMock{}, nil)
	assert.Error(t, err)

	var updated models.Garment
	require.NoError(t, db.First(&updated, garment.ID).Error)
	assert.Equal(t, "failed", updated.ClassificationStatus)
	require.NotNil(t, updated.ClassificationErrorMessage)
}

func TestTryOnGenerationTask(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)

	top := test.FakeGarment(db, user.ID, "White shirt", models.CategoryShirt, models.MaterialCotton, "#ffffff", false)
	bottom := test.FakeGarment(db, user.ID, "Blue jeans", models.CategoryJeans, models.MaterialDenim, "#2244aa", false)

	tryOn := models.TryOnGeneration{
		Status:                 "pending",
		UserAccountID:          user.ID,
		GarmentIDs:             fmt.Sprintf("%d,%d", top.ID, bottom.ID),
		GeneratedWithAvatarURL: "avatars/user-avatar.png",
	}
	db.Create(&tryOn)

	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("\x89PNGfakeimagedata"))
	}))
	defer mockServer.Close()

	task, err := NewTryOnGenerationTask(tryOn.ID)
	require.NoError(t, err)
	awsServiceMock := &test.AWSProviderMock{MockUrl: mockServer.URL}

	err = HandleTryOnGenerationTask(context.Background(), task, db, test.MockGarmentProcessor{}, awsServiceMock, nil)
	require.NoError(t, err)

	var updated models.TryOnGeneration
	require.NoError(t, db.First(&updated, tryOn.ID).Error)
	assert.Equal(t, "completed", updated.Status)
	require.NotNil(t, updated.TryOnPreviewImageURL)
	assert.Contains(t, *updated.TryOnPreviewImageURL, "tryons/")
}

func TestAvatarGenerationTask(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()
	user := test.FakeUser(db)
	user.RawBodyImageURL = stringPtr("raw/user-photo.jpg")
	db.Save(&user)

	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("\xFF\xD8\xFFfakeimagedata"))
	}))
	defer mockServer.Close()

	task, err := NewAvatarGenerationTask(user.ID)
	require.NoError(t, err)
	awsServiceMock := &test.AWSProviderMock{MockUrl: mockServer.URL}

	err = HandleAvatarGenerationTask(context.Background(), task, db, test.MockGarmentProcessor{}, awsServiceMock, nil)
	require.NoError(t, err)

	var updated models.UserAccount
	require.NoError(t, db.First(&updated, user.ID).Error)
	assert.True(t, updated.FullBodyAvatarSet)
	require.NotNil(t, updated.UserFullBodyImageURL)
	assert.Contains(t, *updated.UserFullBodyImageURL, "avatars/")
}
