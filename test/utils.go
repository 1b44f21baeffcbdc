package test

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"
	"wardrobeapi/models"
	"wardrobeapi/services"

	"github.com/golang-jwt/jwt/v4"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"
)

func JsonString(model interface{}) string {
	bytes, _ := json.Marshal(model)
	return string(bytes)
}

func NewJSONRequest(method string, target string, param interface{}) *http.Request {

	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	return req
}

func GenerateUserToken(userPk string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userPk,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 72)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	t, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		log.Fatalf("Error when signing user token for %s. Error %s ", userPk, err)
	}
	return t
}

func NewJSONAuthRequest(method string, target string, userPk string, param interface{}) *http.Request {
	log.Println(JsonString(param))
	req := httptest.NewRequest(method, target, strings.NewReader(JsonString(param)))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func NewJSONAuthRequestRaw(method string, target string, userPk string, json string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(json))
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	token := GenerateUserToken(userPk)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	return req
}

func Int64Pointer(i int64) *int64 {
	return &i
}

func NewRefString(data string) *string {
	return &data
}

func FakeUser(db *gorm.DB) *models.UserAccount {
	user := &models.UserAccount{
		Name:      "OurName",
		Email:     "email@example.com",
		GoogleID:  "12232",
		Platform:  models.PlatformIOS,
		LastIp:    "123.122.122.122",
		Status:    "FINISHED_AUTH",
		AvatarUrl: "pictureurl",
	}
	db.Create(&user)

	tokenDb := models.UserPushToken{
		UserAccountID: user.ID,
		Platform:      "android",
		Token:         "cX-UZ3zwQEiPt-2GJkG2gA:APA91bGqRflaGrJrnynhRwZ442HdgUjVcO7mWMFnx6IwAdJ9RRKopvSP4QU7hbvTmk1XAp8XGvtHZLvo5JmOPTVKBbGqqvhfbZWKlXA9csEjx1hgpNvrWepU-rqG1sxS8_WCF5cGZchf",
		Active:        true,
	}
	db.Save(&tokenDb)
	db.First(&user, user.ID)

	return user
}

func FakeUserV2(db *gorm.DB, userName string, email string) *models.UserAccount {
	if email == "" {
		email = "email@example.com"
	}
	user := &models.UserAccount{
		Name:      userName,
		Email:     email,
		GoogleID:  "12232",
		Platform:  models.PlatformIOS,
		LastIp:    "123.122.122.122",
		Status:    "FINISHED_AUTH",
		AvatarUrl: "pictureurl",
	}
	db.Create(&user)
	return user
}

func FakeGarment(db *gorm.DB, ownerID uint, name string, category models.Category, material models.Material, color string, dirty bool) *models.Garment {
	garment := &models.Garment{
		Name:                 name,
		OwnerID:              ownerID,
		Category:             category,
		Material:             material,
		Color:                color,
		Dirty:                dirty,
		ImageURL:             NewRefString(fmt.Sprintf("garments/%s.jpg", strings.ReplaceAll(name, " ", "-"))),
		ClassificationStatus: "completed",
	}
	db.Create(&garment)
	return garment
}

type GoogleServiceMock struct{}

func (gsm GoogleServiceMock) ValidateIdToken(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error) {

	return &idtoken.Payload{Issuer: "Issue", Audience: "AAA", Expires: 119919191919, IssuedAt: 12312321321, Subject: "fake@example.com", Claims: map[string]interface{}{
		"email":   "fake@example.com",
		"picture": "pictureurl",
		"sub":     "123googleid",
	}}, nil

}

type AWSProviderMock struct {
	MockUrl string
}

func (awsService AWSProviderMock) InitPresignClient(ctx context.Context) error {
	return nil
}

func (awsService AWSProviderMock) PresignLink(ctx context.Context, bucketName string, fileName string) (string, error) {

	return fmt.Sprintf("https://fakebucketurl.com/%s", fileName), nil
}

func (awsService AWSProviderMock) GetPresignedR2FileReadURL(ctx context.Context, bucketName, fileKey string) (string, error) {
	return awsService.MockUrl, nil
}

func (awsService AWSProviderMock) UploadToPresignedURL(ctx context.Context, bucketName, url string, fileContent []byte) (string, int, error) {
	return url, 200, nil
}

type URLCacheMock struct{}

func (cache URLCacheMock) GetReadURL(ctx context.Context, objectKey string) (string, error) {
	return fmt.Sprintf("https://fakebucketurl.com/%s", objectKey), nil
}

type MockGarmentProcessor struct{}

func (m MockGarmentProcessor) ClassifyGarment(filePath string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	return &services.LLMResponse{Response: `{
		"name": "Blue denim jacket",
		"category": 3,
		"material": 2,
		"color": "#2244aa"
		}`,
		InputTokenCount:    10,
		TotalTokenCount:    11,
		ThoughtsTokenCount: 12,
		OutputTokenCount:   13,
	}, nil
}

func (m MockGarmentProcessor) GenerateAvatar(personAvatarPath string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	return &services.LLMResponse{
		Response:        "done",
		Images:          [][]byte{[]byte("fake-avatar-png")},
		InputTokenCount: 10,
		TotalTokenCount: 11,
	}, nil
}

func (m MockGarmentProcessor) GenerateTryOn(personAvatarPath string, filePaths []string, modelName services.LLMModelName) (*services.LLMResponse, error) {
	return &services.LLMResponse{
		Response:        "done",
		Images:          [][]byte{[]byte("fake-tryon-png")},
		InputTokenCount: 10,
		TotalTokenCount: 11,
	}, nil
}

// ScriptedMessageCreator plays back canned messages API responses in order.
type ScriptedMessageCreator struct {
	Responses []*services.MessagesResponse
	Calls     int
}

func (sc *ScriptedMessageCreator) CreateMessage(ctx context.Context, request *services.MessagesRequest) (*services.MessagesResponse, error) {
	if sc.Calls >= len(sc.Responses) {
		return nil, fmt.Errorf("scripted message creator exhausted after %d calls", sc.Calls)
	}
	response := sc.Responses[sc.Calls]
	sc.Calls++
	return response, nil
}

// StaticWeather is a WeatherProvider returning a fixed report.
type StaticWeather struct {
	Result string
}

func (w StaticWeather) Lookup(ctx context.Context, lat float64, lon float64) string {
	return w.Result
}
