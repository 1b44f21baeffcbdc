package models

import (
	"github.com/go-playground/validator"
)

// Category is the clothing type of a garment. Values match the mobile
// clients, do not reorder.
type Category int32

const (
	CategoryShirt Category = iota + 1
	CategoryTShirt
	CategoryJacket
	CategorySweater
	CategoryJeans
	CategoryPants
	CategoryShorts
	CategoryShoes
	CategoryAccessory
)

func (c Category) String() string {
	switch c {
	case CategoryShirt:
		return "shirt"
	case CategoryTShirt:
		return "t-shirt"
	case CategoryJacket:
		return "jacket"
	case CategorySweater:
		return "sweater"
	case CategoryJeans:
		return "jeans"
	case CategoryPants:
		return "pants"
	case CategoryShorts:
		return "shorts"
	case CategoryShoes:
		return "shoes"
	case CategoryAccessory:
		return "accessory"
	default:
		return "unknown"
	}
}

func ValidateCategory(fl validator.FieldLevel) bool {
	value := fl.Field().Int()
	return value >= int64(CategoryShirt) && value <= int64(CategoryAccessory)
}

// Material of a garment, same contract as Category.
type Material int32

const (
	MaterialCotton Material = iota + 1
	MaterialDenim
	MaterialWool
	MaterialCorduroy
	MaterialSilk
	MaterialSatin
	MaterialLeather
	MaterialAthletic
)

func (m Material) String() string {
	switch m {
	case MaterialCotton:
		return "cotton"
	case MaterialDenim:
		return "denim"
	case MaterialWool:
		return "wool"
	case MaterialCorduroy:
		return "corduroy"
	case MaterialSilk:
		return "silk"
	case MaterialSatin:
		return "satin"
	case MaterialLeather:
		return "leather"
	case MaterialAthletic:
		return "athletic"
	default:
		return "unknown"
	}
}

func ValidateMaterial(fl validator.FieldLevel) bool {
	value := fl.Field().Int()
	return value >= int64(MaterialCotton) && value <= int64(MaterialAthletic)
}

type Garment struct {
	JsonModel
	Name     string      `json:"name"`
	Owner    UserAccount `json:"-"`
	OwnerID  uint        `json:"-"`
	Category Category    `json:"category"`
	Material Material    `json:"material"`
	// hex string, e.g. "#000000"
	Color string `json:"color"`
	// needs laundering, excluded from generation by the clients
	Dirty bool `json:"dirty"`
	// file **key** in storage.
	ImageURL *string `json:"image_url"`
	// idle, pending, completed, failed
	ClassificationStatus       string  `json:"classification_status"`
	ClassifyRetryTimes         int     `json:"classify_retry_times"`
	ClassificationErrorMessage *string `json:"classification_error_message"`
	LLMModel                   *string `json:"llm_model"`
	LLMTotalTokenCount         *int32  `json:"llm_total_token_count"`
}

type TryOnGeneration struct {
	JsonModel
	UserAccount   UserAccount `json:"user_account"`
	UserAccountID uint        `json:"-"`

	// garments worn in this generation, stored as the id list used at
	// the point of generation
	GarmentIDs string `json:"garment_ids"`

	// user avatar at the point of generation
	GeneratedWithAvatarURL string `json:"generated_with_avatar_url"`

	TryOnPreviewImageURL   *string `json:"try_on_preview_image_url"`
	Status                 string  `json:"status"` // pending, completed, failed
	LLMModel               *string `json:"llm_model"`
	LLMInputTokenCount     *int32  `json:"llm_input_token_usage"`
	LLMOutputTokenCount    *int32  `json:"llm_output_token_usage"`
	LLMTotalTokenCount     *int32  `json:"llm_total_token_usage"`
	GenerationRetryTimes   int     `json:"generation_retry_times"`
	GenerationErrorMessage *string `json:"generation_error_message"`
}
