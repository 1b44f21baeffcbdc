package models

import "time"

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GoogleAuthSignIn struct {
	IdToken  string `json:"idToken" validate:"required"`
	Platform string `json:"platform" validate:"required,platform"`
}

type RefreshTokenIn struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type UserInfoOut struct {
	Id        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	AvatarUrl string `json:"avatar_url"`
	// full body avatar ready for try-ons
	FullBodyAvatarSet bool `json:"full_body_avatar_set"`
	// presigned read url of the generated avatar, when set
	FullBodyAvatarUrl    *string `json:"full_body_avatar_url"`
	ReceiveNotifications bool    `json:"receive_notifications"`
}
