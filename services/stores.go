package services

import (
	"TajiSignBot/models"
	"TajiSignBot/taygedo"
)

// SignAPI is the slice of the Tajiduo client the orchestrator needs.
type SignAPI interface {
	RefreshToken(refreshToken, deviceID string) (*taygedo.SessionTokens, error)
	AppSignIn(accessToken, uid, deviceID string) (*taygedo.AppSignResult, error)
	GameSignIn(accessToken, roleID string) error
	GetSignInState(accessToken string) (int, error)
	GetSignInRewards(accessToken string) ([]taygedo.Reward, error)
}

// LoginAPI is the slice of the Tajiduo client the login flow needs.
type LoginAPI interface {
	SendCaptcha(phone, deviceID string) error
	CheckCaptcha(phone, code, deviceID string) error
	Login(phone, code, deviceID string) (*taygedo.LoginResult, error)
	UserCenterLogin(token, userID, deviceID string) (*taygedo.SessionTokens, error)
	GetBindRole(accessToken, uid string) (*taygedo.Role, error)
	GetGameRoles(accessToken, uid, deviceID string) ([]taygedo.Role, error)
}

// BindingStore is the session-store contract the services depend on;
// *store.Store is the production implementation.
type BindingStore interface {
	BindingsByUser(userID string) ([]models.Binding, error)
	AllWithCredential() ([]models.Binding, error)
	AutoSignEnabled() ([]models.Binding, error)
	UpsertBinding(b *models.Binding) error
	DeleteBinding(id uint) error
	UpdateRefreshToken(taygedoUID, token string) error
	SetAutoSign(userID, mode string) (int64, error)
}

// SignLedger is the per-day idempotency contract.
type SignLedger interface {
	SignState(uid, date string) (*models.SignRecord, error)
	MarkAppSigned(uid, date string) error
	MarkGameSigned(uid, date string) error
	PurgeSignRecords(cutoff string) error
}

// SubscriptionStore is the broadcast registry contract.
type SubscriptionStore interface {
	AddSubscription(topic, userID, channelID, kind string) error
	RemoveSubscription(topic, userID, channelID string) error
	Subscriptions(topic string) ([]models.Subscription, error)
}
