// Package store is the persistence layer for bindings, the daily sign
// ledger and the broadcast subscription list. Every write touches a single
// row, so concurrent account groups never contend on a key.
package store

import (
	"errors"

	"TajiSignBot/models"

	"gorm.io/gorm"
)

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// ---- bindings ----

// BindingsByUser returns every credentialed binding owned by a Discord user.
func (s *Store) BindingsByUser(userID string) ([]models.Binding, error) {
	var bindings []models.Binding
	err := s.DB.Where("user_id = ? AND refresh_token <> ''", userID).
		Order("id").Find(&bindings).Error
	return bindings, err
}

// AllWithCredential returns every binding that still has a refresh token,
// regardless of its auto-sign preference.
func (s *Store) AllWithCredential() ([]models.Binding, error) {
	var bindings []models.Binding
	err := s.DB.Where("refresh_token <> '' AND user_id <> ''").
		Order("id").Find(&bindings).Error
	return bindings, err
}

// AutoSignEnabled returns every credentialed binding whose auto-sign mode is
// not "off" (either "on" or a group summary target).
func (s *Store) AutoSignEnabled() ([]models.Binding, error) {
	var bindings []models.Binding
	err := s.DB.Where("refresh_token <> '' AND user_id <> '' AND auto_sign <> ?", models.AutoSignOff).
		Order("id").Find(&bindings).Error
	return bindings, err
}

// UpsertBinding stores a binding, replacing an existing row with the same
// (user, role) key, then removes the account's role-less placeholder once a
// role-bearing row exists.
func (s *Store) UpsertBinding(b *models.Binding) error {
	var existing models.Binding
	err := s.DB.Where("user_id = ? AND role_id = ?", b.UserID, b.RoleID).First(&existing).Error
	switch {
	case err == nil:
		b.ID = existing.ID
		b.CreatedAt = existing.CreatedAt
		if err := s.DB.Save(b).Error; err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.DB.Create(b).Error; err != nil {
			return err
		}
	default:
		return err
	}

	if b.HasRole() {
		return s.removePlaceholder(b.UserID, b.TaygedoUID)
	}
	return nil
}

// removePlaceholder deletes the role-less row an account starts with once a
// real role binding is stored for it.
func (s *Store) removePlaceholder(userID, taygedoUID string) error {
	return s.DB.Where("user_id = ? AND taygedo_uid = ? AND (role_id = ? OR role_id = '')",
		userID, taygedoUID, taygedoUID).
		Delete(&models.Binding{}).Error
}

// DeleteBinding removes one binding row.
func (s *Store) DeleteBinding(id uint) error {
	return s.DB.Delete(&models.Binding{}, id).Error
}

// UpdateRefreshToken propagates a rotated refresh token to every binding of
// the account. The credential is per-account, not per-role.
func (s *Store) UpdateRefreshToken(taygedoUID, token string) error {
	return s.DB.Model(&models.Binding{}).
		Where("taygedo_uid = ?", taygedoUID).
		Update("refresh_token", token).Error
}

// SetAutoSign updates the auto-sign mode on all of a user's bindings.
func (s *Store) SetAutoSign(userID, mode string) (int64, error) {
	result := s.DB.Model(&models.Binding{}).
		Where("user_id = ? AND refresh_token <> ''", userID).
		Update("auto_sign", mode)
	return result.RowsAffected, result.Error
}

// ---- sign ledger ----

// SignState returns the ledger entry for (uid, date), or nil when the key
// never attempted a sign that day.
func (s *Store) SignState(uid, date string) (*models.SignRecord, error) {
	var record models.SignRecord
	err := s.DB.Where("uid = ? AND date = ?", uid, date).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkAppSigned upserts the app-sign flag for (uid, date).
func (s *Store) MarkAppSigned(uid, date string) error {
	return s.markSigned(uid, date, "app_sign")
}

// MarkGameSigned upserts the game-sign flag for (uid, date).
func (s *Store) MarkGameSigned(uid, date string) error {
	return s.markSigned(uid, date, "game_sign")
}

func (s *Store) markSigned(uid, date, column string) error {
	var record models.SignRecord
	err := s.DB.Where("uid = ? AND date = ?", uid, date).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		record = models.SignRecord{UID: uid, Date: date}
		if column == "app_sign" {
			record.AppSign = 1
		} else {
			record.GameSign = 1
		}
		return s.DB.Create(&record).Error
	}
	if err != nil {
		return err
	}
	return s.DB.Model(&record).Update(column, 1).Error
}

// PurgeSignRecords drops every ledger entry dated at or before cutoff.
func (s *Store) PurgeSignRecords(cutoff string) error {
	return s.DB.Unscoped().Where("date <= ?", cutoff).Delete(&models.SignRecord{}).Error
}

// ---- subscriptions ----

// AddSubscription registers a subscriber for a topic, deduplicating on
// (topic, user, channel).
func (s *Store) AddSubscription(topic, userID, channelID, kind string) error {
	var existing models.Subscription
	err := s.DB.Where("topic = ? AND user_id = ? AND channel_id = ?", topic, userID, channelID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.DB.Create(&models.Subscription{
		Topic:     topic,
		UserID:    userID,
		ChannelID: channelID,
		Kind:      kind,
	}).Error
}

// RemoveSubscription drops a subscriber from a topic.
func (s *Store) RemoveSubscription(topic, userID, channelID string) error {
	return s.DB.Where("topic = ? AND user_id = ? AND channel_id = ?", topic, userID, channelID).
		Delete(&models.Subscription{}).Error
}

// Subscriptions lists every subscriber of a topic.
func (s *Store) Subscriptions(topic string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.DB.Where("topic = ?", topic).Order("id").Find(&subs).Error
	return subs, err
}
