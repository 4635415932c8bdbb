package model

import "github.com/lib/pq"

// User is the contact directory entry the dispatcher consults when fanning
// out a booking event. Channels holds the channel names the user has enabled;
// the matching address field must be set for a channel to receive anything.
type User struct {
	ID             string         `gorm:"primary_key"`
	Name           string         `gorm:"type:varchar(255);not null"`
	Phone          string         `gorm:"type:varchar(32)"`
	TelegramChatID string         `gorm:"type:varchar(64)"`
	WhatsappNumber string         `gorm:"type:varchar(32)"`
	Channels       pq.StringArray `gorm:"type:text[]"`
}

// TableName sets the table name for GORM
func (User) TableName() string {
	return "users"
}

// AddressFor returns the delivery address for a channel, or "" when the user
// has no usable address for it. Realtime delivery is keyed by the user ID
// itself.
func (u *User) AddressFor(channel string) string {
	switch channel {
	case ChannelRealtime:
		return u.ID
	case ChannelSMS:
		return u.Phone
	case ChannelTelegram:
		return u.TelegramChatID
	case ChannelWhatsapp:
		return u.WhatsappNumber
	}
	return ""
}
