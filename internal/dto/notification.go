package dto

// ListNotificationsQuery captures notification listing parameters.
type ListNotificationsQuery struct {
	UnreadOnly bool `form:"unread_only"`
	Limit      int  `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset     int  `form:"offset" validate:"omitempty,min=0"`
}

// UpdateNotificationSettingsRequest is a partial settings update.
type UpdateNotificationSettingsRequest struct {
	EmailNotifications *bool `json:"emailNotifications"`
	PushNotifications  *bool `json:"pushNotifications"`
	ReminderDays       *int  `json:"reminderDays" validate:"omitempty,min=1,max=365"`
}
