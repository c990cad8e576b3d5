package models

import (
	"time"
)

// ContactMessage 联系表单
type ContactMessage struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id" firestore:"-"`
	Name      string    `gorm:"size:100;not null" json:"name" firestore:"name"`
	Email     string    `gorm:"size:200;not null" json:"email" firestore:"email"`
	Subject   string    `gorm:"size:200" json:"subject" firestore:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message" firestore:"message"`
	UserID    string    `gorm:"size:128" json:"userId,omitempty" firestore:"userId"`
	Handled   bool      `gorm:"default:false;index" json:"handled" firestore:"handled"`
	CreatedAt time.Time `gorm:"index" json:"createdAt" firestore:"createdAt"`
}

// LocationPing 设备定位页上报的位置
type LocationPing struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id" firestore:"-"`
	UserID    string    `gorm:"size:128;index" json:"userId,omitempty" firestore:"userId"`
	Latitude  float64   `json:"latitude" firestore:"latitude"`
	Longitude float64   `json:"longitude" firestore:"longitude"`
	Accuracy  float64   `json:"accuracy" firestore:"accuracy"` // 米
	UserAgent string    `gorm:"size:500" json:"userAgent" firestore:"userAgent"`
	IP        string    `gorm:"size:64" json:"ip" firestore:"ip"`
	CreatedAt time.Time `gorm:"index" json:"createdAt" firestore:"createdAt"`
}
