package models

import (
	"fmt"
	"time"
)

// NotificationKind names an upcoming husbandry event.
type NotificationKind string

const (
	NotifyPalpationDue NotificationKind = "PalpationDue"
	NotifyDeliveryDue  NotificationKind = "DeliveryDue"
	NotifyWeaningDue   NotificationKind = "WeaningDue"
)

// UpcomingEvent is a derived event that falls inside a lookahead window.
type UpcomingEvent struct {
	Kind       NotificationKind `json:"kind"`
	SubjectID  string           `json:"subject_id"`
	SubjectTag string           `json:"subject_tag"`
	DueDate    time.Time        `json:"due_date"`
	Message    string           `json:"message"`
}

// Key deduplicates notifications for the same event.
func (e UpcomingEvent) Key() string {
	return fmt.Sprintf("%s:%s:%s", e.Kind, e.SubjectID, e.DueDate.Format(DateLayout))
}

// Notification is a stored reminder written by the scheduler.
type Notification struct {
	ID         string           `bson:"_id" json:"id"`
	FarmID     string           `bson:"farm_id" json:"farm_id"`
	Key        string           `bson:"key" json:"key"`
	Kind       NotificationKind `bson:"kind" json:"kind"`
	SubjectID  string           `bson:"subject_id" json:"subject_id"`
	SubjectTag string           `bson:"subject_tag" json:"subject_tag"`
	DueDate    time.Time        `bson:"due_date" json:"due_date"`
	Message    string           `bson:"message" json:"message"`
	Read       bool             `bson:"read" json:"read"`
	CreatedAt  time.Time        `bson:"created_at" json:"created_at"`
}
