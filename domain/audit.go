package domain

type AuditEntry struct {
	Id               string            `bson:"_id"`
	Timestamp        int64             `bson:"timestamp"`
	UserId           string            `bson:"userId"`
	NotificationType NotificationType  `bson:"notificationType"`
	RecipientCount   int               `bson:"recipientCount"`
	DeliveredCount   int               `bson:"deliveredCount"`
	FailedCount      int               `bson:"failedCount"`
	Success          bool              `bson:"success"`
	Metadata         map[string]string `bson:"metadata,omitempty"`
}
