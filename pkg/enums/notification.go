package enums

import "fmt"

// NotificationType names the events that fan out user-facing notifications.
type NotificationType string

const (
	NotificationTypeOrderPlaced      NotificationType = "order_placed"
	NotificationTypePaymentConfirmed NotificationType = "payment_confirmed"
	NotificationTypePaymentFailed    NotificationType = "payment_failed"
	NotificationTypeOrderCancelled   NotificationType = "order_cancelled"
	NotificationTypeCommissionEarned NotificationType = "commission_earned"
	NotificationTypePayoutCreated    NotificationType = "payout_created"
	NotificationTypeRefundProcessed  NotificationType = "refund_processed"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderPlaced,
	NotificationTypePaymentConfirmed,
	NotificationTypePaymentFailed,
	NotificationTypeOrderCancelled,
	NotificationTypeCommissionEarned,
	NotificationTypePayoutCreated,
	NotificationTypeRefundProcessed,
}

// String implements fmt.Stringer.
func (t NotificationType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known NotificationType.
func (t NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
