package models

import "time"

const (
	RolePorter        = "porter"
	RoleCaretaker     = "caretaker"
	RoleAdministrator = "administrator"
	RoleSuperUser     = "superuser"
)

const (
	DeliveryPending   = "pending"
	DeliveryPickedUp  = "picked_up"
	DeliveryCancelled = "cancelled"
)

type Condominium struct {
	ID                  string     `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	Address             *string    `db:"address" json:"address,omitempty"`
	SuperUserID         *string    `db:"super_user_id" json:"superUserId,omitempty"`
	SuperUserName       *string    `db:"super_user_name" json:"superUserName,omitempty"`
	SuperUserIdentifier *string    `db:"super_user_identifier" json:"superUserIdentifier,omitempty"`
	SuperUserSecret     FlexSecret `db:"super_user_secret" json:"-"`
	CreatedAt           time.Time  `db:"created_at" json:"createdAt"`
}

type Employee struct {
	ID            string    `db:"id"`
	CondominiumID *string   `db:"condominium_id"`
	Name          string    `db:"name"`
	Identifier    string    `db:"identifier"`
	Secret        string    `db:"secret"`
	Role          string    `db:"role"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
}

type Resident struct {
	ID            string  `db:"id" json:"id"`
	CondominiumID string  `db:"condominium_id" json:"condominiumId"`
	Name          string  `db:"name" json:"name"`
	Unit          string  `db:"unit" json:"unit"`
	Block         *string `db:"block" json:"block,omitempty"`
	Phone         string  `db:"phone" json:"phone"`
	Active        bool    `db:"active" json:"active"`
}

type Delivery struct {
	ID                string     `db:"id" json:"id"`
	CondominiumID     *string    `db:"condominium_id" json:"condominiumId,omitempty"`
	ResidentID        string     `db:"resident_id" json:"residentId"`
	StaffID           string     `db:"staff_id" json:"staffId"`
	PickupCode        string     `db:"pickup_code" json:"pickupCode"`
	PhotoURL          string     `db:"photo_url" json:"photoUrl"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	Status            string     `db:"status" json:"status"`
	DeliveredAt       time.Time  `db:"delivered_at" json:"deliveredAt"`
	PickedUpAt        *time.Time `db:"picked_up_at" json:"pickedUpAt,omitempty"`
	PickupDescription *string    `db:"pickup_description" json:"pickupDescription,omitempty"`
	NotificationSent  bool       `db:"notification_sent" json:"notificationSent"`
}

// DeliveryWithResident is a delivery joined with the resident it is held for.
type DeliveryWithResident struct {
	Delivery
	ResidentName  string  `db:"resident_name" json:"residentName"`
	ResidentPhone string  `db:"resident_phone" json:"residentPhone"`
	ResidentUnit  string  `db:"resident_unit" json:"residentUnit"`
	ResidentBlock *string `db:"resident_block" json:"residentBlock,omitempty"`
}

type MediaAsset struct {
	ID          string    `db:"id"`
	Bucket      string    `db:"bucket"`
	StorageKey  string    `db:"storage_key"`
	ContentType string    `db:"content_type"`
	SizeBytes   int64     `db:"size_bytes"`
	SHA256      string    `db:"sha256"`
	CreatedAt   time.Time `db:"created_at"`
}

// DeliveryReportRow adds the registering staff member's name for reports.
type DeliveryReportRow struct {
	DeliveryWithResident
	StaffName *string `db:"staff_name" json:"staffName,omitempty"`
}
