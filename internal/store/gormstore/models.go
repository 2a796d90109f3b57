package gormstore

import (
	"time"

	"gorm.io/datatypes"
)

// User represents the users table. Guest customers get placeholder rows
// keyed by contact info so reservations never carry a null owner.
type User struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null"`
	Contact   string `gorm:"index:idx_users_guest_contact"`
	Email     string `gorm:"index:idx_users_guest_email"`
	IsGuest   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }

// Court represents the courts table.
type Court struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"not null"`
	HourlyRate int64  `gorm:"not null"`
	Status     string `gorm:"not null;default:Available"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Court) TableName() string { return "courts" }

// Equipment represents the equipments table. Stock is a ceiling, not a
// ledger; no column is ever decremented on rental.
type Equipment struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Name       string `gorm:"not null"`
	Stock      int    `gorm:"not null"`
	HourlyRate int64  `gorm:"not null"`
	Status     string `gorm:"not null;default:Active"`
	Unit       string
	Weight     string
	Tension    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (Equipment) TableName() string { return "equipments" }

// Reservation represents the reservations table. ExternalReference carries
// a unique index as the storage-level backstop for webhook deduplication;
// it is nullable so locally-created rows without a gateway id coexist.
type Reservation struct {
	ID                int64   `gorm:"primaryKey;autoIncrement"`
	UserID            int64   `gorm:"not null;index"`
	CourtID           *int64  `gorm:"index:idx_reservations_court_date,priority:1"`
	Date              string  `gorm:"not null;index:idx_reservations_court_date,priority:2"`
	StartMinutes      int     `gorm:"not null"`
	EndMinutes        int     `gorm:"not null"`
	Status            string  `gorm:"not null;index"`
	TotalAmount       int64   `gorm:"not null"`
	ReferenceNumber   string  `gorm:"not null;index"`
	ExternalReference *string `gorm:"uniqueIndex:uniq_reservations_external_ref"`
	Notes             string
	IsAdminCreated    bool `gorm:"not null;default:false"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (Reservation) TableName() string { return "reservations" }

// Payment represents the payments table, one row per booking group anchored
// to the group's first reservation.
type Payment struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	ReservationID int64  `gorm:"not null;index"`
	Amount        int64  `gorm:"not null"`
	Method        string `gorm:"not null"`
	Status        string `gorm:"not null;index"`
	TransactionID string `gorm:"index"`
	Notes         string
	Metadata      datatypes.JSON
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Payment) TableName() string { return "payments" }

// EquipmentRental groups the rental lines for one reservation.
type EquipmentRental struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	ReservationID int64  `gorm:"not null;index"`
	Date          string `gorm:"not null;index"`
	TotalAmount   int64  `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (EquipmentRental) TableName() string { return "equipment_rentals" }

// EquipmentRentalItem is one rented line with the hourly rate frozen at
// booking time.
type EquipmentRentalItem struct {
	ID           int64 `gorm:"primaryKey;autoIncrement"`
	RentalID     int64 `gorm:"not null;index"`
	EquipmentID  int64 `gorm:"not null;index"`
	Quantity     int   `gorm:"not null"`
	StartMinutes int   `gorm:"not null"`
	EndMinutes   int   `gorm:"not null"`
	HourlyRate   int64 `gorm:"not null"`
	Subtotal     int64 `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (EquipmentRentalItem) TableName() string { return "equipment_rental_items" }

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&User{},
		&Court{},
		&Equipment{},
		&Reservation{},
		&Payment{},
		&EquipmentRental{},
		&EquipmentRentalItem{},
	}
}
