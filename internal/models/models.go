package models

import "time"

// TourStatus is the lifecycle state of a tour
type TourStatus string

const (
	TourPlanned   TourStatus = "PLANNED"
	TourActive    TourStatus = "ACTIVE"
	TourCompleted TourStatus = "COMPLETED"
)

// Valid reports whether s is a known tour status
func (s TourStatus) Valid() bool {
	switch s {
	case TourPlanned, TourActive, TourCompleted:
		return true
	}
	return false
}

// VisitStatus is the state of one family's visit within a started tour
type VisitStatus string

const (
	VisitPending   VisitStatus = "PENDING"
	VisitOnWay     VisitStatus = "ON_WAY"
	VisitVisiting  VisitStatus = "VISITING"
	VisitCompleted VisitStatus = "COMPLETED"
	VisitSkipped   VisitStatus = "SKIPPED"
)

// Valid reports whether s is one of the five visit statuses
func (s VisitStatus) Valid() bool {
	switch s {
	case VisitPending, VisitOnWay, VisitVisiting, VisitCompleted, VisitSkipped:
		return true
	}
	return false
}

// Terminal reports whether the visit is finished (only requeue leaves these states)
func (s VisitStatus) Terminal() bool {
	return s == VisitCompleted || s == VisitSkipped
}

// Active reports whether the guide is currently heading to or at this visit
func (s VisitStatus) Active() bool {
	return s == VisitOnWay || s == VisitVisiting
}

// TourGuide is the owner of tours
type TourGuide struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	PushToken    *string   `json:"push_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Tour is a guide's planned route of family visits
type Tour struct {
	ID          string     `json:"id"`
	GuideID     string     `json:"tour_guide_id"`
	Name        string     `json:"name"`
	City        string     `json:"city"`
	State       string     `json:"state"`
	ZipCode     string     `json:"zip_code"`
	Status      TourStatus `json:"status"`
	InviteCode  string     `json:"invite_code"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`

	Families []*Family `json:"families,omitempty"`
	Visits   []*Visit  `json:"visits,omitempty"`
}

// Family is a household signed up to be visited
type Family struct {
	ID           string    `json:"id"`
	TourID       string    `json:"tour_id"`
	StreetNumber string    `json:"street_number"`
	StreetName   string    `json:"street_name"`
	FamilyName   string    `json:"family_name"`
	Order        int       `json:"order"`
	PhoneNumber1 *string   `json:"phone_number_1"`
	PhoneNumber2 *string   `json:"phone_number_2"`
	SMSOptIn     bool      `json:"sms_opt_in"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	CreatedAt    time.Time `json:"created_at"`
	Children     []*Child  `json:"children"`
}

// Phones returns the family's configured phone numbers, primary first
func (f *Family) Phones() []string {
	var phones []string
	if f.PhoneNumber1 != nil && *f.PhoneNumber1 != "" {
		phones = append(phones, *f.PhoneNumber1)
	}
	if f.PhoneNumber2 != nil && *f.PhoneNumber2 != "" {
		phones = append(phones, *f.PhoneNumber2)
	}
	return phones
}

// Child belongs to a family; children are always replaced as a set
type Child struct {
	ID                  string  `json:"id"`
	FamilyID            string  `json:"family_id"`
	FirstName           string  `json:"first_name"`
	SpecialInstructions *string `json:"special_instructions,omitempty"`
}

// Visit is the runtime record of one family within a started tour
type Visit struct {
	ID            string      `json:"id"`
	TourID        string      `json:"tour_id"`
	FamilyID      string      `json:"family_id"`
	Order         int         `json:"order"`
	Status        VisitStatus `json:"status"`
	StartedAt     *time.Time  `json:"started_at"`
	CompletedAt   *time.Time  `json:"completed_at"`
	SMSResponse   *string     `json:"sms_response,omitempty"`
	SMSResponseAt *time.Time  `json:"sms_response_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`

	Family *Family `json:"family,omitempty"`
}

// Coordinates is a geocoded point
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// FamilyOrder assigns a queue position to one family. Order must fit a
// Postgres INTEGER and stay above math.MinInt32, which marks "before every visit".
type FamilyOrder struct {
	FamilyID string `json:"family_id" validate:"required"`
	Order    int    `json:"order" validate:"gt=-2147483648,lt=2147483647"`
}
