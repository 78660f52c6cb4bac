package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Charge-source records are owned by the admission/pharmacy/lab subsystems;
// billing reads them and never writes them.

// OccupancySegment is one stay in a specific bed. A nil EndDate means the
// patient still occupies the bed.
type OccupancySegment struct {
	ID         snowflake.ID
	Admission  snowflake.ID `gorm:"column:admission_id"`
	RoomLabel  string
	BedLabel   string
	RatePerDay float64
	StartDate  time.Time
	EndDate    *time.Time
}

// RoomCharge is an occupancy segment priced for the current moment.
type RoomCharge struct {
	Segment OccupancySegment
	Days    int
	Amount  float64
}

// MedicationCharge aggregates all administered doses of one prescription.
type MedicationCharge struct {
	ID           snowflake.ID
	Admission    snowflake.ID `gorm:"column:admission_id"`
	Name         string
	PricePerUnit float64
	UnitsPerDose float64
	DosesGiven   int64
}

// LabBillingStatus tracks whether a finished lab report is billable yet.
type LabBillingStatus string

const (
	LabBillingPending LabBillingStatus = "pending"
	LabBillingBilled  LabBillingStatus = "billed"
)

// LabCharge is a finished lab report with its fixed catalog price.
type LabCharge struct {
	ID            snowflake.ID
	Admission     snowflake.ID `gorm:"column:admission_id"`
	TestName      string
	Price         float64
	BillingStatus LabBillingStatus
	ReportKey     string
}

// AdmissionFacts is the patient/admission block printed on the invoice.
type AdmissionFacts struct {
	AdmissionID     snowflake.ID
	AdmissionNumber string
	PatientName     string
	PatientGender   string
	PatientDOB      *time.Time
	PatientAddress  string
	RoomLabel       string
	BedLabel        string
	Clinician       string
	Diagnosis       string
	ClinicalSummary string
	AdmittedAt      time.Time
}
