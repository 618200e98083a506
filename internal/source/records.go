package source

import "time"

// Location is a row of tblLocations.
type Location struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	ParentID *int64 `db:"parent_id"`
}

// Village is a village location with the id of its grandparent (the
// district) resolved by the query.
type Village struct {
	ID         int64  `db:"id"`
	DistrictID *int64 `db:"district_id"`
}

// Facility is a row of tblHF.
type Facility struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	LocationID int64  `db:"location_id"`
}

// Officer is an interactive user attached to a health facility.
type Officer struct {
	ID         int64 `db:"id"`
	FacilityID int64 `db:"facility_id"`
}

// Product is a row of tblProduct.
type Product struct {
	ID   int64  `db:"id"`
	Code string `db:"code"`
	Name string `db:"name"`
}

// Diagnosis is a row of tblICDCodes.
type Diagnosis struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// BatchRun is a row of tblBatchRun.
type BatchRun struct {
	ID    int64 `db:"id"`
	Year  int   `db:"year"`
	Month int   `db:"month"`
}

// Policy is a live policy joined with its product and its family head.
type Policy struct {
	ID           int64      `db:"id"`
	OfficerID    *int64     `db:"officer_id"`
	ProductCode  string     `db:"product_code"`
	ProductName  string     `db:"product_name"`
	EnrollDate   *time.Time `db:"enroll_date"`
	Status       int        `db:"status"`
	HeadGender   *string    `db:"head_gender"`
	HeadDOB      *time.Time `db:"head_dob"`
	FormalSector *bool      `db:"formal_sector"`
}

// Insuree is a live insuree joined with its family location.
type Insuree struct {
	ID               int64      `db:"id"`
	FamilyLocationID *int64     `db:"family_location_id"`
	Gender           *string    `db:"gender"`
	DOB              *time.Time `db:"dob"`
	ValidityFrom     time.Time  `db:"validity_from"`
}

// Premium is a live premium joined with its policy and the family head.
type Premium struct {
	ID           int64      `db:"id"`
	OfficerID    *int64     `db:"officer_id"`
	ProductID    int64      `db:"product_id"`
	PayDate      *time.Time `db:"pay_date"`
	PayType      *string    `db:"pay_type"`
	Amount       *float64   `db:"amount"`
	FormalSector *bool      `db:"formal_sector"`
}

// Claim is a live claim joined with its admin, insuree and batch run.
type Claim struct {
	ID              int64      `db:"id"`
	FacilityID      int64      `db:"facility_id"`
	AdminOtherNames *string    `db:"admin_other_names"`
	AdminLastName   *string    `db:"admin_last_name"`
	Status          int        `db:"status"`
	DiagnosisID     int64      `db:"diagnosis_id"`
	InsureeGender   *string    `db:"insuree_gender"`
	InsureeDOB      *time.Time `db:"insuree_dob"`
	RejectionReason *int       `db:"rejection_reason"`
	DateClaimed     *time.Time `db:"date_claimed"`
	SubmitStamp     *time.Time `db:"submit_stamp"`
	ProcessStamp    *time.Time `db:"process_stamp"`
	BatchRunDate    *time.Time `db:"batch_run_date"`
	Claimed         *float64   `db:"claimed"`
	Approved        *float64   `db:"approved"`
	Remunerated     *float64   `db:"remunerated"`
}

// Detail kinds.
const (
	KindItem    = "Item"
	KindService = "Service"
)

// DetailRef is the slice of a claim item or service needed to summarize
// its claim.
type DetailRef struct {
	ClaimID   int64  `db:"claim_id"`
	Kind      string `db:"kind"`
	Status    int    `db:"status"`
	ProductID *int64 `db:"product_id"`
}

// ClaimDetail is a live claim item or service joined with its claim and
// the item/service name.
type ClaimDetail struct {
	ID              int64  `db:"id"`
	Kind            string `db:"kind"`
	Name            string `db:"name"`
	Status          int    `db:"status"`
	RejectionReason *int   `db:"rejection_reason"`
	ClaimID         int64  `db:"claim_id"`
	ClaimStatus     int    `db:"claim_status"`
	DiagnosisID     int64  `db:"diagnosis_id"`
	FacilityID      int64  `db:"facility_id"`
}

// Bill is a non-deleted invoice-module bill. ThirdpartyID and SubjectID are
// generic references stored as text.
type Bill struct {
	ID           string     `db:"id"`
	ThirdpartyID string     `db:"thirdparty_id"`
	SubjectID    string     `db:"subject_id"`
	Code         string     `db:"code"`
	AmountNet    *float64   `db:"amount_net"`
	DateBill     *time.Time `db:"date_bill"`
}
