package dataset

// Warehouse table names.
const (
	TableEnrollments  = "openimis-dataset-enrollments"
	TablePayments     = "openimis-dataset-payments"
	TablePopulation   = "openimis-dataset-population"
	TableClaimGeneral = "openimis-dataset-claim-general"
	TableClaimDetails = "openimis-dataset-claim-details"
	TableBills        = "openimis-dataset-bills"
)

// HeaderEnrollments is the column order of the enrollments dataset.
var HeaderEnrollments = []string{
	"Health Facility Enrollment",
	"Health Facility LGA",
	"Product",
	"Enrollment Date",
	"Insuree Age",
	"Insuree Gender",
	"Insuree Sector",
	"Payment Amount",
	"Policy Status",
}

// HeaderPopulation is the column order of the population (vital records
// cross-reference) dataset.
var HeaderPopulation = []string{
	"Insuree LGA",
	"Insuree Age",
	"Insuree Gender",
	"Insuree Data Reception Date",
	"Insuree Already Enrolled",
}

// HeaderPayments is the column order of the payments dataset.
var HeaderPayments = []string{
	"Health Facility LGA",
	"Health Facility",
	"Payment Date",
	"Payment Type",
	"Product",
	"Amount",
	"Insuree Sector",
}

// HeaderClaimGeneral is the column order of the claim summary dataset.
var HeaderClaimGeneral = []string{
	"Health Facility",
	"Health Facility LGA",
	"Claim Admin",
	"Claim Status",
	"Diagnosis",
	"Insuree Gender",
	"Insuree Age",
	"Product",
	"Claim Rejection Reason",
	"Claimed Date",
	"Submission Date",
	"Processed Date",
	"Bill Date",
	"Amount Requested",
	"Amount Approved",
	"Amount Paid",
	"Number of Items",
	"Number of Rejected Items",
	"Number of Approved Items",
	"Number of Services",
	"Number of Rejected Services",
	"Number of Approved Services",
}

// HeaderClaimDetails is the column order of the claim line-item dataset.
var HeaderClaimDetails = []string{
	"Name",
	"Type",
	"Item/Service Status",
	"Rejection Reason",
	"Claim ID",
	"Claim Status",
	"Claim Diagnosis",
	"Health Facility",
	"Health Facility LGA",
}

// HeaderBills is the column order of the bills dataset.
var HeaderBills = []string{
	"Health Facility",
	"Health Facility LGA",
	"Amount",
	"Creation Date",
	"Bill Month",
	"Bill Year",
	"Bill Product",
}
