// Package codes holds the fixed code → label tables used when flattening
// openIMIS records. Every lookup miss returns Unknown.
package codes

// Unknown is the single sentinel used for any missing lookup.
const Unknown = "Unknown"

// Claim status codes as stored on tblClaim.ClaimStatus.
const (
	ClaimRejected  = 1
	ClaimEntered   = 2
	ClaimChecked   = 4
	ClaimProcessed = 8
	ClaimValuated  = 16
)

// Claim item/service status codes.
const (
	DetailPassed   = 1
	DetailRejected = 2
)

var rejectionReasons = map[int]string{
	-1: "Rejected by the reviewer",
	0:  "Accepted",
	1:  "Unknown Item/Service",
	2:  "Item/Service not in the pricelists associated with the health facility",
	3:  "Item/Service not covered by an active policy of the patient",
	4:  "Item/Service doesn't comply with limitations on patients (men/women, adults/children)",
	5:  "Item/Service doesn't comply with frequency constraint",
	6:  "Item/Service duplicated",
	7:  "Invalid Insuree NIN",
	8:  "Unknown diagnosis",
	9:  "Invalid admission/release dates",
	10: "Item/Service doesn't comply with type of care constraint",
	11: "Maximum number of in-patient admissions exceeded",
	12: "Maximum number of out-patient visits exceeded",
	13: "Maximum number of consultations exceeded",
	14: "Maximum number of surgeries exceeded",
	15: "Maximum number of deliveries exceeded",
	16: "Maximum number of provisions of Item/Service exceeded",
	17: "Item/Service cannot be covered within waiting period",
	18: "N/A",
	19: "Maximum number of antenatal contacts exceeded",
}

var genders = map[string]string{
	"M": "Male",
	"F": "Female",
	"O": "Other",
}

var paymentTypes = map[string]string{
	"B": "Bank transfer",
	"C": "Cash",
	"F": "Funding",
	"M": "Mobile payment",
}

var policyStatuses = map[int]string{
	1: "Idle",
	2: "Active",
	4: "Suspended",
	8: "Expired",
}

var claimStatuses = map[int]string{
	ClaimRejected:  "Rejected",
	ClaimEntered:   "Entered",
	ClaimChecked:   "Checked",
	ClaimProcessed: "Processed",
	ClaimValuated:  "Valuated",
}

var claimDetailStatuses = map[int]string{
	DetailPassed:   "Passed",
	DetailRejected: "Rejected",
}

func lookup[K comparable](m map[K]string, k K) string {
	if v, ok := m[k]; ok {
		return v
	}
	return Unknown
}

// RejectionReason labels a claim or item/service rejection code.
func RejectionReason(code int) string { return lookup(rejectionReasons, code) }

// Gender labels an insuree gender code.
func Gender(code string) string { return lookup(genders, code) }

// PaymentType labels a premium payment type code.
func PaymentType(code string) string { return lookup(paymentTypes, code) }

// PolicyStatus labels a policy status code.
func PolicyStatus(code int) string { return lookup(policyStatuses, code) }

// ClaimStatus labels a claim status code.
func ClaimStatus(code int) string { return lookup(claimStatuses, code) }

// ClaimDetailStatus labels a claim item/service status code.
func ClaimDetailStatus(code int) string { return lookup(claimDetailStatuses, code) }

// Sector labels the family's employment sector.
func Sector(formal bool) string {
	if formal {
		return "Formal"
	}
	return "Informal"
}

// RejectionCodes returns the number of known rejection codes.
func RejectionCodes() int { return len(rejectionReasons) }
