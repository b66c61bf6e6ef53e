package reviews

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// submissionFingerprint is the part of a submission that must match when an
// idempotency key is replayed. Map keys marshal sorted, so the encoding is
// stable for equal inputs.
type submissionFingerprint struct {
	UserID             string            `json:"userId"`
	EmployeeID         string            `json:"employeeId"`
	TemplateID         string            `json:"templateId"`
	ReviewType         string            `json:"reviewType"`
	ReviewPeriod       string            `json:"reviewPeriod"`
	ReviewerName       string            `json:"reviewerName"`
	DueDate            string            `json:"dueDate"`
	Strengths          string            `json:"strengths"`
	Improvements       string            `json:"improvements"`
	AdditionalComments string            `json:"additionalComments"`
	TonePreference     string            `json:"tonePreference"`
	Rating             string            `json:"rating"`
	FieldValues        map[string]string `json:"fieldValues"`
}

// requestHash fingerprints a normalized submission.
func requestHash(in SubmitInput) string {
	fp := submissionFingerprint{
		UserID:             in.UserID,
		EmployeeID:         in.EmployeeID,
		TemplateID:         in.TemplateID,
		ReviewType:         in.ReviewType,
		ReviewPeriod:       in.ReviewPeriod,
		ReviewerName:       in.ReviewerName,
		Strengths:          in.Strengths,
		Improvements:       in.Improvements,
		AdditionalComments: in.AdditionalComments,
		TonePreference:     in.TonePreference,
		Rating:             in.Rating,
		FieldValues:        in.FieldValues,
	}
	if in.DueDate != nil {
		fp.DueDate = in.DueDate.UTC().Format(time.DateOnly)
	}
	payload, _ := json.Marshal(fp)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// matchesRequest reports whether a stored review was created from the same
// submission. Rows written before fingerprints were recorded always match.
func (r Review) matchesRequest(hash string) bool {
	return r.RequestHash == "" || r.RequestHash == hash
}
