package reviews

import "time"

// EmployeeSnapshot is the employee row joined onto a review read.
type EmployeeSnapshot struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Position   string `json:"position"`
	Department string `json:"department"`
	ImageURL   string `json:"imageUrl"`
}

type Review struct {
	ID                 string            `json:"id"`
	OrganizationID     string            `json:"organizationId"`
	UserID             string            `json:"userId"`
	EmployeeID         string            `json:"employeeId"`
	TemplateID         string            `json:"templateId,omitempty"`
	Title              string            `json:"title"`
	ReviewType         string            `json:"reviewType"`
	ReviewerName       string            `json:"reviewerName"`
	ReviewPeriod       string            `json:"reviewPeriod"`
	DueDate            *time.Time        `json:"dueDate,omitempty"`
	Strengths          string            `json:"strengths"`
	Improvements       string            `json:"improvements"`
	AdditionalComments string            `json:"additionalComments"`
	TonePreference     string            `json:"tonePreference"`
	Rating             *int              `json:"rating,omitempty"`
	Status             string            `json:"status"`
	Progress           int               `json:"progress"`
	WorkflowState      string            `json:"workflowState"`
	Content            *string           `json:"content"`
	LastError          string            `json:"lastError,omitempty"`
	IdempotencyKey     string            `json:"-"`
	RequestHash        string            `json:"-"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
	Employee           *EmployeeSnapshot `json:"employee,omitempty"`
	FieldValues        []FieldValue      `json:"fieldValues,omitempty"`
}

type SubmitInput struct {
	OrganizationID     string
	UserID             string
	EmployeeID         string
	TemplateID         string
	ReviewType         string
	ReviewPeriod       string
	ReviewerName       string
	DueDate            *time.Time
	Strengths          string
	Improvements       string
	AdditionalComments string
	TonePreference     string
	Rating             string
	IdempotencyKey     string
	FieldValues        map[string]string
}

type Filter struct {
	EmployeeID string
	Status     string
	Limit      int
	Offset     int
}

type Template struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ReviewType     string    `json:"reviewType"`
	CreatedBy      string    `json:"createdBy,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	Fields         []Field   `json:"fields"`
}

type Field struct {
	ID         string   `json:"id"`
	TemplateID string   `json:"templateId"`
	Label      string   `json:"label"`
	FieldType  string   `json:"fieldType"`
	Required   bool     `json:"required"`
	Options    []string `json:"options"`
	Position   int      `json:"position"`
}

type FieldValue struct {
	FieldID string `json:"fieldId"`
	Label   string `json:"label,omitempty"`
	Value   string `json:"value"`
}
