package reviews

const (
	StatusDraft      = "draft"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusArchived   = "archived"
)

// Progress values written at each workflow step. Advisory only.
const (
	ProgressFailed    = 10
	ProgressDrafted   = 50
	ProgressCompleted = 100
)

// Workflow states record how far the submit sequence got for a row.
const (
	WorkflowGenerating = "generating"
	WorkflowGenerated  = "generated"
	WorkflowNotified   = "notified"
	WorkflowFailed     = "failed"
)

const (
	ToneProfessional = "professional"
	ToneConstructive = "constructive"
	ToneEncouraging  = "encouraging"
	ToneDirect       = "direct"
)

var Tones = []string{ToneProfessional, ToneConstructive, ToneEncouraging, ToneDirect}

var Statuses = []string{StatusDraft, StatusInProgress, StatusCompleted, StatusArchived}

const (
	TypeAnnual     = "annual"
	TypeQuarterly  = "quarterly"
	TypeProbation  = "probation"
	TypeProject    = "project"
	TypeSelf       = "self"
	defaultType    = TypeAnnual
	UsageFeature   = "reviews"
	staleReason    = "generation interrupted"
	maxErrorLength = 500
)

var ReviewTypes = []string{TypeAnnual, TypeQuarterly, TypeProbation, TypeProject, TypeSelf}

const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldRating   = "rating"
	FieldSelect   = "select"
)

var FieldTypes = []string{FieldText, FieldTextarea, FieldRating, FieldSelect}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
