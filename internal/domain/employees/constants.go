package employees

const (
	StatusActive   = "Active"
	StatusOnLeave  = "On Leave"
	StatusInactive = "Inactive"
)

var Statuses = []string{StatusActive, StatusOnLeave, StatusInactive}

func ValidStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}
