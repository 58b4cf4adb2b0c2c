package schema

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

// RegisterRequest is the self-registration body. New accounts start PENDING.
type RegisterRequest struct {
	USN        string `json:"usn"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// TaskSubmission submits work for a task. FileData is base64 encoded.
type TaskSubmission struct {
	TaskID   string `json:"task_id"`
	Content  string `json:"content"`
	FileData string `json:"file_data,omitempty"`
	FileType string `json:"file_type,omitempty"`
}

// LeaveApplication requests leave. Dates are YYYY-MM-DD.
type LeaveApplication struct {
	LeaveType string `json:"leave_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// OutgoingMessage is a message sent to a mentor or admin.
type OutgoingMessage struct {
	RecipientID string `json:"recipient_id"`
	Subject     string `json:"subject"`
	Content     string `json:"content"`
	ParentID    string `json:"parent_id,omitempty"`
}

// NewGoal creates a personal goal.
type NewGoal struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TargetDate  string `json:"target_date"`
}

// GoalUpdate changes progress (0-100) and/or status of a goal.
type GoalUpdate struct {
	Progress *int   `json:"progress,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ProfileUpdate changes the editable contact fields.
type ProfileUpdate struct {
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergency_contact"`
}

// PasswordChange is sent to the profile endpoint with ChangePassword set.
type PasswordChange struct {
	ChangePassword  bool   `json:"change_password"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// PhotoUpload carries a base64 data URI.
type PhotoUpload struct {
	PhotoData string `json:"photo_data"`
}

// AttendanceMark is the check-in body.
type AttendanceMark struct {
	Location string `json:"location"`
}
