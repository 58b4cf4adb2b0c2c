package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/celerix-dev/intern-connect/pkg/schema"
)

func (h *Handler) list(c *gin.Context, collection, key string) {
	rows := h.Dir.List(account(c).InternID, collection, c.Query("status"))
	h.respond(c, http.StatusOK, gin.H{key: rows})
}

func (h *Handler) Dashboard(c *gin.Context) {
	acct := account(c)
	id := acct.InternID

	unread := 0
	for _, m := range h.Dir.List(id, colMessages, "") {
		if read, _ := m["read"].(bool); !read {
			unread++
		}
	}
	checkedIn := false
	for _, a := range h.Dir.List(id, colAttendance, "") {
		if a["date"] == h.Dir.Today() {
			checkedIn = true
		}
	}

	stats := gin.H{
		"pending_tasks":    len(h.Dir.List(id, colTasks, "pending")),
		"completed_tasks":  len(h.Dir.List(id, colTasks, "completed")),
		"attendance_days":  len(h.Dir.List(id, colAttendance, "")),
		"checked_in_today": checkedIn,
		"unread_messages":  unread,
		"active_goals":     len(h.Dir.List(id, colGoals, "active")),
		"pending_leave":    len(h.Dir.List(id, colLeave, "pending")),
		"certificates":     len(h.Dir.List(id, colCertificates, "")),
		"announcements":    len(h.Dir.Announcements()),
	}
	h.respond(c, http.StatusOK, gin.H{"user": acct.Public(), "stats": stats})
}

// --- Attendance ---

func (h *Handler) ListAttendance(c *gin.Context) {
	h.list(c, colAttendance, "attendance")
}

func (h *Handler) MarkAttendance(c *gin.Context) {
	var input schema.AttendanceMark
	// The location is optional; an empty body is accepted.
	_ = c.ShouldBindJSON(&input)

	id := account(c).InternID
	today := h.Dir.Today()
	for _, a := range h.Dir.List(id, colAttendance, "") {
		if a["date"] == today {
			c.JSON(http.StatusConflict, gin.H{"error": "Attendance already marked for today"})
			return
		}
	}

	row := h.Dir.Append(id, colAttendance, Record{
		"date":     today,
		"check_in": time.Now().Format(time.TimeOnly),
		"location": input.Location,
		"status":   "present",
	})
	h.respond(c, http.StatusCreated, gin.H{"message": "Attendance marked", "attendance": row})
}

func (h *Handler) Checkout(c *gin.Context) {
	id := account(c).InternID
	today := h.Dir.Today()

	var openID string
	for _, a := range h.Dir.List(id, colAttendance, "") {
		if a["date"] == today {
			if _, done := a["check_out"]; !done {
				openID, _ = a["id"].(string)
			}
		}
	}
	if openID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No open check-in for today"})
		return
	}

	row, err := h.Dir.Update(id, colAttendance, openID, func(r Record) error {
		r["check_out"] = time.Now().Format(time.TimeOnly)
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "Checked out", "attendance": row})
}

// --- Tasks ---

func (h *Handler) ListTasks(c *gin.Context) {
	h.list(c, colTasks, "tasks")
}

func (h *Handler) SubmitTask(c *gin.Context) {
	var input struct {
		TaskID   string `json:"task_id" binding:"required"`
		Content  string `json:"content" binding:"required"`
		FileData string `json:"file_data"`
		FileType string `json:"file_type"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := account(c).InternID
	_, err := h.Dir.Update(id, colTasks, input.TaskID, func(r Record) error {
		r["status"] = "submitted"
		return nil
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}

	sub := h.Dir.Append(id, colSubmissions, Record{
		"task_id":   input.TaskID,
		"content":   input.Content,
		"file_type": input.FileType,
		"has_file":  input.FileData != "",
		"status":    "pending",
	})
	h.respond(c, http.StatusCreated, gin.H{"message": "Task submitted", "submission": sub})
}

func (h *Handler) ListSubmissions(c *gin.Context) {
	h.list(c, colSubmissions, "submissions")
}

// --- Leave ---

func (h *Handler) ListLeave(c *gin.Context) {
	h.list(c, colLeave, "leave_requests")
}

func (h *Handler) ApplyLeave(c *gin.Context) {
	var input struct {
		LeaveType string `json:"leave_type" binding:"required"`
		StartDate string `json:"start_date" binding:"required"`
		EndDate   string `json:"end_date" binding:"required"`
		Reason    string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err1 := time.Parse(time.DateOnly, input.StartDate)
	end, err2 := time.Parse(time.DateOnly, input.EndDate)
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dates must be YYYY-MM-DD"})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "End date must not be before start date"})
		return
	}

	row := h.Dir.Append(account(c).InternID, colLeave, Record{
		"leave_type": input.LeaveType,
		"start_date": input.StartDate,
		"end_date":   input.EndDate,
		"days":       int(end.Sub(start).Hours()/24) + 1,
		"reason":     input.Reason,
		"status":     "pending",
	})
	h.respond(c, http.StatusCreated, gin.H{"message": "Leave request submitted", "leave": row})
}

// --- Messages ---

func (h *Handler) ListMessages(c *gin.Context) {
	h.list(c, colMessages, "messages")
}

func (h *Handler) SendMessage(c *gin.Context) {
	var input struct {
		RecipientID string `json:"recipient_id" binding:"required"`
		Subject     string `json:"subject"`
		Content     string `json:"content" binding:"required"`
		ParentID    string `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sender := account(c)
	sent := h.Dir.Append(sender.InternID, colMessages, Record{
		"direction":    "sent",
		"recipient_id": input.RecipientID,
		"subject":      input.Subject,
		"content":      input.Content,
		"parent_id":    input.ParentID,
		"read":         true,
	})

	// Deliver to another account on this server; external recipients are kept as sent only.
	if _, err := h.Dir.Get(input.RecipientID); err == nil {
		h.Dir.Append(input.RecipientID, colMessages, Record{
			"direction":   "received",
			"sender_id":   sender.InternID,
			"sender_name": sender.FullName,
			"subject":     input.Subject,
			"content":     input.Content,
			"parent_id":   input.ParentID,
			"read":        false,
		})
	}
	h.respond(c, http.StatusCreated, gin.H{"message": "Message sent", "sent": sent})
}

func (h *Handler) MarkRead(c *gin.Context) {
	row, err := h.Dir.Update(account(c).InternID, colMessages, c.Param("id"), func(r Record) error {
		r["read"] = true
		return nil
	})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "Marked as read", "id": row["id"]})
}

// --- Goals ---

func (h *Handler) ListGoals(c *gin.Context) {
	h.list(c, colGoals, "goals")
}

func (h *Handler) CreateGoal(c *gin.Context) {
	var input struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		TargetDate  string `json:"target_date"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row := h.Dir.Append(account(c).InternID, colGoals, Record{
		"title":       input.Title,
		"description": input.Description,
		"target_date": input.TargetDate,
		"progress":    0,
		"status":      "active",
	})
	h.respond(c, http.StatusCreated, gin.H{"message": "Goal created", "goal": row})
}

var errBadProgress = errors.New("progress must be between 0 and 100")

func (h *Handler) UpdateGoal(c *gin.Context) {
	var input schema.GoalUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, err := h.Dir.Update(account(c).InternID, colGoals, c.Param("id"), func(r Record) error {
		if input.Progress != nil {
			if *input.Progress < 0 || *input.Progress > 100 {
				return errBadProgress
			}
			r["progress"] = *input.Progress
			if *input.Progress == 100 && input.Status == "" {
				r["status"] = "completed"
			}
		}
		if input.Status != "" {
			r["status"] = input.Status
		}
		return nil
	})
	switch {
	case errors.Is(err, errBadProgress):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusNotFound, gin.H{"error": "Goal not found"})
	default:
		h.respond(c, http.StatusOK, gin.H{"message": "Goal updated", "goal": row})
	}
}

// --- Feeds ---

func (h *Handler) ListCertificates(c *gin.Context) {
	h.list(c, colCertificates, "certificates")
}

func (h *Handler) ListAnnouncements(c *gin.Context) {
	h.respond(c, http.StatusOK, gin.H{"announcements": h.Dir.Announcements()})
}

func (h *Handler) ListNotifications(c *gin.Context) {
	h.list(c, colNotifications, "notifications")
}

// --- Profile ---

func (h *Handler) UpdateProfile(c *gin.Context) {
	var input schema.ProfileUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.Dir.UpdateProfile(account(c).InternID, input)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "Profile updated", "user": acct.Public()})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var input schema.PasswordChange
	if err := c.ShouldBindJSON(&input); err != nil || !input.ChangePassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}
	if len(input.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be at least 6 characters"})
		return
	}
	if input.NewPassword != input.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords do not match"})
		return
	}

	err := h.Dir.ChangePassword(account(c).InternID, input.CurrentPassword, input.NewPassword)
	if errors.Is(err, ErrBadCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (h *Handler) UploadPhoto(c *gin.Context) {
	var input schema.PhotoUpload
	if err := c.ShouldBindJSON(&input); err != nil || !strings.HasPrefix(input.PhotoData, "data:image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo_data must be an image data URI"})
		return
	}

	id := account(c).InternID
	url := "/static/uploads/profile/" + id + "-" + uuid.NewString()[:8] + ".jpg"
	acct, err := h.Dir.SetPhoto(id, url)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "Photo uploaded", "photo_url": url, "user": acct.Public()})
}
