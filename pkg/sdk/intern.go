package sdk

import (
	"context"
	"net/http"
	"net/url"

	"github.com/celerix-dev/intern-connect/pkg/schema"
)

// Intern groups the intern-facing data endpoints. Every call goes through the
// Client, so it carries the bearer token and a 401 ends the session.
type Intern struct {
	client *Client
}

// NewIntern returns the data services bound to c.
func NewIntern(c *Client) *Intern {
	return &Intern{client: c}
}

func (s *Intern) get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return s.client.Execute(ctx, Request{Path: path, Query: query})
}

func (s *Intern) send(ctx context.Context, method, path string, body any) (*Response, error) {
	return s.client.Execute(ctx, Request{Method: method, Path: path, Body: body})
}

// statusQuery builds ?status=x, or nothing for an empty filter.
func statusQuery(status string) url.Values {
	if status == "" {
		return nil
	}
	return url.Values{"status": {status}}
}

// Dashboard returns the summary shown on the home screen.
func (s *Intern) Dashboard(ctx context.Context) (*Response, error) {
	return s.get(ctx, "/api/intern/dashboard", nil)
}

// --- Attendance ---

func (s *Intern) Attendance(ctx context.Context) (*Response, error) {
	return s.get(ctx, "/api/intern/attendance", nil)
}

// CheckIn marks attendance for today at location.
func (s *Intern) CheckIn(ctx context.Context, location string) (*Response, error) {
	return s.send(ctx, http.MethodPost, "/api/intern/attendance/mark", schema.AttendanceMark{Location: location})
}

func (s *Intern) CheckOut(ctx context.Context) (*Response, error) {
	return s.send(ctx, http.MethodPost, "/api/intern/attendance/checkout", nil)
}

// --- Tasks ---

// Tasks lists assigned tasks, optionally filtered by status.
func (s *Intern) Tasks(ctx context.Context, status string) (*Response, error) {
	return s.get(ctx, "/api/intern/tasks", statusQuery(status))
}

func (s *Intern) SubmitTask(ctx context.Context, sub schema.TaskSubmission) (*Response, error) {
	return s.send(ctx, http.MethodPost, "/api/intern/submit", sub)
}

// Submissions lists the intern's submissions, optionally filtered by review status.
func (s *Intern) Submissions(ctx context.Context, status string) (*Response, error) {
	return s.get(ctx, "/api/intern/submissions", statusQuery(status))
}

// --- Leave ---

func (s *Intern) LeaveRequests(ctx context.Context) (*Response, error) {
	return s.get(ctx, "/api/intern/leave", nil)
}

func (s *Intern) ApplyLeave(ctx context.Context, req schema.LeaveApplication) (*Response, error) {
	return s.send(ctx, http.MethodPost, "/api/intern/leave", req)
}

// --- Messages ---

func (s *Intern) Messages(ctx context.Context) (*Response, error) {
	return s.get(ctx, "/api/intern/messages", nil)
}

func (s *Intern) SendMessage(ctx context.Context, msg schema.OutgoingMessage) (*Response, error) {
	return s.send(ctx, http.MethodPost, "/api/intern/send-message", msg)
}

func (s *Intern) MarkMessageRead(ctx context.Context, id string) (*Response, error) {
	return s.send(ctx, http.MethodPost, "/api/intern/message/"+url.PathEscape(id)+"/read", nil)
}

// --- Goals ---

func (s *Intern) Goals(ctx context.Context) (*Response, error) {
	return s.get(ctx, "/api/intern/goals", nil)
}

func (s *Intern) CreateGoal(ctx context.Context, g schema.NewGoal) (*Response, error) {
	return s.send(ctx, http.MethodPost, "/api/intern/goals", g)
}

func (s *Intern) UpdateGoal(ctx context.Context, id string, u schema.GoalUpdate) (*Response, error) {
	return s.send(ctx, http.MethodPut, "/api/intern/goal/"+url.PathEscape(id), u)
}

// --- Certificates ---

func (s *Intern) Certificates(ctx context.Context) (*Response, error) {
	return s.get(ctx, "/api/intern/certificates", nil)
}

func (s *Intern) Certificate(ctx context.Context, id string) (*Response, error) {
	return s.get(ctx, "/api/certificate/"+url.PathEscape(id), nil)
}

// VerifyCertificate checks a certificate's public verification code.
func (s *Intern) VerifyCertificate(ctx context.Context, code string) (*Response, error) {
	return s.get(ctx, "/api/verify/certificate/"+url.PathEscape(code), nil)
}

// --- Feeds ---

func (s *Intern) Announcements(ctx context.Context) (*Response, error) {
	return s.get(ctx, "/api/intern/announcements", nil)
}

func (s *Intern) Notifications(ctx context.Context) (*Response, error) {
	return s.get(ctx, "/api/intern/notifications", nil)
}

// --- Profile ---

// UpdateProfile changes contact fields. The response carries the updated user.
func (s *Intern) UpdateProfile(ctx context.Context, u schema.ProfileUpdate) (*Response, error) {
	return s.send(ctx, http.MethodPut, "/api/intern/profile/update", u)
}

func (s *Intern) ChangePassword(ctx context.Context, current, next, confirm string) (*Response, error) {
	return s.send(ctx, http.MethodPut, "/api/intern/profile", schema.PasswordChange{
		ChangePassword:  true,
		CurrentPassword: current,
		NewPassword:     next,
		ConfirmPassword: confirm,
	})
}

// UploadPhoto sends a base64 data URI. The response carries photo_url.
func (s *Intern) UploadPhoto(ctx context.Context, dataURI string) (*Response, error) {
	return s.send(ctx, http.MethodPost, "/api/intern/profile/upload-photo", schema.PhotoUpload{PhotoData: dataURI})
}

// UserFrom returns the updated identity carried by a profile response, if any.
func UserFrom(r *Response) schema.User {
	p, err := r.Payload()
	if err != nil {
		return nil
	}
	if u := ResolvePayload(p).Object("user"); u != nil {
		return schema.User(u)
	}
	return nil
}
