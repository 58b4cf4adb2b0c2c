package sdk

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/celerix-dev/intern-connect/internal/api"
	"github.com/celerix-dev/intern-connect/pkg/schema"
)

// devKit runs the development backend and returns a logged-in kit.
func devKit(t *testing.T, wrap bool) (*Manager, *Intern, *api.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &api.Handler{
		Dir:         api.NewDirectory(),
		Tokens:      api.NewTokens("test-secret", time.Hour),
		AutoApprove: true,
		Wrap:        wrap,
	}
	r := gin.New()
	h.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, newStore(), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	m := NewManager(c)
	t.Cleanup(func() { m.Close() })

	reg := m.Register(t.Context(), schema.RegisterRequest{
		FullName: "Asha K",
		Email:    "asha@example.com",
		Password: "secret1",
		Role:     "intern",
	})
	require.True(t, reg.Success, reg.Error)
	require.NotEmpty(t, reg.InternID)

	res := m.Login(t.Context(), "asha@example.com", "secret1", true)
	require.True(t, res.Success, res.Error)
	require.Equal(t, reg.InternID, res.User.InternID())

	return m, NewIntern(c), h
}

func TestIntern_EndToEnd(t *testing.T) {
	for _, wrap := range []bool{false, true} {
		t.Run(map[bool]string{false: "flat", true: "wrapped"}[wrap], func(t *testing.T) {
			m, in, _ := devKit(t, wrap)
			ctx := t.Context()

			// Identity round-trip through /me.
			snap := m.RefreshUser(ctx)
			require.True(t, snap.IsAuthenticated)
			assert.Equal(t, "Asha K", snap.User.FullName())

			resp, err := in.Tasks(ctx, "pending")
			require.NoError(t, err)
			tasks, err := resp.Items("tasks")
			require.NoError(t, err)
			require.Len(t, tasks, 2)
			taskID := tasks[0].(map[string]any)["id"].(string)

			_, err = in.SubmitTask(ctx, schema.TaskSubmission{TaskID: taskID, Content: "done"})
			require.NoError(t, err)
			resp, err = in.Submissions(ctx, "")
			require.NoError(t, err)
			subs, _ := resp.Items("submissions")
			assert.Len(t, subs, 1)

			_, err = in.CheckIn(ctx, "Office")
			require.NoError(t, err)
			_, err = in.CheckIn(ctx, "Office")
			assert.ErrorIs(t, err, ErrValidation, "second check-in is a 409")
			_, err = in.CheckOut(ctx)
			require.NoError(t, err)

			_, err = in.ApplyLeave(ctx, schema.LeaveApplication{LeaveType: "sick", StartDate: "2026-03-01", EndDate: "2026-03-02", Reason: "flu"})
			require.NoError(t, err)
			resp, err = in.LeaveRequests(ctx)
			require.NoError(t, err)
			leave, _ := resp.Items("leave_requests")
			assert.Len(t, leave, 1)

			resp, err = in.CreateGoal(ctx, schema.NewGoal{Title: "Ship the CLI"})
			require.NoError(t, err)
			goal := ResolvePayload(mustPayload(t, resp)).Object("goal")
			progress := 40
			_, err = in.UpdateGoal(ctx, goal.String("id"), schema.GoalUpdate{Progress: &progress})
			require.NoError(t, err)

			resp, err = in.Dashboard(ctx)
			require.NoError(t, err)
			stats := ResolvePayload(mustPayload(t, resp)).Object("stats")
			assert.Equal(t, float64(1), stats["pending_tasks"])
			assert.Equal(t, true, stats["checked_in_today"])

			resp, err = in.Announcements(ctx)
			require.NoError(t, err)
			ann, _ := resp.Items("announcements")
			assert.NotEmpty(t, ann)

			resp, err = in.Notifications(ctx)
			require.NoError(t, err)
			notes, _ := resp.Items("notifications")
			assert.NotEmpty(t, notes, "approval notification")

			resp, err = in.UpdateProfile(ctx, schema.ProfileUpdate{Phone: "9111111111", Address: "Mysuru"})
			require.NoError(t, err)
			user := UserFrom(resp)
			require.NotNil(t, user)
			require.NoError(t, m.UpdateUser(user))
			assert.Equal(t, "Mysuru", m.User()["address"])

			_, err = in.ChangePassword(ctx, "wrong", "newpass", "newpass")
			assert.ErrorIs(t, err, ErrValidation)
			assert.True(t, m.IsAuthenticated(), "a 400 does not end the session")
		})
	}
}

func TestIntern_CertificatesAndMessages(t *testing.T) {
	m, in, h := devKit(t, false)
	ctx := t.Context()

	cert, err := h.Dir.Issue(m.User().InternID(), "Internship Completion")
	require.NoError(t, err)

	resp, err := in.Certificates(ctx)
	require.NoError(t, err)
	certs, _ := resp.Items("certificates")
	assert.Len(t, certs, 1)

	_, err = in.Certificate(ctx, cert["id"].(string))
	require.NoError(t, err)

	resp, err = in.VerifyCertificate(ctx, cert["verification_code"].(string))
	require.NoError(t, err)
	assert.Equal(t, true, mustPayload(t, resp)["valid"])

	_, err = in.VerifyCertificate(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = in.SendMessage(ctx, schema.OutgoingMessage{RecipientID: "mentor-1", Subject: "Hi", Content: "Hello"})
	require.NoError(t, err)
	resp, err = in.Messages(ctx)
	require.NoError(t, err)
	msgs, _ := resp.Items("messages")
	require.Len(t, msgs, 1)
	_, err = in.MarkMessageRead(ctx, msgs[0].(map[string]any)["id"].(string))
	require.NoError(t, err)

	resp, err = in.UploadPhoto(ctx, "data:image/png;base64,AAAA")
	require.NoError(t, err)
	assert.NotEmpty(t, mustPayload(t, resp).String("photo_url"))
}

func TestIntern_LogoutRevokesServerSession(t *testing.T) {
	m, in, _ := devKit(t, false)
	ctx := t.Context()

	require.NoError(t, m.Logout(ctx))
	assert.False(t, m.IsAuthenticated())

	// Neither bearer nor cookie is accepted any more.
	_, err := in.Dashboard(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestIntern_PendingAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &api.Handler{Dir: api.NewDirectory(), Tokens: api.NewTokens("s", time.Hour)}
	r := gin.New()
	h.Register(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := NewClient(srv.URL, newStore())
	require.NoError(t, err)
	m := NewManager(c)
	defer m.Close()

	require.True(t, m.Register(t.Context(), schema.RegisterRequest{FullName: "P", Email: "p@example.com", Password: "secret1"}).Success)

	res := m.Login(t.Context(), "p@example.com", "secret1", false)
	assert.False(t, res.Success)
	assert.Equal(t, schema.StatusPending, res.Status)
	assert.Equal(t, http.StatusForbidden, res.HTTPStatus)

	p, err := m.CheckPendingStatus(t.Context(), "p@example.com")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusPending, p.String("status"))
}

func mustPayload(t *testing.T, r *Response) schema.Payload {
	t.Helper()
	p, err := r.Payload()
	require.NoError(t, err)
	return p
}
