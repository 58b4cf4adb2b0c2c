package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with every endpoint the client consumes.
func NewRouter(h *Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(log))
	h.Register(r)
	return r
}

// Register mounts the handlers on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/api/health", h.Health)

	auth := r.Group("/api/auth")
	auth.POST("/login", h.Login)
	auth.POST("/register", h.RegisterAccount)
	auth.POST("/pending-status", h.PendingStatus)
	auth.POST("/logout", h.Logout)
	auth.GET("/me", h.RequireAuth(), h.Me)

	admin := r.Group("/api/admin")
	admin.POST("/approve", h.Approve)
	admin.POST("/certificates", h.IssueCertificate)

	r.GET("/api/verify/certificate/:code", h.VerifyCertificate)
	r.GET("/api/certificate/:id", h.RequireAuth(), h.GetCertificate)

	in := r.Group("/api/intern", h.RequireAuth())
	in.GET("/dashboard", h.Dashboard)

	in.GET("/attendance", h.ListAttendance)
	in.POST("/attendance/mark", h.MarkAttendance)
	in.POST("/attendance/checkout", h.Checkout)

	in.GET("/tasks", h.ListTasks)
	in.POST("/submit", h.SubmitTask)
	in.GET("/submissions", h.ListSubmissions)

	in.GET("/leave", h.ListLeave)
	in.POST("/leave", h.ApplyLeave)

	in.GET("/messages", h.ListMessages)
	in.POST("/send-message", h.SendMessage)
	in.POST("/message/:id/read", h.MarkRead)

	in.GET("/goals", h.ListGoals)
	in.POST("/goals", h.CreateGoal)
	in.PUT("/goal/:id", h.UpdateGoal)

	in.GET("/certificates", h.ListCertificates)
	in.GET("/announcements", h.ListAnnouncements)
	in.GET("/notifications", h.ListNotifications)

	in.PUT("/profile/update", h.UpdateProfile)
	in.PUT("/profile", h.ChangePassword)
	in.POST("/profile/upload-photo", h.UploadPhoto)
}
