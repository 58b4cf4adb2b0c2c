// Package api is a development backend implementing the intern-management
// endpoints, so the client can be exercised without the production service.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/celerix-dev/intern-connect/pkg/schema"
)

type Handler struct {
	Dir    *Directory
	Tokens *Tokens
	Logger *zap.Logger

	// AutoApprove skips the admin approval step for new registrations.
	AutoApprove bool
	// Wrap puts successful bodies inside {"data": ...}, as some deployments do.
	Wrap bool
}

// respond writes a success body, wrapping it when configured.
func (h *Handler) respond(c *gin.Context, status int, body any) {
	if h.Wrap {
		c.JSON(status, gin.H{"data": body})
		return
	}
	c.JSON(status, body)
}

func (h *Handler) log() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Remember bool   `json:"remember"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	acct, err := h.Dir.Authenticate(input.Email, input.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if acct.Status != schema.StatusApproved {
		c.JSON(http.StatusForbidden, statusBody(acct.Status))
		return
	}

	token, _, err := h.Tokens.Issue(acct.InternID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	maxAge := 0 // browser-session cookie unless the user asked to be remembered
	if input.Remember {
		maxAge = int(h.Tokens.TTL().Seconds())
	}
	c.SetCookie(SessionCookie, token, maxAge, "/", "", false, true)

	h.log().Info("login", zap.String("intern_id", acct.InternID))
	h.respond(c, http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    acct.Public(),
		"token":   token,
	})
}

func (h *Handler) RegisterAccount(c *gin.Context) {
	var input struct {
		USN        string `json:"usn"`
		FullName   string `json:"full_name" binding:"required"`
		Phone      string `json:"phone"`
		Email      string `json:"email" binding:"required,email"`
		Password   string `json:"password" binding:"required,min=6"`
		Role       string `json:"role"`
		Department string `json:"department"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.Dir.Register(schema.RegisterRequest(input), h.AutoApprove)
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	msg := "Registration successful. Please wait for admin approval."
	if acct.Status == schema.StatusApproved {
		msg = "Registration successful. You can now log in."
	}
	h.respond(c, http.StatusCreated, gin.H{"message": msg, "intern_id": acct.InternID})
}

func (h *Handler) PendingStatus(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}

	acct, err := h.Dir.Lookup(input.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No registration found for this email"})
		return
	}

	body := gin.H{"status": acct.Status, "intern_id": acct.InternID}
	switch acct.Status {
	case schema.StatusApproved:
		body["message"] = "Your account has been approved"
	case schema.StatusRejected:
		body["message"] = "Your registration has been rejected"
	default:
		body["message"] = "Your account is pending admin approval"
	}
	h.respond(c, http.StatusOK, body)
}

// Logout revokes the presented token, if any, and always succeeds.
func (h *Handler) Logout(c *gin.Context) {
	if raw := bearer(c); raw != "" {
		if claims, err := h.Tokens.Verify(raw); err == nil {
			h.Tokens.Revoke(claims)
		}
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	h.respond(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *Handler) Me(c *gin.Context) {
	h.respond(c, http.StatusOK, account(c).Public())
}

func (h *Handler) Approve(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Decision string `json:"decision" binding:"required,oneof=approve reject"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	acct, err := h.Dir.Decide(input.Email, input.Decision == "approve")
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "Decision recorded", "user": acct.Public()})
}

func (h *Handler) IssueCertificate(c *gin.Context) {
	var input struct {
		InternID string `json:"intern_id" binding:"required"`
		Title    string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cert, err := h.Dir.Issue(input.InternID, input.Title)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.respond(c, http.StatusCreated, gin.H{"certificate": cert})
}

func (h *Handler) VerifyCertificate(c *gin.Context) {
	cert, err := h.Dir.FindBy(colCertificates, "verification_code", c.Param("code"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"valid": false, "error": "Certificate not found"})
		return
	}
	h.respond(c, http.StatusOK, gin.H{"valid": true, "certificate": cert})
}

func (h *Handler) GetCertificate(c *gin.Context) {
	cert, owner, err := h.Dir.Find(colCertificates, c.Param("id"))
	if err != nil || owner != account(c).InternID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Certificate not found"})
		return
	}
	h.respond(c, http.StatusOK, gin.H{"certificate": cert})
}
