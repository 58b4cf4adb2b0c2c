package api

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/celerix-dev/intern-connect/pkg/schema"
)

var (
	ErrAccountExists   = errors.New("an account with this email already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrBadCredentials  = errors.New("invalid email or password")
	ErrRecordNotFound  = errors.New("record not found")
	ErrConflict        = errors.New("conflicting state")
)

// Account is a registered user of the development backend.
type Account struct {
	InternID         string
	Email            string
	FullName         string
	Phone            string
	USN              string
	Role             string
	Department       string
	Status           string
	Address          string
	EmergencyContact string
	PhotoURL         string
	PasswordHash     []byte
	CreatedAt        time.Time
}

// Public is the identity record returned to clients.
func (a *Account) Public() gin.H {
	return gin.H{
		"intern_id":         a.InternID,
		"email":             a.Email,
		"full_name":         a.FullName,
		"phone":             a.Phone,
		"usn":               a.USN,
		"role":              a.Role,
		"department":        a.Department,
		"status":            a.Status,
		"address":           a.Address,
		"emergency_contact": a.EmergencyContact,
		"photo_url":         a.PhotoURL,
		"created_at":        a.CreatedAt.Format(time.RFC3339),
	}
}

// Record is one row of a per-intern collection (tasks, leave, goals, ...).
type Record map[string]any

// Collections held per intern.
const (
	colAttendance    = "attendance"
	colTasks         = "tasks"
	colSubmissions   = "submissions"
	colLeave         = "leave"
	colMessages      = "messages"
	colGoals         = "goals"
	colCertificates  = "certificates"
	colNotifications = "notifications"
)

// Directory is the in-memory database of the development backend.
type Directory struct {
	mu            sync.RWMutex
	accounts      map[string]*Account // by lower-cased email
	byID          map[string]*Account
	records       map[string]map[string][]Record // intern id -> collection -> rows
	announcements []Record
	now           func() time.Time
	cost          int
}

func NewDirectory() *Directory {
	return &Directory{
		accounts: make(map[string]*Account),
		byID:     make(map[string]*Account),
		records:  make(map[string]map[string][]Record),
		announcements: []Record{{
			"id":         "ann-welcome",
			"title":      "Welcome to the internship programme",
			"content":    "Check your tasks every morning and mark attendance before 10:00.",
			"created_at": time.Now().Format(time.RFC3339),
		}},
		now:  time.Now,
		cost: bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a PENDING account, or an APPROVED one when approve is set.
func (d *Directory) Register(req schema.RegisterRequest, approve bool) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), d.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	email := normalizeEmail(req.Email)
	if _, ok := d.accounts[email]; ok {
		return nil, ErrAccountExists
	}

	role := req.Role
	if role == "" {
		role = "intern"
	}
	acct := &Account{
		InternID:     "INT-" + strings.ToUpper(uuid.NewString()[:8]),
		Email:        email,
		FullName:     req.FullName,
		Phone:        req.Phone,
		USN:          req.USN,
		Role:         role,
		Department:   req.Department,
		Status:       schema.StatusPending,
		PasswordHash: hash,
		CreatedAt:    d.now(),
	}
	d.accounts[email] = acct
	d.byID[acct.InternID] = acct
	d.records[acct.InternID] = make(map[string][]Record)
	if approve {
		d.approveLocked(acct)
	}
	return acct, nil
}

// Authenticate checks credentials. Status is left for the caller to judge.
func (d *Directory) Authenticate(email, password string) (*Account, error) {
	acct, err := d.Lookup(email)
	if err != nil {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return acct, nil
}

// Lookup finds an account by email.
func (d *Directory) Lookup(email string) (*Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.accounts[normalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

// Get finds an account by intern id.
func (d *Directory) Get(internID string) (*Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acct, ok := d.byID[internID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

// Decide approves or rejects a pending account.
func (d *Directory) Decide(email string, approve bool) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.accounts[normalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if approve {
		d.approveLocked(acct)
	} else {
		acct.Status = schema.StatusRejected
	}
	cp := *acct
	return &cp, nil
}

// approveLocked activates an account and seeds its starter tasks.
func (d *Directory) approveLocked(acct *Account) {
	if acct.Status == schema.StatusApproved {
		return
	}
	acct.Status = schema.StatusApproved
	due := d.now().AddDate(0, 0, 7).Format(time.DateOnly)
	cols := d.records[acct.InternID]
	cols[colTasks] = append(cols[colTasks],
		Record{"id": uuid.NewString(), "title": "Set up your development environment", "status": "pending", "due_date": due},
		Record{"id": uuid.NewString(), "title": "Write an introduction for your mentor", "status": "pending", "due_date": due},
	)
	cols[colNotifications] = append(cols[colNotifications], Record{
		"id": uuid.NewString(), "message": "Your account has been approved", "read": false,
		"created_at": d.now().Format(time.RFC3339),
	})
}

// UpdateProfile changes the editable contact fields.
func (d *Directory) UpdateProfile(internID string, u schema.ProfileUpdate) (*Account, error) {
	return d.mutate(internID, func(a *Account) error {
		a.Phone = u.Phone
		a.Address = u.Address
		a.EmergencyContact = u.EmergencyContact
		return nil
	})
}

// ChangePassword verifies the current password before replacing it.
func (d *Directory) ChangePassword(internID, current, next string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(next), d.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = d.mutate(internID, func(a *Account) error {
		if bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(current)) != nil {
			return ErrBadCredentials
		}
		a.PasswordHash = hash
		return nil
	})
	return err
}

// SetPhoto records a new profile photo URL.
func (d *Directory) SetPhoto(internID, url string) (*Account, error) {
	return d.mutate(internID, func(a *Account) error {
		a.PhotoURL = url
		return nil
	})
}

func (d *Directory) mutate(internID string, fn func(*Account) error) (*Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acct, ok := d.byID[internID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if err := fn(acct); err != nil {
		return nil, err
	}
	cp := *acct
	return &cp, nil
}

// List returns copies of an intern's rows, newest last, optionally filtered by status.
func (d *Directory) List(internID, collection, status string) []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []Record{}
	for _, r := range d.records[internID][collection] {
		if status != "" && r["status"] != status {
			continue
		}
		out = append(out, maps.Clone(r))
	}
	return out
}

// Append adds a row, assigning id and created_at.
func (d *Directory) Append(internID, collection string, r Record) Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	row := maps.Clone(r)
	if row == nil {
		row = Record{}
	}
	row["id"] = uuid.NewString()
	row["created_at"] = d.now().Format(time.RFC3339)
	d.ensure(internID)[collection] = append(d.records[internID][collection], row)
	return maps.Clone(row)
}

// Update applies fn to the row with the given id.
func (d *Directory) Update(internID, collection, id string, fn func(Record) error) (Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rows := d.records[internID][collection]
	i := slices.IndexFunc(rows, func(r Record) bool { return r["id"] == id })
	if i < 0 {
		return nil, ErrRecordNotFound
	}
	if err := fn(rows[i]); err != nil {
		return nil, err
	}
	rows[i]["updated_at"] = d.now().Format(time.RFC3339)
	return maps.Clone(rows[i]), nil
}

// Find returns the row with the given id in any intern's collection.
func (d *Directory) Find(collection, id string) (Record, string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for internID, cols := range d.records {
		for _, r := range cols[collection] {
			if r["id"] == id {
				return maps.Clone(r), internID, nil
			}
		}
	}
	return nil, "", ErrRecordNotFound
}

// FindBy returns the first row across all interns whose field equals val.
func (d *Directory) FindBy(collection, field, val string) (Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, cols := range d.records {
		for _, r := range cols[collection] {
			if r[field] == val {
				return maps.Clone(r), nil
			}
		}
	}
	return nil, ErrRecordNotFound
}

// Announcements returns the global feed.
func (d *Directory) Announcements() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Record, 0, len(d.announcements))
	for _, r := range d.announcements {
		out = append(out, maps.Clone(r))
	}
	return out
}

// Issue grants a certificate to an intern.
func (d *Directory) Issue(internID, title string) (Record, error) {
	if _, err := d.Get(internID); err != nil {
		return nil, err
	}
	return d.Append(internID, colCertificates, Record{
		"title":             title,
		"verification_code": strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]),
		"issued_on":         d.now().Format(time.DateOnly),
	}), nil
}

// Today returns the current date in the attendance format.
func (d *Directory) Today() string {
	return d.now().Format(time.DateOnly)
}

func (d *Directory) ensure(internID string) map[string][]Record {
	cols, ok := d.records[internID]
	if !ok {
		cols = make(map[string][]Record)
		d.records[internID] = cols
	}
	return cols
}
