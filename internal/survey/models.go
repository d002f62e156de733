package survey

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleMentor  Role = "mentor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username,omitempty"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Group is a chat or channel that assignments are distributed to.
type Group struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"` // group|supergroup|channel
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type QuestionnaireStatus string

const (
	QuestionnaireDraft     QuestionnaireStatus = "draft"
	QuestionnaireActive    QuestionnaireStatus = "active"
	QuestionnaireCompleted QuestionnaireStatus = "completed"
	QuestionnaireArchived  QuestionnaireStatus = "archived"
)

func (s QuestionnaireStatus) Valid() bool {
	switch s {
	case QuestionnaireDraft, QuestionnaireActive, QuestionnaireCompleted, QuestionnaireArchived:
		return true
	}
	return false
}

type Questionnaire struct {
	ID          int64               `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Questions   []Question          `json:"questions"`
	Status      QuestionnaireStatus `json:"status"`
	Tags        []string            `json:"tags"`
	CreatedBy   int64               `json:"created_by"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`

	// aggregates over all assignments, filled by list/get queries
	ResponseCount  int64   `json:"response_count"`
	CompletionRate float64 `json:"completion_rate"`
}

type Assignment struct {
	ID              int64     `json:"id"`
	QuestionnaireID int64     `json:"questionnaire_id"`
	GroupID         int64     `json:"group_id"`
	Name            string    `json:"name"`
	StartAt         time.Time `json:"start_time"`
	DeadlineAt      time.Time `json:"deadline_time"`
	CreatedBy       int64     `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// derived on read, never stored
	Status AssignmentStatus `json:"status"`

	ResponseCount  int64   `json:"response_count"`
	CompletionRate float64 `json:"completion_rate"`
}

type Response struct {
	ID           int64             `json:"id"`
	AssignmentID int64             `json:"assignment_id"`
	StudentID    *int64            `json:"student_id"`
	Student      *StudentRef       `json:"student,omitempty"`
	Answers      map[string]Answer `json:"answers"`
	IsCompleted  bool              `json:"is_completed"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// StudentRef identifies the author of a response; ID is "anonymous" in anonymized projections.
type StudentRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name,omitempty"`
	Username string `json:"username,omitempty"`
}

// Actor is the authenticated caller.
type Actor struct {
	ID   int64
	Role Role
}

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsMentor() bool  { return a.Role == RoleMentor }
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }
