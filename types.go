package authcore

import "context"

// ChallengeAction declares the flow a challenge request belongs to. The
// engine rejects a signup request for an existing account and a login
// request for a missing one before any code is issued.
type ChallengeAction string

const (
	// ActionSignup requests a challenge for account creation.
	ActionSignup ChallengeAction = "signup"
	// ActionLogin requests a challenge for an existing account.
	ActionLogin ChallengeAction = "login"
)

// ProfileKind classifies a hydrated profile. It is derived from field
// presence on every hydration and never stored independently.
type ProfileKind string

const (
	// KindTeacher marks a profile that carries a teacher identifier.
	KindTeacher ProfileKind = "teacher"
	// KindStudent is the default classification.
	KindStudent ProfileKind = "student"
)

// Principal is the minimal account record owned by the auth core. Profile
// data (student or teacher details) is attached by contact identifier
// through [ProfileResolver], not by foreign key.
//
// At least one of Email or Phone is set; each is globally unique when
// present.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Contact returns the contact identifier the principal is keyed by,
// preferring email.
func (p Principal) Contact() string {
	if p.Email != "" {
		return p.Email
	}
	return p.Phone
}

// Profile is the full hydrated profile attached to a principal. It is the
// union of the student and teacher shapes owned by the external profile
// store; unset fields are omitted on the wire.
type Profile struct {
	ID        string `json:"id"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`

	// Teacher fields.
	TeacherID string   `json:"teacherId,omitempty"`
	Subjects  []string `json:"subjects,omitempty"`

	// Student fields.
	Branch           string `json:"branch,omitempty"`
	Semester         int    `json:"semester,omitempty"`
	Section          string `json:"section,omitempty"`
	EnrollmentNo     string `json:"enrollmentNo,omitempty"`
	UniversityRollNo string `json:"universityRollNo,omitempty"`
}

// Kind derives the profile classification from field presence.
func (p *Profile) Kind() ProfileKind {
	if p != nil && p.TeacherID != "" {
		return KindTeacher
	}
	return KindStudent
}

// Contact returns the profile's contact identifier, preferring email.
func (p *Profile) Contact() string {
	if p == nil {
		return ""
	}
	if p.Email != "" {
		return p.Email
	}
	return p.Phone
}

// AuthResult is returned by [Engine.Authenticate] after a successful
// challenge verification: the resolved (or freshly created) principal and a
// signed session token bound to it.
type AuthResult struct {
	Principal Principal
	Token     string
	// Created reports whether the principal was created by this
	// authentication (signup flow).
	Created bool
}

// AccountDirectory resolves contact identifiers to principals. It is the
// boundary to the account document store; implementations must enforce
// sparse uniqueness of email and phone.
//
// FindByContact and FindByID return [ErrAccountNotFound] when no principal
// matches. Create returns [ErrDuplicateContact] when a uniqueness constraint
// is violated concurrently.
type AccountDirectory interface {
	FindByContact(ctx context.Context, contact string) (Principal, error)
	FindByID(ctx context.Context, id string) (Principal, error)
	Create(ctx context.Context, contact string) (Principal, error)
}

// ResolvedProfile pairs a hydrated profile with its derived classification.
type ResolvedProfile struct {
	Kind    ProfileKind `json:"userType"`
	Profile Profile     `json:"profile"`
}

// ProfileResolver looks up full profile data by contact identifier. It
// returns [ErrProfileNotFound] when neither a teacher nor a student record
// matches.
type ProfileResolver interface {
	ResolveByContact(ctx context.Context, email, phone string) (ResolvedProfile, error)
}

// ProfileFetcher retrieves the caller's own profile using a bearer session
// token. It returns [ErrUnauthorized] when the token is invalid, expired, or
// no longer resolves to a live principal.
type ProfileFetcher interface {
	FetchByToken(ctx context.Context, token string) (Profile, error)
}

// CodeSender delivers an issued challenge code out of band (SMS or email).
// When a sender is configured and code echoing is disabled, the code never
// leaves the server in a response body.
type CodeSender interface {
	SendCode(ctx context.Context, contact, code string) error
}
