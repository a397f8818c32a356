package httpapi

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/campustrack/authcore"
)

var validate = validator.New()

type authRequest struct {
	Contact string `json:"contact" validate:"required,min=3"`
	OTP     string `json:"otp" validate:"omitempty,numeric"`
	Action  string `json:"action" validate:"omitempty,oneof=signup login"`
}

func (m *Module) handleSignup(c *fiber.Ctx) error {
	return m.handleAuth(c, authcore.ActionSignup, "NOT_FOUND")
}

func (m *Module) handleLogin(c *fiber.Ctx) error {
	return m.handleAuth(c, authcore.ActionLogin, "NO_ACCOUNT")
}

// handleAuth serves both halves of a flow: a request without an OTP issues
// a challenge, a request with one completes it and mints a session token.
func (m *Module) handleAuth(c *fiber.Ctx, defaultAction authcore.ChallengeAction, notFoundCode string) error {
	var req authRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Contact is required",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Contact is required",
		})
	}

	action := defaultAction
	if defaultAction == authcore.ActionSignup && req.Action == string(authcore.ActionLogin) {
		action = authcore.ActionLogin
	}

	if req.OTP == "" {
		code, err := m.engine.RequestChallenge(c.Context(), req.Contact, action)
		if err != nil {
			return writeEngineError(c, err, notFoundCode)
		}

		message := "OTP sent for signup"
		if action == authcore.ActionLogin {
			message = "OTP sent for login"
		}
		if code == "" {
			code = "OTP_SENT"
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": message,
			"code":    code,
		})
	}

	result, err := m.engine.Authenticate(c.Context(), req.Contact, req.OTP, action)
	if err != nil {
		return writeEngineError(c, err, notFoundCode)
	}

	message := "Login successful"
	if result.Created {
		message = "User registered"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"token":   result.Token,
		"user":    result.Principal,
	})
}

type lookupRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,min=3"`
}

func (m *Module) handleLookup(c *fiber.Ctx) error {
	var req lookupRequest
	if err := c.BodyParser(&req); err != nil || (req.Email == "" && req.Phone == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Phone or email is required",
		})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Phone or email is required",
		})
	}

	resolved, err := m.resolver.ResolveByContact(c.Context(), req.Email, req.Phone)
	if err != nil {
		if errors.Is(err, authcore.ErrProfileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "No matching teacher or student found",
			})
		}
		return writeInternalError(c)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"userType": resolved.Kind,
		"profile":  resolved.Profile,
	})
}

// handleProfile returns the caller's hydrated profile. When no teacher or
// student record matches the principal's contact, the principal itself is
// returned in profile shape so a fresh signup can still restore a session.
func (m *Module) handleProfile(c *fiber.Ctx) error {
	principal, ok := PrincipalFromContext(c)
	if !ok {
		return writeUnauthorized(c)
	}

	resolved, err := m.resolver.ResolveByContact(c.Context(), principal.Email, principal.Phone)
	if err != nil {
		if !errors.Is(err, authcore.ErrProfileNotFound) {
			return writeInternalError(c)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"user": authcore.Profile{
				ID:    principal.ID,
				Email: principal.Email,
				Phone: principal.Phone,
			},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    resolved.Profile,
	})
}

func writeEngineError(c *fiber.Ctx, err error, notFoundCode string) error {
	var throttled *authcore.ThrottledRetryError

	switch {
	case errors.As(err, &throttled):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("Wait %ds before requesting new OTP", throttled.WaitSeconds),
			"code":    "TOO_MANY_REQUESTS",
		})
	case errors.Is(err, authcore.ErrAccountExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "Account exists. Use login instead.",
			"code":    "ACCOUNT_EXISTS",
		})
	case errors.Is(err, authcore.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "No account found. Please signup.",
			"code":    notFoundCode,
		})
	case errors.Is(err, authcore.ErrDuplicateContact):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "Duplicate account",
			"code":    "DUPLICATE",
		})
	case errors.Is(err, authcore.ErrChallengeExpired):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "OTP expired",
			"code":    "EXPIRED_OTP",
		})
	case errors.Is(err, authcore.ErrChallengeInvalid), errors.Is(err, authcore.ErrCodeInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid OTP",
			"code":    "INVALID_OTP",
		})
	case errors.Is(err, authcore.ErrContactInvalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Contact is required",
		})
	case errors.Is(err, authcore.ErrUnauthorized):
		return writeUnauthorized(c)
	default:
		return writeInternalError(c)
	}
}

func writeUnauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   "Unauthorized",
	})
}

func writeInternalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Internal server error",
	})
}
