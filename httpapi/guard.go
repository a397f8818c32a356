package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/campustrack/authcore"
)

const principalLocalsKey = "authcore.principal"

// PrincipalFromContext returns the principal installed by [RequireAuth].
func PrincipalFromContext(c *fiber.Ctx) (authcore.Principal, bool) {
	principal, ok := c.Locals(principalLocalsKey).(authcore.Principal)
	return principal, ok
}

// RequireAuth validates the Authorization bearer token and installs the
// resolved principal into the request locals. Any failure, including a
// token whose principal no longer exists, yields 401.
func RequireAuth(engine *authcore.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return writeUnauthorized(c)
		}

		principal, err := engine.ValidateToken(c.Context(), raw)
		if err != nil {
			return writeUnauthorized(c)
		}

		c.Locals(principalLocalsKey, principal)
		return c.Next()
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
