package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campustrack/authcore"
)

// Module wires the engine and profile resolver into fiber routes.
type Module struct {
	engine   *authcore.Engine
	resolver authcore.ProfileResolver
}

// NewModule builds the route set. Both the engine and the resolver are
// required; the lookup and profile routes resolve through the latter.
func NewModule(engine *authcore.Engine, resolver authcore.ProfileResolver) *Module {
	return &Module{
		engine:   engine,
		resolver: resolver,
	}
}

// Register mounts the module's routes.
func (m *Module) Register(r fiber.Router) {
	auth := r.Group("/api/auth")
	auth.Post("/signup", m.handleSignup)
	auth.Post("/login", m.handleLogin)

	r.Post("/api/users/lookup", m.handleLookup)
	r.Get("/api/profile", RequireAuth(m.engine), m.handleProfile)
}

// NewApp returns a fiber application with the module mounted. Convenience
// for cmd wiring and handler tests.
func NewApp(m *Module) *fiber.App {
	app := fiber.New(fiber.Config{AppName: "campus-auth"})
	m.Register(app)
	return app
}
