package middleware

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRateLimitKeysByActor(t *testing.T) {
	app := newRoleApp(uint(3), "student", RateLimit("submissions", 2, time.Minute))

	require.Equal(t, fiber.StatusOK, perform(t, app).StatusCode)
	require.Equal(t, fiber.StatusOK, perform(t, app).StatusCode)
	require.Equal(t, fiber.StatusTooManyRequests, perform(t, app).StatusCode)
}
