package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"session-service/internal/jwt"

	"github.com/gofiber/fiber/v2"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of http request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)
)

const claimsKey = "operatorClaims"

// bearerToken returns the token from the Authorization header, or a message
// describing why it is unusable.
func bearerToken(c *fiber.Ctx) (token string, problem string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", "Missing authorization header"
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "Invalid authorization header format"
	}
	return parts[1], ""
}

// AuthMiddleware admits requests carrying a valid operator token signed with
// secret.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, problem := bearerToken(c)
		if problem != "" {
			return fail(c, fiber.StatusUnauthorized, problem)
		}

		claims, err := jwt.ValidateToken(tokenString, secret)
		if err != nil {
			if errors.Is(err, jwtv5.ErrTokenExpired) {
				return fail(c, fiber.StatusUnauthorized, "Token has expired")
			}
			return fail(c, fiber.StatusUnauthorized, "Invalid token")
		}

		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return fail(c, fiber.StatusUnauthorized, "Subject not found in token claims")
		}

		c.Locals(claimsKey, claims)

		return c.Next()
	}
}

func GetSubjectFromClaims(c *fiber.Ctx) (string, error) {
	claims, ok := c.Locals(claimsKey).(jwtv5.MapClaims)
	if !ok {
		return "", errors.New("claims not found in context")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return "", errors.New("subject not found in claims")
	}

	return sub, nil
}

func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start).Seconds()
		statusCode := c.Response().StatusCode()

		if err != nil {
			var e *fiber.Error

			if errors.As(err, &e) {
				statusCode = e.Code
			} else {
				statusCode = fiber.StatusInternalServerError
			}
		}

		method := c.Method()
		path := c.Path()
		if route := c.Route(); route != nil && route.Path != "" {
			path = route.Path
		}
		statusStr := fmt.Sprintf("%d", statusCode)

		httpRequestTotal.WithLabelValues(method, path, statusStr).Inc()
		httpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration)

		return err
	}
}
