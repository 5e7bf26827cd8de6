package auth

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// MessageInternalError replaces the message of every 5xx response
const MessageInternalError = "Internal server error"

// ErrorResponse is the JSON body of every failed API call
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteError renders err as {"success":false,"error":...} using the status
// code carried by the rich error. Internal details never reach the client.
func WriteError(c *fiber.Ctx, logger Logger, err error) error {
	if logger == nil {
		logger = defaultLogger("http")
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(http.StatusInternalServerError)
	}

	code := richErr.Code
	if code == 0 {
		code = http.StatusInternalServerError
	}

	message := richErr.Message
	if code >= http.StatusInternalServerError {
		logger.Error(
			"Request failed",
			"path", c.Path(),
			"error", err,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		message = MessageInternalError
	} else {
		logger.Debug(
			"Request rejected",
			"path", c.Path(),
			"status", code,
			"text_code", richErr.TextCode,
		)
	}

	if code == http.StatusTooManyRequests {
		if secs, ok := richErr.Metadata["retry_after_seconds"].(int); ok && secs > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
		}
	}

	return c.Status(code).JSON(ErrorResponse{Success: false, Error: message})
}

func setSessionCookie(c *fiber.Ctx, name, value string, expires time.Time, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func clearSessionCookie(c *fiber.Ctx, name string, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
