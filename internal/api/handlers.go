package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hilstonwill/contact-api/internal/contact"
	"github.com/labstack/echo/v4"
)

const (
	msgAlive       = "Contact API is running"
	msgIgnored     = "OK"
	msgInvalidBody = "Invalid request body"
	msgRequired    = "Email and message are required"
	msgSent        = "Message sent successfully"
	msgSendFailed  = "Error sending message"
)

type response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// contactRequest keeps the field names the portfolio form posts.
type contactRequest struct {
	Name    string   `json:"nombre" form:"nombre"`
	Email   string   `json:"correo" form:"correo"`
	Message string   `json:"mensaje" form:"mensaje"`
	Trap    honeypot `json:"trap" form:"trap"`
}

// honeypot accepts any JSON value so that bots filling the field with a
// number or object get the same answer as any other filled trap. Falsy
// values (null, false, 0, "") count as empty.
type honeypot string

func (h *honeypot) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*h = ""
	case bool:
		*h = ""
		if t {
			*h = "true"
		}
	case float64:
		*h = ""
		if t != 0 {
			*h = honeypot(data)
		}
	case string:
		*h = honeypot(t)
	default:
		*h = honeypot(data)
	}
	return nil
}

func (h *honeypot) UnmarshalParam(param string) error {
	*h = honeypot(param)
	return nil
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, response{OK: true, Message: msgAlive})
}

func (s *Server) handleContact(c echo.Context) error {
	var req contactRequest
	if err := c.Bind(&req); err != nil {
		if tooLarge(err) {
			return echo.ErrStatusRequestEntityTooLarge
		}
		return c.JSON(http.StatusBadRequest, response{OK: false, Message: msgInvalidBody})
	}

	outcome, err := s.contact.Handle(c.Request().Context(), contact.Submission{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
		Trap:    string(req.Trap),
	})

	var verr *contact.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, response{OK: false, Message: msgRequired})
	case err != nil:
		// Details were logged by the handler; the caller only gets a generic answer.
		return c.JSON(http.StatusInternalServerError, response{OK: false, Message: msgSendFailed})
	case outcome == contact.OutcomeIgnored:
		return c.JSON(http.StatusOK, response{OK: true, Message: msgIgnored})
	default:
		return c.JSON(http.StatusOK, response{OK: true, Message: msgSent})
	}
}

// tooLarge reports whether binding stopped at the body limit. For bodies
// without a Content-Length the limit trips mid-decode.
func tooLarge(err error) bool {
	if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return true
	}
	var he *echo.HTTPError
	return errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge
}
