package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"

	"github.com/aihub/jobboard-ai/app/middleware"
	"github.com/aihub/jobboard-ai/internal/errors"
)

const maxRequestBody = 4 << 20

var (
	validate   = validator.New()
	translator = errors.NewErrorTranslator()
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller

	// Errors logs and records failures. A nil handler only renders them.
	Errors *errors.ErrorHandler

	started time.Time
}

func (c *BaseController) Prepare() {
	c.started = time.Now()
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes the error envelope for err with its mapped status code.
func (c *BaseController) JSONError(err error) {
	var appErr *errors.AppError
	if c.Errors != nil {
		appErr = c.Errors.Resolve(c.Ctx.Request, err, c.started)
	} else {
		appErr = translator.Translate(err)
	}
	if id := middleware.RequestID(c.Ctx); id != "" {
		appErr.RequestID = id
	}
	c.JSON(appErr.HTTPCode, errors.Envelope(appErr))
}

// decode reads the JSON body into dst and validates it. On failure the
// error response is already written and false is returned.
func (c *BaseController) decode(dst interface{}) bool {
	body := c.Ctx.Input.RequestBody
	if len(body) == 0 && c.Ctx.Request.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(c.Ctx.Request.Body, maxRequestBody))
		if err != nil {
			c.JSONError(errors.NewInvalidInputError("body", "unreadable request body").WithCause(err))
			return false
		}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		c.JSONError(errors.NewInvalidInputError("body", "malformed JSON").WithCause(err))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		c.JSONError(translator.Translate(err))
		return false
	}
	return true
}

func (c *BaseController) param(name string) string {
	return strings.TrimSpace(c.Ctx.Input.Param(name))
}
