package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/talkincode/wanotify/internal/app"
	"github.com/talkincode/wanotify/internal/domain"
	"github.com/talkincode/wanotify/internal/webserver"
	"go.uber.org/zap"
)

type Response struct {
	Data interface{} `json:"data"`
	Meta *PageMeta   `json:"meta,omitempty"`
}

type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Data: data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, Response{
		Data: data,
		Meta: &PageMeta{Total: total, Page: page, PageSize: pageSize},
	})
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, ErrorResponse{Code: code, Message: message, Detail: detail})
}

// failErr maps a domain error onto an http status.
func failErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Subscriber not found", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid api key", nil)
	case errors.Is(err, domain.ErrForbidden):
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Subscription expired", nil)
	case errors.Is(err, domain.ErrNotConnected), errors.Is(err, domain.ErrServiceUnavailable):
		return fail(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WhatsApp is not connected", nil)
	case errors.Is(err, domain.ErrConflict):
		return fail(c, http.StatusConflict, "CONFLICT", "Conflicting update", err.Error())
	}
	zap.L().Error("adminapi: internal error", zap.String("namespace", "adminapi"), zap.Error(err))
	var detail interface{}
	if !GetApp(c).Config().IsProduction() {
		detail = err.Error()
	}
	return fail(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", detail)
}

func GetApp(c echo.Context) app.AppContext {
	return webserver.GetAppContext(c)
}

func parsePagination(c echo.Context) (page, pageSize int) {
	page, pageSize = 1, 20
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	size := c.QueryParam("perPage")
	if size == "" {
		size = c.QueryParam("pageSize")
	}
	if ps, err := strconv.Atoi(size); err == nil && ps > 0 && ps <= 500 {
		pageSize = ps
	}
	return page, pageSize
}

func normalizeKey(s string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(s))
}

// bindLoose decodes a JSON body into out, matching keys regardless of case
// and separators so both orderId and order_id are accepted.
func bindLoose(c echo.Context, out interface{}) error {
	raw := map[string]interface{}{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &raw); err != nil {
		return errors.Wrap(domain.ErrValidation, "request body is not a json object")
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return errors.Wrapf(domain.ErrValidation, "decode request: %v", err)
	}
	return nil
}

func validate(c echo.Context, v interface{}) error {
	if err := c.Validate(v); err != nil {
		return errors.Wrap(domain.ErrValidation, err.Error())
	}
	return nil
}

// logOpr appends to the admin audit trail. Failures are logged only.
func logOpr(c echo.Context, action, desc string) {
	err := GetApp(c).OprLogs().Create(c.Request().Context(), &domain.SysOprLog{
		OprName:   webserver.CurrentAdmin(c),
		OprIp:     c.RealIP(),
		OptAction: action,
		OptDesc:   desc,
	})
	if err != nil {
		zap.L().Warn("adminapi: write opr log failed", zap.String("namespace", "adminapi"), zap.Error(err))
	}
}
