// Package versioning implements the optimistic concurrency contract shared by
// every mutable chart entity: a monotonically increasing version, exposed as a
// weak ETag and checked against an expected version on write.
package versioning

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/odonto/charting/internal/platform/apperr"
)

// Versioned is implemented by entities that carry a write counter.
type Versioned interface {
	GetVersion() int
}

// SetVersionHeaders sets ETag and Last-Modified headers on the response.
func SetVersionHeaders(c echo.Context, version int, lastModified time.Time) {
	c.Response().Header().Set("ETag", FormatETag(version))
	if !lastModified.IsZero() {
		c.Response().Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
}

// ExpectedFromRequest resolves the version the caller expects to overwrite.
// The If-Match header wins over the body value. A nil result means the
// caller did not ask for a version check.
func ExpectedFromRequest(c echo.Context, body *int) (*int, error) {
	ifMatch := c.Request().Header.Get("If-Match")
	if ifMatch == "" || ifMatch == "*" {
		return body, nil
	}
	v, err := ParseETag(ifMatch)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid If-Match header: "+err.Error())
	}
	return &v, nil
}

// Check returns a Conflict error when expected is set and differs from current.
func Check(resource string, expected *int, current int) error {
	if expected == nil || *expected == current {
		return nil
	}
	return apperr.Conflict("version conflict on %s: expected version %d but current version is %d",
		resource, *expected, current)
}

// ParseETag extracts the version number from an ETag value like W/"3" or "3".
func ParseETag(etag string) (int, error) {
	etag = strings.TrimSpace(etag)
	etag = strings.TrimPrefix(etag, "W/")
	etag = strings.Trim(etag, `"`)

	v, err := strconv.Atoi(etag)
	if err != nil {
		return 0, fmt.Errorf("ETag must contain a numeric version: %s", etag)
	}
	return v, nil
}

// FormatETag creates a weak ETag from a version.
func FormatETag(version int) string {
	return fmt.Sprintf(`W/"%d"`, version)
}
