package middleware

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/livedesk/internal/shared/utils"
)

const (
	HeaderAPIVersion     = "X-API-Version"
	ContextKeyAPIVersion = "api_version"

	CurrentAPIVersion = 1
	MinAPIVersion     = 1
)

var acceptVersionRegex = regexp.MustCompile(`application/vnd\.livedesk\.v(\d+)\+json`)

// APIVersion negotiates the API version from X-API-Version or a
// application/vnd.livedesk.vN+json Accept header, in that order. Requests
// naming a version outside the supported range get 406; requests naming none
// get CurrentAPIVersion. The resolved version is echoed in X-API-Version.
func APIVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		version, ok := requestedAPIVersion(c)
		if !ok {
			version = CurrentAPIVersion
		} else if version < MinAPIVersion || version > CurrentAPIVersion {
			utils.ErrorResponse(c, http.StatusNotAcceptable, "unsupported api version "+strconv.Itoa(version))
			c.Abort()
			return
		}

		c.Set(ContextKeyAPIVersion, version)
		c.Header(HeaderAPIVersion, strconv.Itoa(version))
		c.Next()
	}
}

// GetAPIVersion returns the negotiated version, or CurrentAPIVersion when
// APIVersion did not run.
func GetAPIVersion(c *gin.Context) int {
	if v, ok := c.Get(ContextKeyAPIVersion); ok {
		if ver, ok := v.(int); ok {
			return ver
		}
	}
	return CurrentAPIVersion
}

func requestedAPIVersion(c *gin.Context) (int, bool) {
	if h := c.GetHeader(HeaderAPIVersion); h != "" {
		if v, err := strconv.Atoi(h); err == nil {
			return v, true
		}
	}

	if m := acceptVersionRegex.FindStringSubmatch(c.GetHeader("Accept")); len(m) == 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v, true
		}
	}

	return 0, false
}
