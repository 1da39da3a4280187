package quota

import (
	"os"
	"strconv"

	"github.com/ovaphlow/pitchfork/service-bookcrossing/internal/user/entity"
)

// DefaultLimitFromEnv reads QUOTA_DEFAULT_LIMIT, the limit given to new users.
func DefaultLimitFromEnv() int {
	if v, err := strconv.Atoi(os.Getenv("QUOTA_DEFAULT_LIMIT")); err == nil && v > 0 {
		return v
	}
	return entity.DefaultLimit
}
