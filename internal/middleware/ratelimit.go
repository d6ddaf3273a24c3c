package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims entries older than the window, then admits the request only
// while fewer than ARGV[5] remain. Returns the new count, or -1 when limited.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)
local count = redis.call('ZCARD', key)
if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
end
return -1
`

func RateLimitKey(scope, clientIP string) string {
	return fmt.Sprintf("rate_limit:%s:ip:%s", scope, clientIP)
}

// RedisRateLimit allows at most limit requests per client IP within window. Redis errors
// let the request through.
func RedisRateLimit(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		now := time.Now()
		windowSec := int64(window.Seconds())
		member := fmt.Sprintf("%d", now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), slidingWindowScript, []string{RateLimitKey(scope, c.ClientIP())},
			now.Unix(), now.Unix()-windowSec, windowSec, member, limit).Int()
		if err != nil {
			c.Next()
			return
		}
		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "Too many attempts, try again later"})
			return
		}
		c.Next()
	}
}
