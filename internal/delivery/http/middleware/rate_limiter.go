package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const rateWindow = time.Minute

// window tracks the request count of one client in the current window.
type window struct {
	count int
	start time.Time
}

// RateLimiter enforces a per-IP limit of maxRequests per minute using fixed
// windows. A non-positive maxRequests disables limiting.
func RateLimiter(maxRequests int) gin.HandlerFunc {
	if maxRequests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var mu sync.Mutex
	clients := make(map[string]*window)
	lastSweep := time.Now()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		// Drop stale clients at most once per window.
		if now.Sub(lastSweep) > rateWindow {
			for k, w := range clients {
				if now.Sub(w.start) > 2*rateWindow {
					delete(clients, k)
				}
			}
			lastSweep = now
		}

		w, ok := clients[ip]
		if !ok || now.Sub(w.start) > rateWindow {
			w = &window{start: now}
			clients[ip] = w
		}
		if w.count >= maxRequests {
			retryAfter := rateWindow - now.Sub(w.start)
			mu.Unlock()
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute.", maxRequests),
			})
			return
		}
		w.count++
		mu.Unlock()

		c.Next()
	}
}
