package middlewares

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// Secure sets the usual security headers. HSTS and the https redirect only
// apply when the server terminates TLS itself.
func Secure(tls bool) gin.HandlerFunc {
	return secure.New(secure.Config{
		IsDevelopment:        !tls,
		SSLRedirect:          tls,
		STSSeconds:           315360000,
		STSIncludeSubdomains: true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		IENoOpen:             true,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
	})
}
