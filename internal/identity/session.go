package identity

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"

	"github.com/Match-Score-project/Match-Score/internal/dto"
)

const (
	SessionCookie = "matchscore_session"
	ctxUserID     = "uid"
)

func (s *Service) SetSession(c *ginext.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(s.cfg.SessionTTL.Seconds()), "/", "", s.cfg.CookieSecure, true)
}

func (s *Service) ClearSession(c *ginext.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", s.cfg.CookieSecure, true)
}

// Gate admits requests carrying a valid session and stores the user id on the
// context. Others get a 401 envelope; the pages send the user to the login
// screen when they see it.
func (s *Service) Gate() gin.HandlerFunc {
	return func(c *ginext.Context) {
		token, _ := c.Cookie(SessionCookie)
		uid, err := s.Authenticate(token)
		if err != nil {
			dto.UnauthorizedError(c, "Sessão expirada. Faça login novamente.")
			return
		}
		c.Set(ctxUserID, uid)
		c.Next()
	}
}

// UserID returns the id the gate stored, or "" outside gated routes.
func UserID(c *ginext.Context) string {
	return c.GetString(ctxUserID)
}
