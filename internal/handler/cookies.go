package handler

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/wb-go/wbf/ginext"

	"github.com/Match-Score-project/Match-Score/internal/dto"
)

const (
	FilterLocationCookie = "matchScore_filterLocal"
	FilterKindCookie     = "matchScore_filterType"
	FlashCookie          = "matchScore_flash"

	filterMaxAge = 365 * 24 * 60 * 60
)

func (h *Handler) setCookie(c *ginext.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, url.QueryEscape(value), maxAge, "/", "", h.CookieSecure, false)
}

func readCookie(c *ginext.Context, name string) string {
	raw, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	v, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}
	return v
}

func (h *Handler) GetFilters(c *ginext.Context) {
	dto.SuccessResponse(c, dto.FiltersResponse{
		Location: readCookie(c, FilterLocationCookie),
		Kind:     readCookie(c, FilterKindCookie),
	})
}

// PutFilters remembers the listing filters; empty values clear them.
func (h *Handler) PutFilters(c *ginext.Context) {
	var req dto.FiltersRequest
	if !h.bind(c, &req) {
		return
	}
	for name, v := range map[string]string{FilterLocationCookie: req.Location, FilterKindCookie: req.Kind} {
		if v == "" {
			h.setCookie(c, name, "", -1)
			continue
		}
		h.setCookie(c, name, v, filterMaxAge)
	}
	dto.SuccessResponse(c, dto.FiltersResponse{Location: req.Location, Kind: req.Kind})
}

// setFlash leaves a one-shot marker with the match name for the next page.
func (h *Handler) setFlash(c *ginext.Context, matchName string) {
	h.setCookie(c, FlashCookie, matchName, 0)
}

// GetFlash returns and consumes the flash marker.
func (h *Handler) GetFlash(c *ginext.Context) {
	name := readCookie(c, FlashCookie)
	if name == "" {
		dto.SuccessResponse(c, dto.FlashResponse{})
		return
	}
	h.setCookie(c, FlashCookie, "", -1)
	dto.SuccessResponse(c, dto.FlashResponse{
		MatchName: name,
		Message:   fmt.Sprintf("Inscrição na partida \"%s\" realizada com sucesso!", name),
	})
}
