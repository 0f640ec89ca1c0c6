package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comic-bot/internal/services"
)

// PublishResponse reports a forced publish. Published is false when the
// fetched comic was already known.
type PublishResponse struct {
	Published  bool              `json:"published"`
	ComicID    uint              `json:"comic_id,omitempty"`
	Delivered  int               `json:"delivered"`
	Deliveries map[string]string `json:"deliveries,omitempty"`
}

// CloseResponse reports a forced poll close.
type CloseResponse struct {
	Closed  []uint `json:"closed"`
	Pending []uint `json:"pending"`
	Edited  int    `json:"edited"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// Publish godoc
// @Summary  Fetch today's comic and deliver it to every configured guild (admin)
// @Success  200  {object}  handlers.PublishResponse
// @Failure  502  {object}  handlers.ErrorResponse  "Source unavailable"
// @Router   /admin/publish [post]
func (h *Handlers) Publish(c *gin.Context) {
	report, err := h.publisher.Run(c.Request.Context())
	switch {
	case errors.Is(err, services.ErrScrapeFailed):
		fail(c, http.StatusBadGateway, ErrCodeScrapeFailed, "comic source returned nothing")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodePublishFailed, "publish failed")
		return
	}

	resp := PublishResponse{}
	if report != nil {
		resp.Published = true
		resp.ComicID = report.ComicID
		resp.Delivered = report.Delivered()
		resp.Deliveries = make(map[string]string, len(report.Results))
		for g, outcome := range report.Results {
			resp.Deliveries[strconv.FormatUint(g, 10)] = outcome
		}
	}
	ok(c, http.StatusOK, resp)
}

// ClosePolls godoc
// @Summary  Close every poll whose messages can be finalized (admin)
// @Success  200  {object}  handlers.CloseResponse
// @Router   /admin/close [post]
func (h *Handlers) ClosePolls(c *gin.Context) {
	report, err := h.closer.Close(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCloseFailed, "closing polls failed")
		return
	}
	resp := CloseResponse{
		Closed:  report.Closed,
		Pending: report.Pending,
		Edited:  report.Edited,
		Skipped: report.Skipped,
		Failed:  report.Failed,
	}
	if resp.Closed == nil {
		resp.Closed = []uint{}
	}
	if resp.Pending == nil {
		resp.Pending = []uint{}
	}
	ok(c, http.StatusOK, resp)
}
