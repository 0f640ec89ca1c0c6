package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/services"
	"github.com/tbourn/go-comic-bot/internal/utils"
)

// ComicResponse is the public view of a comic.
type ComicResponse struct {
	ID          uint   `json:"id"`
	PublishDate string `json:"publish_date"`
	SourceURL   string `json:"source_url"`
	PollClosed  bool   `json:"poll_closed"`
}

// ListComicsResponse wraps GET /comics.
type ListComicsResponse struct {
	Comics []ComicResponse `json:"comics"`
}

// TallyResponse is the vote summary of one comic as seen from one guild.
type TallyResponse struct {
	ComicID       uint                      `json:"comic_id"`
	GuildID       string                    `json:"guild_id"`
	LocalVotes    int64                     `json:"local_votes"`
	GlobalVotes   int64                     `json:"global_votes"`
	LocalAverage  float64                   `json:"local_average"`
	GlobalAverage float64                   `json:"global_average"`
	Counts        map[int]domain.TallyCount `json:"counts"`
}

// ListComics godoc
// @Summary  Most recent comics, newest first
// @Param    limit  query  int  false  "Max items"  minimum(1) maximum(30) default(10)
// @Success  200  {object}  handlers.ListComicsResponse
// @Router   /comics [get]
func (h *Handlers) ListComics(c *gin.Context) {
	limit := utils.ClampLimit(utils.AtoiDefault(c.Query("limit"), h.DefaultLimit), h.DefaultLimit, h.MaxLimit)

	items, err := h.comics.Recent(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list comics")
		return
	}
	resp := ListComicsResponse{Comics: make([]ComicResponse, 0, len(items))}
	for _, cm := range items {
		resp.Comics = append(resp.Comics, ComicResponse{
			ID:          cm.ID,
			PublishDate: cm.PublishDate,
			SourceURL:   cm.SourceURL,
			PollClosed:  cm.PollClosed,
		})
	}
	ok(c, http.StatusOK, resp)
}

// GetTally godoc
// @Summary  Vote counts and averages of a comic for a guild
// @Param    id        path   int     true  "Comic id"
// @Param    guild_id  query  string  true  "Guild id"
// @Success  200  {object}  handlers.TallyResponse
// @Failure  400  {object}  handlers.ErrorResponse
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /comics/{id}/tally [get]
func (h *Handlers) GetTally(c *gin.Context) {
	comicID, err := utils.ParseComicID(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "comic id must be a positive integer")
		return
	}
	guildID, err := utils.ParseSnowflake(c.Query("guild_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "guild_id is required")
		return
	}

	tally, err := h.comics.Tally(c.Request.Context(), comicID, guildID)
	switch {
	case errors.Is(err, services.ErrComicNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "comic not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not tally votes")
		return
	}

	local, global := tally.Totals()
	localAvg, globalAvg := tally.Averages()
	if tally == nil {
		tally = domain.Tally{}
	}
	ok(c, http.StatusOK, TallyResponse{
		ComicID:       comicID,
		GuildID:       strconv.FormatUint(guildID, 10),
		LocalVotes:    local,
		GlobalVotes:   global,
		LocalAverage:  localAvg,
		GlobalAverage: globalAvg,
		Counts:        tally,
	})
}
