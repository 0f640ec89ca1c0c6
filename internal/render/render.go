// Package render turns comics and tallies into platform-neutral posts.
package render

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-comic-bot/internal/domain"
	"github.com/tbourn/go-comic-bot/internal/gateway"
)

// Defaults used by New.
const (
	DefaultTitle        = "Päivän Fingerpori"
	DefaultFooterPrefix = "Fingerpori"
	DefaultColor        = 0x979C9F
)

// Renderer builds posts. The zero value is not usable; call New.
type Renderer struct {
	Title        string
	FooterPrefix string
	Color        int

	printer *message.Printer
}

// New returns a Renderer that formats numbers for tag. An empty title
// falls back to DefaultTitle.
func New(title string, tag language.Tag) *Renderer {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	return &Renderer{
		Title:        title,
		FooterPrefix: DefaultFooterPrefix,
		Color:        DefaultColor,
		printer:      message.NewPrinter(tag),
	}
}

// AttachmentName is the file name the comic image is uploaded under.
func AttachmentName(c domain.Comic) string {
	ext := strings.ToLower(filepath.Ext(c.LocalPath))
	if ext == "" {
		ext = ".jpg"
	}
	return "comic" + ext
}

// ComicPost renders the initial post for a freshly published comic. The
// image bytes are attached; the widget is added only when mode asks for it.
func (r *Renderer) ComicPost(c domain.Comic, image []byte, mode domain.RatingMode) gateway.Post {
	name := AttachmentName(c)
	p := gateway.Post{
		Embed:      r.embed(c),
		Attachment: &gateway.Attachment{Name: name, Data: image},
	}
	if mode.AttachesWidget() {
		p.Widget = r.widget(c.ID, nil, false)
	}
	return p
}

// VotePost renders the open post after a vote, with the button labels
// showing the guild-local counts.
func (r *Renderer) VotePost(c domain.Comic, tally domain.Tally) gateway.Post {
	return gateway.Post{
		Embed:  r.embed(c),
		Widget: r.widget(c.ID, tally, false),
	}
}

// ClosedPost renders the final state of a post: both averages are shown and
// the widget, when the mode has one, is disabled.
func (r *Renderer) ClosedPost(c domain.Comic, mode domain.RatingMode, tally domain.Tally) gateway.Post {
	e := r.embed(c)
	local, global := tally.Averages()
	ln, gn := tally.Totals()
	e.Fields = []gateway.Field{
		{Name: "Tämä palvelin", Value: r.summary(local, ln), Inline: true},
		{Name: "Kaikki palvelimet", Value: r.summary(global, gn), Inline: true},
	}
	p := gateway.Post{Embed: e}
	if mode.AttachesWidget() {
		p.Widget = r.widget(c.ID, tally, true)
	}
	return p
}

// Notice renders a plain text post.
func (r *Renderer) Notice(text string) gateway.Post {
	return gateway.Post{Content: text}
}

// FormatAverage formats an average with two decimals for the configured locale.
func (r *Renderer) FormatAverage(avg float64) string {
	return r.printer.Sprintf("%.2f", avg)
}

func (r *Renderer) summary(avg float64, votes int64) string {
	return r.printer.Sprintf("%s (%d ääntä)", r.FormatAverage(avg), votes)
}

func (r *Renderer) embed(c domain.Comic) *gateway.Embed {
	return &gateway.Embed{
		Title:    r.Title,
		Color:    r.Color,
		ImageURL: "attachment://" + AttachmentName(c),
		Footer:   r.footer(c.PublishDate),
	}
}

func (r *Renderer) footer(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return fmt.Sprintf("%s %s", r.FooterPrefix, date)
	}
	return fmt.Sprintf("%s %s", r.FooterPrefix, d.Format("02.01.2006"))
}

func (r *Renderer) widget(comicID uint, tally domain.Tally, disabled bool) *gateway.Widget {
	w := &gateway.Widget{Buttons: make([]gateway.Button, 0, domain.MaxRating-domain.MinRating+1)}
	for rating := domain.MinRating; rating <= domain.MaxRating; rating++ {
		label := fmt.Sprint(rating)
		if n := tally[rating].Local; n > 0 {
			label = fmt.Sprintf("%d (%d)", rating, n)
		}
		w.Buttons = append(w.Buttons, gateway.Button{
			CustomID: gateway.WidgetID(comicID, rating),
			Label:    label,
			Disabled: disabled,
		})
	}
	return w
}
