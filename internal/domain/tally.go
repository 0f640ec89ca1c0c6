package domain

// TallyCount holds the number of votes for one rating value: Local counts
// only votes cast through the guild's own message, Global counts every vote
// for the comic.
type TallyCount struct {
	Local  int64 `json:"local"`
	Global int64 `json:"global"`
}

// Tally maps a rating value to its vote counts. Ratings without votes are
// absent.
type Tally map[int]TallyCount

// Totals returns the total number of local and global votes.
func (t Tally) Totals() (local, global int64) {
	for _, c := range t {
		local += c.Local
		global += c.Global
	}
	return local, global
}

// Averages returns the weighted local and global averages. An average is
// zero when there are no votes on that side.
func (t Tally) Averages() (local, global float64) {
	var lsum, gsum, ln, gn int64
	for r, c := range t {
		lsum += int64(r) * c.Local
		gsum += int64(r) * c.Global
		ln += c.Local
		gn += c.Global
	}
	if ln > 0 {
		local = float64(lsum) / float64(ln)
	}
	if gn > 0 {
		global = float64(gsum) / float64(gn)
	}
	return local, global
}
