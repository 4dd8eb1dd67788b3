package model

import "sort"

// Chapter is one downloadable unit within a series. Number is a real value so
// side chapters such as 1.5 sort between their neighbours.
type Chapter struct {
	ID        string  `json:"id"`
	Number    float64 `json:"number"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	GroupID   string  `json:"group_id,omitempty"`
	Language  string  `json:"language"`
	PageCount int     `json:"page_count,omitempty"`
}

// Group is a named content variant, typically a scanlation team
type Group struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
}

// ContentInfo is the metadata a connector returns for a source URL. It is
// immutable once fetched; a re-fetch replaces it wholesale.
type ContentInfo struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	CoverURL    string            `json:"cover_url,omitempty"`
	Description string            `json:"description,omitempty"`
	Author      string            `json:"author,omitempty"`
	Artist      string            `json:"artist,omitempty"`
	Status      string            `json:"status,omitempty"` // ongoing, completed, hiatus
	Chapters    []Chapter         `json:"chapters"`
	Groups      []Group           `json:"groups"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// ChapterRange returns the lowest and highest chapter numbers, or (0, 0) when
// there are no chapters.
func (ci *ContentInfo) ChapterRange() (min, max float64) {
	if len(ci.Chapters) == 0 {
		return 0, 0
	}
	min, max = ci.Chapters[0].Number, ci.Chapters[0].Number
	for _, ch := range ci.Chapters[1:] {
		if ch.Number < min {
			min = ch.Number
		}
		if ch.Number > max {
			max = ch.Number
		}
	}
	return min, max
}

// GroupByID returns the group with the given identifier
func (ci *ContentInfo) GroupByID(id string) (Group, bool) {
	for _, g := range ci.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// SortChapters orders chapters by ascending number in place
func SortChapters(chapters []Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Number < chapters[j].Number
	})
}
