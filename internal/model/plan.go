package model

// Selection narrows the chapters of a series to the subset the user wants.
// Nil range bounds mean unbounded on that side.
type Selection struct {
	ChapterStart *float64 `json:"chapter_start,omitempty"`
	ChapterEnd   *float64 `json:"chapter_end,omitempty"`
	GroupID      string   `json:"group_id,omitempty"`
	Language     string   `json:"language,omitempty"`
}

// Filter returns the chapters matching the selection, sorted by ascending
// chapter number.
func (sel Selection) Filter(chapters []Chapter) []Chapter {
	var out []Chapter
	for _, ch := range chapters {
		if sel.ChapterStart != nil && ch.Number < *sel.ChapterStart {
			continue
		}
		if sel.ChapterEnd != nil && ch.Number > *sel.ChapterEnd {
			continue
		}
		if sel.GroupID != "" && ch.GroupID != sel.GroupID {
			continue
		}
		if sel.Language != "" && ch.Language != sel.Language {
			continue
		}
		out = append(out, ch)
	}
	SortChapters(out)
	return out
}

// DownloadPlan is the fully resolved unit of execution for one job: the
// filtered chapter sequence, the resolved options, and the output directory.
// Built once per job and never mutated; Remaining derives the resumed view.
type DownloadPlan struct {
	Title     string         `json:"title"`
	Chapters  []Chapter      `json:"chapters"`
	Options   map[string]any `json:"options"`
	OutputDir string         `json:"output_dir"`
}

// TotalChapters returns the number of chapters in the plan
func (p *DownloadPlan) TotalChapters() int {
	return len(p.Chapters)
}

// Remaining returns a copy of the plan with the first completed chapters
// removed. Used to resume a paused job from the last fully finished chapter.
func (p *DownloadPlan) Remaining(completed int) *DownloadPlan {
	if completed < 0 {
		completed = 0
	}
	if completed > len(p.Chapters) {
		completed = len(p.Chapters)
	}
	rest := *p
	rest.Chapters = p.Chapters[completed:]
	return &rest
}
